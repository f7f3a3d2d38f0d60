package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/cdm/internal/cdm"
)

// UnknownPartition groups documents whose vendor was not identified.
const UnknownPartition = "unknown"

const idTimestampLayout = "20060102150405"

// DocumentID derives the storage key {type}_{vendor}_{document_no}, with
// spaces replaced by underscores. Without a vendor or document number the key
// falls back to {type}_{timestamp}.
func DocumentID(doc *cdm.Document, now time.Time) string {
	docType := doc.Type()
	if docType == "" {
		docType = "UNKNOWN"
	}
	vendor := doc.Vendor()
	docNo := documentNo(doc)
	if vendor != "" && docNo != "" {
		return strings.ReplaceAll(fmt.Sprintf("%s_%s_%s", docType, vendor, docNo), " ", "_")
	}
	return fmt.Sprintf("%s_%s", docType, now.UTC().Format(idTimestampLayout))
}

// PartitionKey returns the vendor name, or UnknownPartition.
func PartitionKey(doc *cdm.Document) string {
	if v := doc.Vendor(); v != "" {
		return v
	}
	return UnknownPartition
}

func documentNo(doc *cdm.Document) string {
	v, ok := doc.Doc["document_no"]
	if !ok || cdm.IsEmptyValue(v) {
		return ""
	}
	if s, isStr := v.(string); isStr {
		return s
	}
	return fmt.Sprint(v)
}
