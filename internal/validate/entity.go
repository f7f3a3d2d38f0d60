package validate

import (
	"strings"

	"github.com/JonMunkholm/cdm/internal/cdm"
	"github.com/JonMunkholm/cdm/internal/resolver"
)

// customerFields are checked in order for a customer reference.
var customerFields = []string{"customer", "bill_to", "ship_to", "customer_name", "取引先", "得意先"}

// ResolveEntities enriches doc in place from exact dictionary matches on the
// vendor and customer names.
func ResolveEntities(doc *cdm.Document, dict resolver.EntityDictionary) {
	if vendor := doc.Vendor(); vendor != "" {
		if e, ok := dict.Vendors[vendor]; ok {
			doc.Doc["vendor_id"] = e.ID
			doc.Doc["vendor_normalized"] = normalizedOr(e, vendor)
			if e.AdditionalInfo != nil {
				doc.Doc["vendor_info"] = e.AdditionalInfo
			}
		}
	}

	if ref := CustomerReference(doc); ref != "" {
		if e, ok := dict.Customers[ref]; ok {
			doc.Doc["customer_id"] = e.ID
			doc.Doc["customer_normalized"] = normalizedOr(e, ref)
		}
	}
}

// CustomerReference returns the value of the first populated customer field
// in doc. An object value contributes its "name" member.
func CustomerReference(doc *cdm.Document) string {
	for _, field := range customerFields {
		var name string
		switch t := doc.Doc[field].(type) {
		case string:
			name = t
		case map[string]any:
			name, _ = t["name"].(string)
		}
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	return ""
}

func normalizedOr(e resolver.Entity, name string) string {
	if e.NormalizedName != "" {
		return e.NormalizedName
	}
	return name
}
