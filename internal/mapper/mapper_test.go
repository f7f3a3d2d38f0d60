package mapper

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/cdm/internal/cdm"
	"github.com/JonMunkholm/cdm/internal/resolver"
)

type staticConfigs struct {
	configs map[string]resolver.MappingConfig
	err     error
	calls   []string
}

func (s *staticConfigs) MappingConfig(docType, vendor string) (resolver.MappingConfig, error) {
	s.calls = append(s.calls, docType+"/"+vendor)
	if s.err != nil {
		return resolver.MappingConfig{}, s.err
	}
	return s.configs[docType+"/"+vendor], nil
}

func newTestMapper(cfgs *staticConfigs) (*Mapper, *bytes.Buffer) {
	var buf bytes.Buffer
	m := New(cfgs, nil, slog.New(slog.NewTextHandler(&buf, nil)))
	m.now = func() time.Time { return time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC) }
	return m, &buf
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "請求番号no", NormalizeName("請求 番号（No）"))
	assert.Equal(t, "invoiceno", NormalizeName("Invoice　No"))
	assert.Equal(t, "発行日", NormalizeName("【発行日】"))
}

func TestFindValue(t *testing.T) {
	src := cdm.Fields{
		{Name: "合計金額", Value: "1"},
		{Name: "合計", Value: "2"},
		{Name: "Invoice Number", Value: "INV-9"},
		{Name: "備考", Value: nil},
	}

	v, name, ok := FindValue(src, []string{"合計"})
	require.True(t, ok)
	assert.Equal(t, "2", v, "exact match beats earlier substring match")
	assert.Equal(t, "合計", name)

	v, _, ok = FindValue(src, []string{"請求番号", "invoice"})
	require.True(t, ok)
	assert.Equal(t, "INV-9", v)

	_, _, ok = FindValue(src, []string{"備考"})
	assert.False(t, ok, "null values never match")

	_, _, ok = FindValue(src, []string{"", "存在しない"})
	assert.False(t, ok)
}

func TestMap_EndToEnd(t *testing.T) {
	cfgs := &staticConfigs{configs: map[string]resolver.MappingConfig{
		"INVOICE/": {Mappings: map[string]resolver.FieldMapping{
			"document_no": {From: resolver.StringList{"請求番号"}, Transform: resolver.StringList{"trim"}},
			"currency":    {From: resolver.StringList{"通貨"}, Default: "JPY"},
			"lines":       {From: resolver.StringList{"明細"}},
		}},
	}}
	m, _ := newTestMapper(cfgs)

	raw := &cdm.RawExtraction{
		Fields:           cdm.Fields{{Name: "請求番号", Value: " INV-2024-001 "}},
		KeyValuePairs:    cdm.Fields{{Name: "合計", Value: "110,000円"}},
		ConfidenceScores: map[string]float64{"請求番号": 0.97},
	}

	doc, err := m.Map(raw, cdm.DocTypeInvoice, "")
	require.NoError(t, err)

	assert.Equal(t, "INV-2024-001", doc.Doc["document_no"])
	assert.Equal(t, "JPY", doc.Doc["currency"])
	assert.NotContains(t, doc.Doc, "lines")
	assert.Equal(t, 110000.0, doc.Totals["grand_total"])
	assert.Equal(t, "INVOICE", doc.Doc["type"])
	assert.Equal(t, cdm.SchemaVersion, doc.Doc["schema_version"])
	assert.Equal(t, "2024-01-15T09:30:00Z", doc.Doc["extraction_timestamp"])
	assert.Nil(t, doc.Doc["vendor"])
	assert.Equal(t, 0.97, doc.Metadata.ConfidenceScores["請求番号"])
	assert.Empty(t, doc.Lines)
}

func TestMap_VendorFallback(t *testing.T) {
	cfgs := &staticConfigs{configs: map[string]resolver.MappingConfig{
		"INVOICE/": {Mappings: map[string]resolver.FieldMapping{
			"document_no": {From: resolver.StringList{"請求番号"}},
		}},
	}}
	m, logs := newTestMapper(cfgs)

	raw := &cdm.RawExtraction{Fields: cdm.Fields{{Name: "請求番号", Value: "A-1"}}}
	doc, err := m.Map(raw, cdm.DocTypeInvoice, "acme")
	require.NoError(t, err)

	assert.Equal(t, []string{"INVOICE/acme", "INVOICE/"}, cfgs.calls)
	assert.Equal(t, "A-1", doc.Doc["document_no"])
	assert.Equal(t, "acme", doc.Doc["vendor"])
	assert.Contains(t, logs.String(), "retrying without vendor")
}

func TestMap_ConfigError(t *testing.T) {
	m, _ := newTestMapper(&staticConfigs{err: errors.New("bad yaml")})
	_, err := m.Map(&cdm.RawExtraction{}, cdm.DocTypeInvoice, "")
	assert.Error(t, err)

	_, err = m.Map(nil, cdm.DocTypeInvoice, "")
	assert.ErrorIs(t, err, ErrNoRawData)
}

func TestMap_LinesAndPostCompute(t *testing.T) {
	cfgs := &staticConfigs{configs: map[string]resolver.MappingConfig{
		"INVOICE/": {
			Lines: &resolver.LinesMapping{Table: &resolver.TableMapping{
				Headers: map[string]resolver.StringList{
					"description": {"品名", "品目"},
					"qty":         {"数量"},
					"unit_price":  {"単価"},
					"amount":      {"金額"},
				},
				Defaults: map[string]any{"tax_rate": 0.1},
			}},
			PostCompute: []string{
				"totals.subtotal = sum(lines.amount)",
				"totals.tax = import os",
				"totals.tax = round(totals.subtotal * 0.1)",
				"totals.grand_total = totals.subtotal + totals.tax",
			},
		},
	}}
	m, logs := newTestMapper(cfgs)

	raw := &cdm.RawExtraction{Tables: []cdm.Table{
		{Rows: [][]string{{"品名"}}},
		{Rows: [][]string{
			{"品 名", "数量", "単価", "金額", "備考"},
			{"部品A", "2", "1,000", "2,000", ""},
			{"小計", "", "", "", ""},
			{"部品B", "一式", "￥500", "500", "至急"},
		}},
	}}

	doc, err := m.Map(raw, cdm.DocTypeInvoice, "")
	require.NoError(t, err)

	require.Len(t, doc.Lines, 2)
	assert.Equal(t, cdm.Line{"description": "部品A", "qty": 2.0, "unit_price": 1000.0, "amount": 2000.0, "tax_rate": 0.1}, doc.Lines[0])
	assert.Equal(t, "一式", doc.Lines[1]["qty"], "unparseable numbers keep the raw string")
	assert.Equal(t, 500.0, doc.Lines[1]["unit_price"])

	assert.Equal(t, 2500.0, doc.Totals["subtotal"])
	assert.Equal(t, 250.0, doc.Totals["tax"])
	assert.Equal(t, 2750.0, doc.Totals["grand_total"])
	assert.Contains(t, logs.String(), "post-compute parse error")
}

func TestMap_NoTableConfigMeansNoLines(t *testing.T) {
	m, _ := newTestMapper(&staticConfigs{})
	raw := &cdm.RawExtraction{Tables: []cdm.Table{{Rows: [][]string{{"a", "b"}, {"1", "2"}}}}}
	doc, err := m.Map(raw, cdm.DocTypeInvoice, "")
	require.NoError(t, err)
	assert.Empty(t, doc.Lines)
}

func TestMap_UnmappedFieldsAreRetained(t *testing.T) {
	cfgs := &staticConfigs{configs: map[string]resolver.MappingConfig{
		"INVOICE/": {Mappings: map[string]resolver.FieldMapping{
			"document_no": {From: resolver.StringList{"請求番号"}},
		}},
	}}
	m, _ := newTestMapper(cfgs)

	long := strings.Repeat("あ", 150)
	raw := &cdm.RawExtraction{
		Fields: cdm.Fields{
			{Name: "請求 番号", Value: "A-1"},
			{Name: "備考", Value: long},
			{Name: "空欄", Value: ""},
		},
		KeyValuePairs: cdm.Fields{
			{Name: "振込先", Value: "三井住友銀行"},
		},
	}

	doc, err := m.Map(raw, cdm.DocTypeInvoice, "")
	require.NoError(t, err)

	got := doc.Metadata.UnmappedFields
	require.Len(t, got, 2)
	assert.Equal(t, "備考", got[0].Field)
	assert.Equal(t, "fields", got[0].Source)
	assert.Equal(t, strings.Repeat("あ", 100), got[0].ValuePreview)
	assert.Equal(t, cdm.UnmappedField{Field: "振込先", ValuePreview: "三井住友銀行", Source: "key_value_pairs"}, got[1])
}
