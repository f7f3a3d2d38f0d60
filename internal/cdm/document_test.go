package cdm

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFields_UnmarshalKeepsOrder(t *testing.T) {
	var f Fields
	if err := json.Unmarshal([]byte(`{"b":"1","a":"2","c":null}`), &f); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}

	want := []string{"b", "a", "c"}
	if len(f) != len(want) {
		t.Fatalf("len = %d, want %d", len(f), len(want))
	}
	for i, name := range want {
		if f[i].Name != name {
			t.Errorf("f[%d].Name = %q, want %q", i, f[i].Name, name)
		}
	}

	out, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	if string(out) != `{"b":"1","a":"2","c":null}` {
		t.Errorf("Marshal = %s", out)
	}
}

func TestFields_UnmarshalRejectsArray(t *testing.T) {
	var f Fields
	if err := json.Unmarshal([]byte(`["a"]`), &f); err == nil {
		t.Error("expected error for array input")
	}
}

func TestFields_Union(t *testing.T) {
	fields := Fields{{Name: "請求番号", Value: "A"}, {Name: "合計", Value: "1"}}
	kv := Fields{{Name: "合計", Value: "2"}, {Name: "備考", Value: "x"}}

	u := fields.Union(kv)
	if len(u) != 3 {
		t.Fatalf("len = %d, want 3", len(u))
	}
	if u[1].Name != "合計" || u[1].Value != "2" {
		t.Errorf("u[1] = %+v, want 合計=2 in original position", u[1])
	}
	if v, _ := fields.Get("合計"); v != "1" {
		t.Errorf("Union mutated receiver: %v", v)
	}
}

func TestParseRawExtraction(t *testing.T) {
	raw, err := ParseRawExtraction([]byte(`{
		"fields": {"請求番号": "INV-1"},
		"tables": [{"rows": [["品名","金額"],["A","100"]]}],
		"key_value_pairs": {"合計": "110,000円"},
		"confidence_scores": {"請求番号": 0.98}
	}`))
	if err != nil {
		t.Fatalf("ParseRawExtraction error = %v", err)
	}
	if len(raw.Tables) != 1 || len(raw.Tables[0].Rows) != 2 {
		t.Errorf("tables = %+v", raw.Tables)
	}
	if v, ok := raw.SourceFields().Get("合計"); !ok || v != "110,000円" {
		t.Errorf("SourceFields 合計 = %v, %v", v, ok)
	}
	if raw.ConfidenceScores["請求番号"] != 0.98 {
		t.Errorf("confidence = %v", raw.ConfidenceScores)
	}
}

func TestDocument_Lookup(t *testing.T) {
	doc := New(DocTypeInvoice, "", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	doc.Doc["document_no"] = "INV-1"
	doc.Doc["bill_to"] = map[string]any{"name": "Acme"}
	doc.Totals["tax"] = 10
	doc.Lines = append(doc.Lines, Line{"amount": 100.0})

	tests := []struct {
		path   string
		want   any
		wantOK bool
	}{
		{"doc.document_no", "INV-1", true},
		{"doc.bill_to.name", "Acme", true},
		{"totals.tax", 10.0, true},
		{"doc.vendor", nil, true},
		{"doc.missing", nil, false},
		{"lines.amount", nil, false},
		{"", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := doc.Lookup(tt.path)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Lookup(%q) = %v, %v; want %v, %v", tt.path, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestDocument_CloneIsIndependent(t *testing.T) {
	doc := New(DocTypeInvoice, "acme", time.Now())
	doc.Lines = append(doc.Lines, Line{"qty": 1.0})
	doc.Totals["subtotal"] = 100

	cp := doc.Clone()
	cp.Doc["vendor_id"] = "V1"
	cp.Lines[0]["qty"] = 2.0
	cp.Totals["subtotal"] = 200

	if _, ok := doc.Doc["vendor_id"]; ok {
		t.Error("clone doc write leaked into original")
	}
	if doc.Lines[0]["qty"] != 1.0 {
		t.Error("clone line write leaked into original")
	}
	if doc.Totals["subtotal"] != 100 {
		t.Error("clone totals write leaked into original")
	}
	if cp.Vendor() != "acme" || cp.Type() != DocTypeInvoice {
		t.Errorf("clone accessors = %q, %q", cp.Vendor(), cp.Type())
	}
}

func TestIsEmptyValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want bool
	}{
		{"nil", nil, true},
		{"empty string", "", true},
		{"blank string", "  ", true},
		{"zero", 0.0, true},
		{"text", "x", false},
		{"number", 1.5, false},
		{"empty list", []any{}, true},
		{"true", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEmptyValue(tt.in); got != tt.want {
				t.Errorf("IsEmptyValue(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
