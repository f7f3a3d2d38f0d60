package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JonMunkholm/cdm/internal/resolver"
)

func TestCustomerReference(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
		want   string
	}{
		{"first field", map[string]any{"customer": "本社", "bill_to": "ACME"}, "本社"},
		{"empty customer falls through", map[string]any{"customer": "", "bill_to": "ACME"}, "ACME"},
		{"nil customer falls through", map[string]any{"customer": nil, "ship_to": "倉庫"}, "倉庫"},
		{"blank name falls through", map[string]any{"customer": "  ", "得意先": "サンプル商事"}, "サンプル商事"},
		{"object name", map[string]any{"bill_to": map[string]any{"name": "ACME"}}, "ACME"},
		{"object without name", map[string]any{"bill_to": map[string]any{"id": 1}, "ship_to": "倉庫"}, "倉庫"},
		{"none", map[string]any{"customer": ""}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := invoice("")
			for k, v := range tt.fields {
				doc.Doc[k] = v
			}
			assert.Equal(t, tt.want, CustomerReference(doc))
		})
	}
}

func TestResolveEntities_SkipsEmptyCustomer(t *testing.T) {
	dict := resolver.EntityDictionary{
		Customers: map[string]resolver.Entity{"ACME": {ID: "C001"}},
	}
	doc := invoice("")
	doc.Doc["customer"] = ""
	doc.Doc["bill_to"] = "ACME"

	ResolveEntities(doc, dict)
	assert.Equal(t, "C001", doc.Doc["customer_id"])
	assert.Equal(t, "ACME", doc.Doc["customer_normalized"])
}
