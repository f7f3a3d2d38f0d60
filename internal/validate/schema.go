package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/JonMunkholm/cdm/internal/cdm"
)

// schemaBaseURL names schema resources inside the compiler; nothing is fetched.
const schemaBaseURL = "https://schemas.cdm.local/"

// ValidateSchema checks doc against a JSON schema document and returns one
// message per leaf violation.
func ValidateSchema(doc *cdm.Document, docType string, schema []byte) []string {
	url := schemaBaseURL + strings.ToLower(docType) + ".schema.json"

	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, bytes.NewReader(schema)); err != nil {
		return []string{fmt.Sprintf("Schema error: %v", err)}
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return []string{fmt.Sprintf("Schema error: %v", err)}
	}

	instance, err := toInstance(doc)
	if err != nil {
		return []string{fmt.Sprintf("Schema validation: %v", err)}
	}

	err = compiled.Validate(instance)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{fmt.Sprintf("Schema validation: %v", err)}
	}

	var out []string
	for _, leaf := range leaves(ve) {
		out = append(out, fmt.Sprintf("Schema validation: %s at %s", leaf.Message, dottedPath(leaf.InstanceLocation)))
	}
	return out
}

// toInstance converts the document to the generic JSON form the schema
// validator expects.
func toInstance(doc *cdm.Document) (any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func leaves(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, c := range ve.Causes {
		out = append(out, leaves(c)...)
	}
	return out
}

// dottedPath turns a JSON pointer such as /doc/document_no into doc.document_no.
func dottedPath(pointer string) string {
	p := strings.TrimPrefix(pointer, "/")
	if p == "" {
		return "(root)"
	}
	p = strings.ReplaceAll(p, "/", ".")
	return strings.NewReplacer("~1", "/", "~0", "~").Replace(p)
}
