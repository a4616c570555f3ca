package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const selectorsSchemaURL = "selectors.schema.json"

var selectorsSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	b, err := json.Marshal(BuildSelectorsSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal selectors schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(selectorsSchemaURL, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add selectors schema: %w", err)
	}
	return c.Compile(selectorsSchemaURL)
})

// ValidateSelectors checks an encoded {"selectors": {...}} document against
// the analyzer's response schema. The schema is compiled on first use.
func ValidateSelectors(doc []byte) error {
	schema, err := selectorsSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return fmt.Errorf("decode selectors: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("selectors do not match schema: %w", err)
	}
	return nil
}
