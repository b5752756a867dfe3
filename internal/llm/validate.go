package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// OutputContract is the compiled JSON-Schema for one export schema. It is
// built once per batch and shared by every invoice in it.
type OutputContract struct {
	headers []string
	schema  *jsonschema.Schema
}

// CompileOutputContract compiles the invoice schema for headers.
func CompileOutputContract(headers []string) (*OutputContract, error) {
	b, err := json.Marshal(BuildInvoiceJSONSchema(headers))
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("invoice.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("invoice.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &OutputContract{headers: append([]string(nil), headers...), schema: schema}, nil
}

func (c *OutputContract) Headers() []string { return c.headers }

// Validate checks a raw model reply against the contract.
func (c *OutputContract) Validate(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := c.schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
