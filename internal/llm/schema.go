package llm

// BuildInvoiceJSONSchema returns the JSON-Schema the model output is checked
// against: an object whose schema fields, when present, hold scalar values.
// Extra keys are allowed and no field is required.
func BuildInvoiceJSONSchema(headers []string) map[string]any {
	props := make(map[string]any, len(headers))
	for _, h := range headers {
		props[h] = scalarProp()
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}

func scalarProp() map[string]any {
	return map[string]any{
		"type": []string{"string", "number", "integer", "boolean", "null"},
	}
}
