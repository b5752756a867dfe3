package entity

import "strings"

// Column is one export column: the header the model must use as a key and
// the description that tells it what to put there.
type Column struct {
	Header      string `mapstructure:"header" json:"header"`
	Description string `mapstructure:"description" json:"description"`
}

// ExportSchema is the ordered list of columns an entity exports.
type ExportSchema []Column

// DefaultExportSchema returns the column set used by new entities.
func DefaultExportSchema() ExportSchema {
	return ExportSchema{
		{Header: "File Name", Description: "Original file name of the invoice"},
		{Header: "Invoice Number", Description: "Invoice or document number"},
		{Header: "Vendor", Description: "Legal name of the vendor"},
		{Header: "Ship From", Description: "Origin location (City, State, County)"},
		{Header: "Ship To", Description: "Destination location (City, State, County)"},
		{Header: "What is being sold", Description: "Brief description of goods or services"},
		{Header: "Total Amount", Description: "Total invoice amount"},
		{Header: "Tax Applied", Description: "Sales tax amount charged"},
		{Header: "Rate based on Total and Tax applied", Description: "Effective tax rate calculated"},
		{Header: "Rate for that ship to location", Description: "Estimated combined tax rate"},
		{Header: "Vendor History Note", Description: "Whether vendor usually charges tax"},
	}
}

// Headers returns the non-empty headers in order.
func (s ExportSchema) Headers() []string {
	out := make([]string, 0, len(s))
	for _, c := range s {
		if c.Header != "" {
			out = append(out, c.Header)
		}
	}
	return out
}

// Clone returns an independent copy, used to snapshot a schema for a batch.
func (s ExportSchema) Clone() ExportSchema {
	if s == nil {
		return nil
	}
	out := make(ExportSchema, len(s))
	copy(out, s)
	return out
}

// BuildFieldSpec renders the schema as the field list embedded in the
// extraction prompt, one `- "Header": Description` line per column.
// Columns without a header are skipped. Headers are written verbatim so the
// model is asked for exactly the key the table expects.
func BuildFieldSpec(s ExportSchema) string {
	lines := make([]string, 0, len(s))
	for _, c := range s {
		if c.Header == "" {
			continue
		}
		lines = append(lines, `- "`+c.Header+`": `+c.Description)
	}
	return strings.Join(lines, "\n")
}
