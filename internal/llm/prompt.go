package llm

import (
	"strings"

	"github.com/bartosicilia/TaxlexIA/internal/entity"
)

// DefaultMaxTextChars bounds how much extraction text goes into a prompt.
const DefaultMaxTextChars = 5000

// BuildPrompt renders the auditor prompt for one invoice. The extraction
// text is cut to its first maxChars characters.
func BuildPrompt(req Request, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxTextChars
	}
	var b strings.Builder
	b.WriteString("Act as an expert Use and Sales Tax Auditor. ")
	b.WriteString("Analyze the following invoice text (which may contain OCR errors) and provide a STRICT JSON object ")
	b.WriteString("using EXACTLY the below fields and the user context. Each key must match the Header exactly.\n\n")

	b.WriteString("User context (Buyer):\n")
	b.WriteString("- Physical Location: ")
	b.WriteString(req.BuyerLocation)
	b.WriteString("\n- Business Type: ")
	b.WriteString(req.BusinessType)
	b.WriteString("\n\n")

	b.WriteString("Fields to extract:\n")
	b.WriteString(entity.BuildFieldSpec(req.Schema))
	b.WriteString("\n\n")

	b.WriteString("Invoice text (Raw Text / OCR Output):\n")
	b.WriteString(truncateRunes(req.Text, maxChars))
	return b.String()
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
