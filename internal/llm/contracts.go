package llm

import (
	"context"

	"github.com/bartosicilia/TaxlexIA/internal/entity"
)

// Request is everything the analyzer needs for one invoice.
type Request struct {
	FileName      string
	Text          string
	BuyerLocation string
	BusinessType  string
	Schema        entity.ExportSchema
	// Contract is the compiled output check for Schema. When nil the
	// analyzer compiles one for the request.
	Contract *OutputContract
}

// Completer sends a prompt to a chat model in JSON-object mode and returns
// the raw message content.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
