package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bartosicilia/TaxlexIA/internal/entity"
	"github.com/bartosicilia/TaxlexIA/internal/llm"
)

var schemaJSON bool

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the fields requested from the model for the entity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ent, err := loadEntity()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if schemaJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(llm.BuildInvoiceJSONSchema(ent.Schema.Headers()))
		}
		fmt.Fprintf(out, "entity: %s (%s)\nbuyer location: %s\n\n", ent.Name, ent.BusinessTypeOrDefault(), ent.BuyerLocation())
		fmt.Fprintln(out, entity.BuildFieldSpec(ent.Schema))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.Flags().BoolVar(&schemaJSON, "json", false, "print the JSON-Schema used to check model output")
}
