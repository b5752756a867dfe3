// Command taxlexia audits batches of PDF invoices for use and sales tax.
//
// Usage:
//
//	taxlexia analyze invoices/ --entity acme.yaml   # extract, analyze, export xlsx
//	taxlexia extract invoice.pdf                    # show extracted text only
//	taxlexia schema --entity acme.yaml              # show the fields requested from the model
package main

import "github.com/bartosicilia/TaxlexIA/cmd/taxlexia/cmd"

var version = "dev"

func main() {
	cmd.Version = version
	cmd.Execute()
}
