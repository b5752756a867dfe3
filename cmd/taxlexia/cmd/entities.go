package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List the loaded entities and mark the active one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		active := reg.Active()
		out := cmd.OutOrStdout()
		for _, name := range reg.Names() {
			ent, err := reg.Get(name)
			if err != nil {
				return err
			}
			mark := " "
			if ent == active {
				mark = "*"
			}
			fmt.Fprintf(out, "%s %s\t%s\t%d locations\t%d vendors\n",
				mark, ent.Name, ent.BusinessTypeOrDefault(), len(ent.Locations), ent.Vendors.Len())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(entitiesCmd)
}
