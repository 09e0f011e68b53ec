package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/daytrader/strategies"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies [name]",
	Short: "List the registered strategies and their parameters",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		names := strategies.Names()
		if len(args) == 1 {
			names = args
		}
		for _, name := range names {
			specs, err := strategies.Specs(name)
			if err != nil {
				return err
			}
			fmt.Println(name)
			for _, s := range specs {
				out.Printf("  %-20s default %-8g range [%g, %g]  %s\n", s.Name, s.Default, s.Min, s.Max, s.Doc)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}
