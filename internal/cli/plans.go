package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/talepify/entitlement-service/internal/models"
)

func newPlansCmd(rt *runtime) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Show the plan catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plans := models.Plans()
			if asJSON {
				return rt.printJSON(plans)
			}
			w := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPRICE\tDAYS\tDISCOUNT")
			for _, p := range plans {
				fmt.Fprintf(w, "%s\t%s\t%.2f %s\t%d\t%d%%\n", p.ID, p.Name, p.Price, p.Currency, p.Duration, p.Discount)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
