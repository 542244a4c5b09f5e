package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuelReschke/ToolFox/internal/pkg/entitlements"
)

var reconcileForce bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <user-id>",
	Short: "Re-apply the plan limits of a user",
	Long: `Re-applies the tool quota of a user from the stored subscription.
Without --force a downgrade is only reported and takes effect at period end.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		svc, err := connect(ctx)
		if err != nil {
			return err
		}
		result, err := svc.Billing.ApplySubscriptionLimits(ctx, args[0], reconcileForce)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "List subscription plans",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writePlans(cmd)
	},
}

var plansMapCmd = &cobra.Command{
	Use:   "map <price-id> <plan>",
	Short: "Map a Stripe price id to a plan",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		svc, err := connect(ctx)
		if err != nil {
			return err
		}
		if err := svc.Billing.MapPrice(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], entitlements.Normalize(args[1]))
		return nil
	},
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileForce, "force", false, "enforce pending downgrades now")
	plansCmd.AddCommand(plansMapCmd)
}

func writePlans(cmd *cobra.Command) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PLAN\tNAME\tINTERVAL\tTOOLS\tPRICE")
	for _, p := range entitlements.Plans() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\n", p.Plan, entitlements.DisplayName(p.Plan), p.Interval, p.Limit, float64(p.Price())/100)
	}
	return w.Flush()
}
