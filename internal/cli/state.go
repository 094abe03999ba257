package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSubscriptionCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscription",
		Short: "Inspect user subscriptions",
	}

	var userID string
	summary := &cobra.Command{
		Use:   "summary",
		Short: "Show the subscription summary of a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := rt.services(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			s, err := svc.Subscription.GetSubscriptionSummary(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return rt.printJSON(s)
		},
	}
	summary.Flags().StringVar(&userID, "user", "", "user id")
	_ = summary.MarkFlagRequired("user")

	cmd.AddCommand(summary)
	return cmd
}

func newReferralCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "referral",
		Short: "Inspect the referral program",
	}

	var userID string
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show referral statistics of a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := rt.services(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			s, err := svc.Referral.GetUserReferralStats(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return rt.printJSON(s)
		},
	}
	stats.Flags().StringVar(&userID, "user", "", "user id")
	_ = stats.MarkFlagRequired("user")

	cmd.AddCommand(stats)
	return cmd
}

func newTrialCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trial",
		Short: "Inspect or reset the trial of an installation",
	}

	var installationID string
	status := &cobra.Command{
		Use:   "status",
		Short: "Show the trial state of an installation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := rt.services(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			view, err := svc.Trial.GetTrialStatus(cmd.Context(), installationID)
			if err != nil {
				return err
			}
			return rt.printJSON(view)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the trial state of an installation",
		Long:  "Removes the installation's trial slot. Phone numbers that already used a trial stay blocked.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := rt.services(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if err := svc.Trial.ClearTrialData(cmd.Context(), installationID); err != nil {
				return err
			}
			fmt.Fprintf(rt.out, "trial data cleared for %s\n", installationID)
			return nil
		},
	}

	for _, c := range []*cobra.Command{status, clearCmd} {
		c.Flags().StringVar(&installationID, "installation", "", "installation id")
		_ = c.MarkFlagRequired("installation")
	}
	cmd.AddCommand(status, clearCmd)
	return cmd
}
