package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"equipment_usage_tracker/app"
	"equipment_usage_tracker/lifecycle"
	"equipment_usage_tracker/models"

	"github.com/spf13/cobra"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Check equipment out and in",
}

var usageCheckoutCmd = &cobra.Command{
	Use:   "checkout <equipment_id>",
	Short: "Open a usage episode for a unit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		in := lifecycle.CheckoutInput{EquipmentID: args[0]}
		in.RequesterID, _ = f.GetString("requester")
		in.Activity, _ = f.GetString("activity")
		in.Signature, _ = f.GetString("signature")
		in.Notes, _ = f.GetString("notes")
		in.WithdrawnBy, _ = f.GetString("withdrawn-by")
		if in.WithdrawnBy == "" {
			in.WithdrawnBy = activeUser()
		}
		return withSession(func(ctx context.Context, s *session) error {
			ep, err := s.coord.Checkout(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Checked out %s (episode %s) at %s\n",
				ep.EquipmentID, ep.ID, ep.StartTime.Format(timeLayout))
			return nil
		})
	},
}

var usageCheckinCmd = &cobra.Command{
	Use:   "checkin <equipment_id>",
	Short: "Close the open usage episode of a unit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		at, _ := cmd.Flags().GetString("at")
		var end *time.Time
		if at != "" {
			t, err := app.ParseTime(at)
			if err != nil {
				return err
			}
			end = &t
		}
		return withSession(func(ctx context.Context, s *session) error {
			ep, err := s.coord.Checkin(ctx, args[0], end)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Checked in %s after %.2f hours\n", ep.EquipmentID, ep.TotalHours)
			return nil
		})
	},
}

var usageHistoryCmd = &cobra.Command{
	Use:   "history <equipment_id>",
	Short: "Show the usage history of a unit, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withSession(func(ctx context.Context, s *session) error {
			eps, err := s.coord.History(ctx, args[0], limit)
			if err != nil {
				return err
			}
			if len(eps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No usage recorded")
				return nil
			}
			printEpisodes(cmd.OutOrStdout(), eps)
			return nil
		})
	},
}

func printEpisodes(out io.Writer, eps []models.UsageEpisode) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EPISODE\tREQUESTER\tACTIVITY\tSTART\tEND\tHOURS")
	for _, ep := range eps {
		end, hours := "open", ""
		if ep.EndTime != nil {
			end = ep.EndTime.Format(timeLayout)
			hours = fmt.Sprintf("%.2f", ep.TotalHours)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			ep.ID, ep.RequesterID, ep.Activity, ep.StartTime.Format(timeLayout), end, hours)
	}
	w.Flush()
}

func init() {
	f := usageCheckoutCmd.Flags()
	f.String("requester", "", "requester id (required)")
	f.String("activity", "", "what the unit is used for (required)")
	f.String("signature", "", "requester signature (required)")
	f.String("withdrawn-by", "", "who hands the unit out (default username@hostname)")
	f.String("notes", "", "free text notes")
	_ = usageCheckoutCmd.MarkFlagRequired("requester")
	_ = usageCheckoutCmd.MarkFlagRequired("activity")
	_ = usageCheckoutCmd.MarkFlagRequired("signature")

	usageCheckinCmd.Flags().String("at", "", "return time (default now)")
	usageHistoryCmd.Flags().Int("limit", 0, "number of episodes (default from config)")

	usageCmd.AddCommand(usageCheckoutCmd, usageCheckinCmd, usageHistoryCmd)
	rootCmd.AddCommand(usageCmd)
}
