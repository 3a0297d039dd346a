package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/user"
	"text/tabwriter"

	"equipment_usage_tracker/controllers"
	"equipment_usage_tracker/lifecycle"
	"equipment_usage_tracker/models"

	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04:05"

var equipmentCmd = &cobra.Command{
	Use:   "equipment",
	Short: "Manage registered equipment",
}

var equipmentListCmd = &cobra.Command{
	Use:   "list [term]",
	Short: "List equipment, optionally filtered by scan code, id or description",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		term := ""
		if len(args) > 0 {
			term = args[0]
		}
		status, _ := cmd.Flags().GetString("status")
		return withSession(func(ctx context.Context, s *session) error {
			views, err := s.coord.ListEquipment(ctx, term, status)
			if err != nil {
				return err
			}
			if len(views) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No equipment found")
				return nil
			}
			printEquipment(cmd.OutOrStdout(), views)
			return nil
		})
	},
}

var equipmentGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one unit and its derived state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			v, err := s.coord.View(ctx, args[0])
			if err != nil {
				return err
			}
			printEquipment(cmd.OutOrStdout(), []lifecycle.EquipmentView{*v})
			return nil
		})
	},
}

var equipmentStatusCmd = &cobra.Command{
	Use:   "status <id> <available|unavailable|checked-out>",
	Short: "Override the stored status of a unit",
	Long: `Override the stored status of a unit. The change is refused when it
contradicts the usage history: a checked-out unit must be checked in first.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		return withSession(func(ctx context.Context, s *session) error {
			it, err := s.coord.UpdateStatus(ctx, args[0], lifecycle.StatusUpdate{
				Status: models.EquipmentStatus(args[1]),
				Actor:  activeUser(),
				Reason: reason,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Equipment %s is now %s\n", it.ID, it.Status)
			return nil
		})
	},
}

var equipmentQRCmd = &cobra.Command{
	Use:   "qrcode <id>",
	Short: "Write the printable tag of a unit as PNG",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		size, _ := cmd.Flags().GetInt("size")
		return withSession(func(ctx context.Context, s *session) error {
			it, err := s.coord.GetEquipment(ctx, args[0])
			if err != nil {
				return err
			}
			png, err := controllers.TagPNG(it, size)
			if err != nil {
				return err
			}
			if out == "" {
				out = it.ID + ".png"
			}
			if err := os.WriteFile(out, png, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tag %q written to %s\n", controllers.TagPayload(it), out)
			return nil
		})
	},
}

func printEquipment(out io.Writer, views []lifecycle.EquipmentView) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCAN CODE\tDESCRIPTION\tBRAND\tSTATUS\tSTATE\tOUT SINCE")
	for _, v := range views {
		scanCode := ""
		if v.ScanCode != nil {
			scanCode = *v.ScanCode
		}
		since := ""
		if v.OpenEpisode != nil {
			since = v.OpenEpisode.StartTime.Format(timeLayout)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			v.ID, scanCode, v.Description, v.Brand, v.Status, v.State, since)
	}
	w.Flush()
}

// activeUser identifies the operator of a CLI change as username@hostname.
func activeUser() string {
	username := "unknown"
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	hostname := "unknown"
	if h, err := os.Hostname(); err == nil {
		hostname = h
	}
	return username + "@" + hostname
}

func init() {
	equipmentListCmd.Flags().String("status", "", "only units with this stored status")
	equipmentStatusCmd.Flags().String("reason", "", "why the status changes")
	equipmentQRCmd.Flags().StringP("output", "o", "", "output file (default <id>.png)")
	equipmentQRCmd.Flags().Int("size", 0, "image size in pixels")

	equipmentCmd.AddCommand(equipmentListCmd, equipmentGetCmd, equipmentStatusCmd, equipmentQRCmd)
	rootCmd.AddCommand(equipmentCmd)
}
