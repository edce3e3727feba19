package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/database"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List registered users",
	RunE:  runUsers,
}

func init() {
	rootCmd.AddCommand(usersCmd)

	usersCmd.Flags().Bool("json", false, "Output as JSON")
}

func runUsers(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx, stop := commandContext()
	defer stop()

	closeStore, err := openStore(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore()

	reader, err := database.GetIdentityReader(ctx)
	if err != nil {
		return err
	}

	users, err := reader.List(ctx)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(users)
	}

	if len(users) == 0 {
		fmt.Println("No users registered")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tREGISTERED")
	fmt.Fprintln(w, "--------\t----------")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\n", u.Username, u.RegisteredAt.Local().Format(time.DateTime))
	}
	w.Flush()

	fmt.Printf("\nTotal: %d users\n", len(users))
	return nil
}
