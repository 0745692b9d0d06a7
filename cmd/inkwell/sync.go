package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/inkwell-app/inkwell/internal/entity"
	"github.com/inkwell-app/inkwell/internal/hydrate"
	"github.com/inkwell-app/inkwell/internal/queue"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass now",
	Long: `Drain the pending mutation queue to the remote archive.

Without credentials this is a quiet no-op; queued work waits for the
next pass after you sign in.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fatalf("%v", err)
		}
		st, err := openStore(cfg)
		if err != nil {
			fatalf("%v", err)
		}
		defer st.Close()

		q := queue.New(st.RawDB(), nil)
		proc := newProcessor(cfg, st, q)

		res, err := proc.Run(cmd.Context())
		if err != nil {
			fatalf("sync failed: %v", err)
		}

		pending, _ := q.Count(cmd.Context())
		switch {
		case res.Processed == 0 && res.Failed == 0 && pending > 0:
			fmt.Printf("Offline: %d mutations waiting\n", pending)
		case res.Failed > 0:
			fmt.Printf("Synced %d, failed %d (%d still pending)\n", res.Processed, res.Failed, pending)
			os.Exit(1)
		default:
			fmt.Printf("Synced %d mutations\n", res.Processed)
		}
	},
}

var hydrateCmd = &cobra.Command{
	Use:   "hydrate",
	Short: "Import the remote journal into an empty local database",
	Long: `Seed the local database from the remote archive.

Only runs against an empty database; a database that already holds
journal entries is never touched.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fatalf("%v", err)
		}
		st, err := openStore(cfg)
		if err != nil {
			fatalf("%v", err)
		}
		defer st.Close()

		b := hydrate.New(st, newDriveClient(cfg), cfg.RootFolder, cfg.LegacyRootFolder, nil)
		res, err := b.Run(cmd.Context())
		if err != nil {
			fatalf("hydration failed: %v", err)
		}

		switch b.Stage() {
		case hydrate.StageSkipped:
			fmt.Println("Local database is not empty (or no credentials); nothing imported")
		default:
			fmt.Printf("Imported %d entries (%d skipped)\n", res.Hydrated, res.Skipped)
		}
	},
}

var (
	statusLabel = lipgloss.NewStyle().Bold(true).Width(14)
	statusOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	statusWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	statusBad   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fatalf("%v", err)
		}
		st, err := openStore(cfg)
		if err != nil {
			fatalf("%v", err)
		}
		defer st.Close()

		ctx := cmd.Context()
		q := queue.New(st.RawDB(), nil)
		pending, err := q.Count(ctx)
		if err != nil {
			fatalf("%v", err)
		}

		client := newDriveClient(cfg)
		online := statusBad.Render("offline (no credentials)")
		if client.Available() {
			online = statusOK.Render("online")
		}

		queueLine := statusOK.Render("empty")
		if pending > 0 {
			queueLine = statusWarn.Render(fmt.Sprintf("%d pending", pending))
		}

		fmt.Println(statusLabel.Render("Remote:") + online)
		fmt.Println(statusLabel.Render("Queue:") + queueLine)

		for _, kind := range entity.Kinds() {
			n, err := st.PendingSyncCount(ctx, kind, entity.SyncError)
			if err != nil {
				continue
			}
			if n > 0 {
				fmt.Println(statusLabel.Render("Failed:") +
					statusBad.Render(fmt.Sprintf("%d %s entries need attention", n, kind)))
			}
		}

		fmt.Println(statusLabel.Render("Database:") + cfg.DBPath())
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(hydrateCmd)
	rootCmd.AddCommand(statusCmd)
}
