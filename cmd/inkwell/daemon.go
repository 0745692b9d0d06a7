package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/inkwell-app/inkwell/internal/dashboard"
	"github.com/inkwell-app/inkwell/internal/hydrate"
	"github.com/inkwell-app/inkwell/internal/orchestrator"
	"github.com/inkwell-app/inkwell/internal/queue"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sync daemon",
	Long: `Run the sync daemon in the foreground.

The daemon hydrates an empty database on first run, then keeps the
remote archive current: it syncs on startup, when the CLI records a
mutation, when connectivity returns, and on a periodic timer. With
dashboard-addr configured it also serves a WebSocket status feed.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fatalf("%v", err)
		}

		var logOut io.Writer = os.Stderr
		if cfg.LogFile != "" {
			logOut = &lumberjack.Logger{
				Filename:   cfg.LogFile,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     30, // days
			}
		}
		logger := log.New(logOut, "[daemon] ", log.LstdFlags)

		st, err := openStore(cfg)
		if err != nil {
			fatalf("%v", err)
		}
		defer st.Close()

		client := newDriveClient(cfg)
		q := queue.New(st.RawDB(), nil)
		proc := newProcessor(cfg, st, q)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var handler *dashboard.Handler
		if cfg.DashboardAddr != "" {
			server := dashboard.NewServer(cfg.DashboardAddr, logger)
			if err := server.Start(); err != nil {
				fatalf("%v", err)
			}
			defer server.Stop()
			handler = dashboard.NewHandler(server, logger)
			logger.Printf("Dashboard at http://%s", server.Addr())
		}

		// First-run import before any uploads happen.
		b := hydrate.New(st, client, cfg.RootFolder, cfg.LegacyRootFolder, logger)
		hres, err := b.Run(ctx)
		if err != nil {
			logger.Printf("Hydration failed: %v", err)
		} else if b.Stage() == hydrate.StageDone {
			logger.Printf("Hydrated %d entries (%d skipped)", hres.Hydrated, hres.Skipped)
			if handler != nil {
				handler.OnHydration(hres)
			}
		}

		orchCfg := orchestrator.DefaultConfig()
		orchCfg.Interval = cfg.SyncInterval
		orchCfg.TriggerFile = cfg.TriggerFilePath()
		orchCfg.Logger = logger
		orch := orchestrator.New(proc, client.Available, orchCfg)

		if handler != nil {
			orch.Subscribe(handler.OnStatusChange)
			orch.Subscribe(func(s orchestrator.Status) {
				if s == orchestrator.StatusSynced || s == orchestrator.StatusError {
					res, err := orch.LastResult()
					handler.OnSyncPass(res, err)
					if n, err := q.Count(ctx); err == nil {
						handler.OnPendingCount(n)
					}
				}
			})
		}

		logger.Printf("Daemon started (interval %s, data dir %s)", cfg.SyncInterval, cfg.DataDir)
		if err := orch.Start(ctx); err != nil {
			fatalf("%v", err)
		}
		logger.Println("Daemon stopped")
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the data directory",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fatalf("%v", err)
		}
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			fatalf("%v", err)
		}

		st, err := openStore(cfg)
		if err != nil {
			fatalf("%v", err)
		}
		defer st.Close()

		fmt.Printf("Initialized %s\n", cfg.DataDir)
		fmt.Printf("  Database:   %s\n", cfg.DBPath())
		fmt.Printf("  Token file: %s (place your credential here)\n", cfg.TokenPath())
		fmt.Printf("  Config:     %s (optional)\n", cfg.DataDir+"/config.yml")
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(initCmd)
}
