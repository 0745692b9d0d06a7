// Command inkwell is the journal's offline-first sync engine CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/inkwell-app/inkwell/internal/auth"
	"github.com/inkwell-app/inkwell/internal/config"
	"github.com/inkwell-app/inkwell/internal/drive"
	"github.com/inkwell-app/inkwell/internal/queue"
	"github.com/inkwell-app/inkwell/internal/store"
	"github.com/inkwell-app/inkwell/internal/syncer"
)

var dataDirFlag string

var rootCmd = &cobra.Command{
	Use:   "inkwell",
	Short: "Offline-first journal with a remote markdown archive",
	Long: `Inkwell keeps your journal in a local database and mirrors it to a
folder of markdown files in your remote drive. Entries are always written
locally first; a background sync delivers them when you are online.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "",
		"data directory (default ~/.inkwell)")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(dataDirFlag)
}

// openStore opens the local database and makes sure the schema exists.
func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, err
	}
	if err := st.InitSchema(); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func newDriveClient(cfg *config.Config) *drive.Client {
	tokens := auth.NewFileTokenSource(cfg.TokenPath())
	cache := drive.NewFolderCache(cfg.FolderCachePath())
	return drive.NewClient(tokens, cache, nil)
}

func newProcessor(cfg *config.Config, st *store.Store, q *queue.Queue) *syncer.Processor {
	p := syncer.New(st, q, newDriveClient(cfg), nil)
	p.SetRootFolder(cfg.RootFolder)
	p.SetMaxRetries(cfg.MaxRetries)
	return p
}

// touchTriggerFile nudges a running daemon so local edits sync promptly.
// Best effort; a missing daemon just means the next pass picks them up.
func touchTriggerFile(cfg *config.Config) {
	now := time.Now()
	path := cfg.TriggerFilePath()
	if err := os.Chtimes(path, now, now); err != nil {
		_ = os.WriteFile(path, nil, 0o644)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
