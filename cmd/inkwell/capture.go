package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/inkwell-app/inkwell/internal/entity"
	"github.com/inkwell-app/inkwell/internal/queue"
	"github.com/inkwell-app/inkwell/internal/store"
)

var captureWhenFlag string

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Quick notes and todos",
}

var captureAddCmd = &cobra.Command{
	Use:   "add <text>...",
	Short: "Capture a note",
	Long: `Capture a note into today's journal.

The note lands in the local database immediately and is queued for the
next sync pass. Use --when to file it under another day:

  inkwell capture add --when yesterday forgot to water the plants`,
	Args: cobra.MinimumNArgs(1),
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

		date, err := resolveDate(captureWhenFlag)
		if err != nil {
			fatalf("%v", err)
		}

		c := entity.NewCapture(date, strings.Join(args, " "))
		q := queue.New(st.RawDB(), nil)
		ctx := cmd.Context()
		err = st.InTx(ctx, func(tx *store.Tx) error {
			if err := tx.PutCapture(ctx, c); err != nil {
				return err
			}
			return q.EnqueueTx(ctx, tx.Raw(), entity.KindCapture, c.ID, queue.OpCreate)
		})
		if err != nil {
			fatalf("%v", err)
		}
		touchTriggerFile(cfg)

		fmt.Printf("Captured for %s: %s\n", date, c.Content)
	},
}

var captureDoneCmd = &cobra.Command{
	Use:   "done <text>",
	Short: "Mark a pending capture as done",
	Long: `Mark a pending capture as done by matching its text.

The match is a case-insensitive substring over pending captures, newest
first. An ambiguous match lists the candidates instead of guessing.`,
	Args: cobra.MinimumNArgs(1),
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
		needle := strings.ToLower(strings.Join(args, " "))

		since := time.Now().UTC().AddDate(0, 0, -30).Format(entity.DateLayout)
		recent, err := st.CapturesSince(ctx, since, 500)
		if err != nil {
			fatalf("%v", err)
		}

		var matches []*entity.Capture
		for _, c := range recent {
			if c.Status != entity.CapturePending {
				continue
			}
			if strings.Contains(strings.ToLower(c.Content), needle) {
				matches = append(matches, c)
			}
		}
		switch {
		case len(matches) == 0:
			fatalf("no pending capture matches %q", strings.Join(args, " "))
		case len(matches) > 1:
			fmt.Fprintf(os.Stderr, "Ambiguous, %d captures match:\n", len(matches))
			for _, c := range matches {
				fmt.Fprintf(os.Stderr, "  [%s] %s\n", c.Date, c.Content)
			}
			os.Exit(1)
		}

		c := matches[0]
		c.Status = entity.CaptureDone
		c.Touch()

		q := queue.New(st.RawDB(), nil)
		err = st.InTx(ctx, func(tx *store.Tx) error {
			if err := tx.PutCapture(ctx, c); err != nil {
				return err
			}
			return q.EnqueueTx(ctx, tx.Raw(), entity.KindCapture, c.ID, queue.OpUpdate)
		})
		if err != nil {
			fatalf("%v", err)
		}
		touchTriggerFile(cfg)

		fmt.Printf("Done: %s\n", c.Content)
	},
}

var captureListCmd = &cobra.Command{
	Use:   "list",
	Short: "List captures for a day",
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

		date, err := resolveDate(captureWhenFlag)
		if err != nil {
			fatalf("%v", err)
		}
		group, err := st.CapturesByDate(cmd.Context(), date)
		if err != nil {
			fatalf("%v", err)
		}
		if len(group) == 0 {
			fmt.Printf("No captures for %s\n", date)
			return
		}

		fmt.Printf("Captures for %s:\n", date)
		for _, c := range group {
			mark := " "
			if c.Status == entity.CaptureDone {
				mark = "x"
			}
			fmt.Printf("  [%s] %s (%s)\n", mark, c.Content, c.CreatedAt.Local().Format("15:04"))
		}
	},
}

var whenParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// resolveDate turns a --when expression into a journal date. Empty means
// today; exact dates pass through; everything else goes to the natural
// language parser.
func resolveDate(expr string) (string, error) {
	now := time.Now()
	if expr == "" {
		return now.Format(entity.DateLayout), nil
	}
	if _, err := time.Parse(entity.DateLayout, expr); err == nil {
		return expr, nil
	}
	r, err := whenParser.Parse(expr, now)
	if err != nil || r == nil {
		return "", fmt.Errorf("cannot understand date %q", expr)
	}
	return r.Time.Format(entity.DateLayout), nil
}

func init() {
	captureAddCmd.Flags().StringVar(&captureWhenFlag, "when", "", "day for the capture (natural language ok)")
	captureListCmd.Flags().StringVar(&captureWhenFlag, "when", "", "day to list (natural language ok)")
	captureCmd.AddCommand(captureAddCmd)
	captureCmd.AddCommand(captureDoneCmd)
	captureCmd.AddCommand(captureListCmd)
	rootCmd.AddCommand(captureCmd)
}
