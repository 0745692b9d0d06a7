package main

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/inkwell-app/inkwell/internal/entity"
	"github.com/inkwell-app/inkwell/internal/queue"
	"github.com/inkwell-app/inkwell/internal/store"
)

var checkinEveningFlag bool

// checkinQuestions is the scripted question flow, per stage. The
// complete stage has no questions; reaching it ends the check-in.
var checkinQuestions = map[entity.TimeOfDay]map[entity.CheckinStage][]string{
	entity.Morning: {
		entity.StageOpening:    {"How did you sleep?"},
		entity.StageQuestions:  {"What matters most today?", "What might get in the way?"},
		entity.StageReflection: {"How do you want to feel by tonight?"},
	},
	entity.Evening: {
		entity.StageOpening:    {"How did the day go?"},
		entity.StageQuestions:  {"What gave you energy?", "What drained you?"},
		entity.StageReflection: {"What is one thing you are grateful for?"},
	},
}

var checkinCmd = &cobra.Command{
	Use:   "checkin",
	Short: "Morning and evening check-ins",
}

var checkinStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start (or resume) today's check-in",
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
		date := time.Now().Format(entity.DateLayout)
		tod := slotFlag()

		c, err := st.CheckinForSlot(ctx, date, tod)
		if errors.Is(err, sql.ErrNoRows) {
			c = entity.NewCheckin(date, tod)
			q := queue.New(st.RawDB(), nil)
			err = st.InTx(ctx, func(tx *store.Tx) error {
				if err := tx.PutCheckin(ctx, c); err != nil {
					return err
				}
				return q.EnqueueTx(ctx, tx.Raw(), entity.KindCheckin, c.ID, queue.OpCreate)
			})
			if err != nil {
				fatalf("%v", err)
			}
			touchTriggerFile(cfg)
			fmt.Printf("Started %s check-in for %s\n", tod, date)
		} else if err != nil {
			fatalf("%v", err)
		} else {
			fmt.Printf("Resuming %s check-in for %s (stage: %s)\n", tod, date, c.Stage)
		}

		printNextQuestion(c)
	},
}

var checkinAnswerCmd = &cobra.Command{
	Use:   "answer <response>...",
	Short: "Answer the current check-in question",
	Args:  cobra.MinimumNArgs(1),
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
		date := time.Now().Format(entity.DateLayout)
		tod := slotFlag()

		c, err := st.CheckinForSlot(ctx, date, tod)
		if errors.Is(err, sql.ErrNoRows) {
			fatalf("no %s check-in for %s yet, run `inkwell checkin start` first", tod, date)
		} else if err != nil {
			fatalf("%v", err)
		}
		if c.Stage == entity.StageComplete {
			fatalf("today's %s check-in is already complete", tod)
		}

		question, ok := nextQuestion(c)
		if !ok {
			fatalf("today's %s check-in is already complete", tod)
		}
		c.Entries = append(c.Entries, entity.QA{
			Question: question,
			Response: strings.Join(args, " "),
		})

		// Stage advances once its question script is exhausted.
		if remainingInStage(c) == 0 {
			if err := c.Advance(); err != nil {
				fatalf("%v", err)
			}
		}
		c.Touch()

		q := queue.New(st.RawDB(), nil)
		err = st.InTx(ctx, func(tx *store.Tx) error {
			if err := tx.PutCheckin(ctx, c); err != nil {
				return err
			}
			return q.EnqueueTx(ctx, tx.Raw(), entity.KindCheckin, c.ID, queue.OpUpdate)
		})
		if err != nil {
			fatalf("%v", err)
		}
		touchTriggerFile(cfg)

		printNextQuestion(c)
	},
}

func slotFlag() entity.TimeOfDay {
	if checkinEveningFlag {
		return entity.Evening
	}
	return entity.Morning
}

// answeredQuestions returns the set of questions already answered.
func answeredQuestions(c *entity.Checkin) map[string]bool {
	seen := make(map[string]bool, len(c.Entries))
	for _, e := range c.Entries {
		seen[e.Question] = true
	}
	return seen
}

// nextQuestion returns the first unanswered question of the current stage.
func nextQuestion(c *entity.Checkin) (string, bool) {
	seen := answeredQuestions(c)
	for _, q := range checkinQuestions[c.TimeOfDay][c.Stage] {
		if !seen[q] {
			return q, true
		}
	}
	return "", false
}

func remainingInStage(c *entity.Checkin) int {
	seen := answeredQuestions(c)
	n := 0
	for _, q := range checkinQuestions[c.TimeOfDay][c.Stage] {
		if !seen[q] {
			n++
		}
	}
	return n
}

func printNextQuestion(c *entity.Checkin) {
	if c.Stage == entity.StageComplete {
		fmt.Println("Check-in complete. See you next time.")
		return
	}
	if q, ok := nextQuestion(c); ok {
		fmt.Printf("\n%s\n(answer with `inkwell checkin answer ...`)\n", q)
	}
}

func init() {
	checkinCmd.PersistentFlags().BoolVar(&checkinEveningFlag, "evening", false, "use the evening slot")
	checkinCmd.AddCommand(checkinStartCmd)
	checkinCmd.AddCommand(checkinAnswerCmd)
	rootCmd.AddCommand(checkinCmd)
}
