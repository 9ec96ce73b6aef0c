// Command classify runs a single report through the classifier from the shell.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tellnow/backend/internal/ai"
	"tellnow/backend/internal/classifier"
	"tellnow/backend/internal/config"
	"tellnow/backend/internal/store"
	"tellnow/backend/internal/util"
)

// newCompleter is swapped in tests.
var newCompleter = func(cfg config.Config) ai.Completer {
	return cfg.Completer()
}

type classifyOptions struct {
	cap        string
	save       bool
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &classifyOptions{}
	cmd := &cobra.Command{
		Use:   "classify --cap <postal code> <text...>",
		Short: "Classify a citizen report",
		Long: `Classify a citizen report against the TellNow taxonomy and print the
result as JSON. The model is configured through the same environment
variables as the server (GROQ_API_KEY, CLASSIFIER_MODEL, ...).

Examples:
  classify --cap 00184 "Buca enorme in via Nazionale"
  classify --cap 20121 --save "Lampione spento da una settimana"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(cmd, args, opts)
		},
	}
	cmd.Flags().StringVar(&opts.cap, "cap", "", "postal code (CAP) of the report")
	cmd.Flags().BoolVar(&opts.save, "save", false, "store the classified issue in the database")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "optional YAML config file")
	_ = cmd.MarkFlagRequired("cap")
	return cmd
}

func runClassify(cmd *cobra.Command, args []string, opts *classifyOptions) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	postalCode := strings.TrimSpace(opts.cap)
	if text == "" || postalCode == "" {
		return errors.New("text and cap are required")
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if err := config.ConfigureLogging(cfg); err != nil {
		return err
	}
	logrus.SetOutput(cmd.ErrOrStderr())

	debugLog, debugCloser, err := cfg.DebugLogger(time.Now())
	if err != nil {
		return err
	}
	defer debugCloser.Close()

	classifierOpts := cfg.ClassifierOptions()
	classifierOpts.Debug = debugLog
	c := classifier.New(newCompleter(cfg), classifierOpts)

	timer := util.StartTimer()
	outcome := c.Classify(cmd.Context(), text, postalCode)

	if opts.save {
		if err := saveOutcome(cfg.DBPath, text, postalCode, outcome, timer.ElapsedMs()); err != nil {
			return err
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(outcome)
}

func saveOutcome(dbPath, text, postalCode string, outcome classifier.Outcome, elapsedMs int64) error {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}
	db, err := store.Open(dbPath, true)
	if err != nil {
		return err
	}
	defer db.Close()

	issue := &store.Issue{
		Text:             text,
		Cap:              postalCode,
		Source:           "cli",
		Status:           string(outcome.Status),
		StatusReason:     outcome.Reason,
		RequestID:        outcome.RequestID,
		ProcessingTimeMs: elapsedMs,
	}
	issue.SetClassification(outcome.Result)
	if err := db.SaveIssue(issue); err != nil {
		return fmt.Errorf("store issue: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"issue_id":   issue.ID,
		"request_id": outcome.RequestID,
	}).Info("issue stored")
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
