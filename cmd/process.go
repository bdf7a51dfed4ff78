package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"metaredact/internal/queue"
	"metaredact/internal/redact"
	"metaredact/internal/tui"
	"metaredact/pkg/log"
)

var (
	processView  string
	processPlain bool
	processJSON  bool
)

var processCmd = &cobra.Command{
	Use:   "process <path>...",
	Short: "Extract and redact metadata from files and directories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch processView {
		case "original", "redacted", "both":
		default:
			return fmt.Errorf("invalid --view %q: want original, redacted or both", processView)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		handles, err := queue.Walk(ctx, args...)
		if err != nil {
			return err
		}

		classifier, closeClassifier, err := redact.NewClassifier(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := closeClassifier(); err != nil {
				log.Error("close classifier", err)
			}
		}()

		q := queue.New()
		scheduler := queue.NewScheduler(q, queue.NewWorkflow(redact.NewRedactor(classifier)))
		q.Add(handles...)

		if processPlain || processJSON {
			err = scheduler.Drain(ctx)
		} else {
			if cfg.Log.OutputPath == "" {
				// stderr logging would tear through the progress view.
				log.Use(zap.NewNop())
			}
			err = drainWithProgress(ctx, q, scheduler)
		}
		if err != nil {
			return err
		}

		views := q.List()
		if processJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(views)
		}

		out := cmd.OutOrStdout()
		for i, v := range views {
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintln(out, tui.RenderFile(v, processView))
		}

		counts := q.Counts()
		fmt.Fprintln(out)
		fmt.Fprintln(out, tui.RenderSummary([]tui.SummaryRow{
			{Label: "Files", Value: strconv.Itoa(counts.Total)},
			{Label: "Done", Value: strconv.Itoa(counts.Done)},
			{Label: "Errors", Value: strconv.Itoa(counts.Error)},
		}))
		return nil
	},
}

// errInterrupted is returned when the progress view is quit before every
// file has been processed.
var errInterrupted = errors.New("interrupted")

// drainWithProgress drains the queue while a bubbletea program renders its
// events. Quitting the program cancels the in-flight file and waits for the
// drain to stop.
func drainWithProgress(ctx context.Context, q *queue.Queue, scheduler *queue.Scheduler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The model may stop reading done, so completion is also signalled by
	// closing finished.
	done := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		done <- scheduler.Drain(ctx)
		close(finished)
	}()

	final, runErr := tea.NewProgram(tui.NewModel(q.Events(), done), tea.WithContext(ctx)).Run()
	m, _ := final.(tui.Model)
	if !m.Drained() {
		cancel()
		<-finished
		if runErr != nil {
			return runErr
		}
		return errInterrupted
	}
	if runErr != nil {
		return runErr
	}
	return m.Err()
}

func init() {
	processCmd.Flags().StringVar(&processView, "view", "both", "metadata to print: original, redacted or both")
	processCmd.Flags().BoolVar(&processPlain, "plain", false, "skip the live progress view")
	processCmd.Flags().BoolVar(&processJSON, "json", false, "print files as JSON")
	rootCmd.AddCommand(processCmd)
}
