package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"metaredact/internal/api"
	"metaredact/internal/queue"
	"metaredact/internal/redact"
	"metaredact/pkg/log"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the processing queue over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

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
		e := api.NewServer(&api.Dependencies{
			Queue:          q,
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
			Version:        Version,
		})

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Infow("http server listening", "addr", cfg.Server.Addr, "backend", cfg.Redact.Backend)
			if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			if err := scheduler.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			log.Infow("shutting down", "timeout", cfg.Server.ShutdownTimeout)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}
