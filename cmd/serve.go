package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/matchmaker/internal/server"
	"github.com/spigell/matchmaker/internal/store"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve rankings over HTTP",
	PreRun: func(cmd *cobra.Command, _ []string) {
		bindFlags(cmd, map[string]string{
			"addr":  "serve.addr",
			"store": "store.path",
			"model": "train.model",
		})
	},
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().String("store", "", "SQLite file with stored matches")
	serveCmd.Flags().String("model", "", "model artifact path (default <data-dir>/model.json)")
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lg, config := setup("serve")

	matcher, err := newMatcher(ctx, config, lg)
	if err != nil {
		lg.Fatal("preparing the matcher", zap.Error(err))
	}

	// a nil *store.Store must not reach the server as a non-nil interface
	var lister server.MatchLister
	if config.Store != nil && config.Store.Path != "" {
		s, err := store.Open(ctx, config.Store.Path, lg)
		if err != nil {
			lg.Fatal("opening the store", zap.Error(err))
		}
		defer s.Close()
		lister = s
	}

	srv, err := server.New(matcher, lister, server.Options{
		DefaultK:     config.Match.TopK,
		MaxEmployees: config.Serve.MaxEmployees,
	}, lg)
	if err != nil {
		lg.Fatal("creating the server", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:              config.Serve.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("listening", zap.String("addr", config.Serve.Addr), zap.Bool("store", lister != nil))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("serving", zap.Error(err))
		}
	case <-ctx.Done():
		lg.Info("shutting down", zap.String("reason", "signal received"))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		lg.Error("shutdown", zap.Error(err))
	}
}
