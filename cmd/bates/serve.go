package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/bates-must-flow/internal/config"
	"github.com/Veraticus/bates-must-flow/internal/engine"
	"github.com/Veraticus/bates-must-flow/internal/webhook"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Receive Box upload webhooks and process them",
		Long: `Listen for Box FILE.UPLOADED webhook deliveries, verify their signatures and
run every accepted upload through the pipeline in the background.

Deliveries are acknowledged with 202 before processing starts. On shutdown the
server stops accepting deliveries and waits for in-flight files to finish.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (default from server.addr)")
	cmd.Flags().Bool("no-record", false, "do not write runs to the audit database")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	noRecord, _ := cmd.Flags().GetBool("no-record")

	settings, err := config.LoadServer(viper.GetViper())
	if err != nil {
		return err
	}

	var verifier *webhook.Verifier
	if settings.PrimaryKey != "" || settings.SecondaryKey != "" {
		if verifier, err = webhook.NewVerifier(settings.PrimaryKey, settings.SecondaryKey); err != nil {
			return err
		}
	} else {
		slog.Warn("Webhook signature verification disabled")
	}

	client, err := newBoxClient(ctx)
	if err != nil {
		return err
	}
	notifier, err := newNotifier(ctx, client, false)
	if err != nil {
		return err
	}

	var recorder engine.RunRecorder
	if !noRecord {
		store, err := openStorage(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		recorder = store
	}

	coordinator, err := newCoordinator(client, notifier, recorder)
	if err != nil {
		return err
	}

	handler := webhook.NewHandler(verifier, coordinator, settings.MaxInflight, slog.Default())
	server := &http.Server{
		Addr:              settings.Addr,
		Handler:           newMux(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(ctx, server, handler, settings.ShutdownTimeout)
}

func newMux(handler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("POST /webhook", handler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// serve runs server until ctx is canceled, then drains connections and
// waits for background processing.
func serve(ctx context.Context, server *http.Server, handler *webhook.Handler, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Listening for webhooks", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down, waiting for in-flight uploads")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	done := make(chan struct{})
	go func() {
		handler.Wait()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("All uploads finished")
	case <-shutdownCtx.Done():
		slog.Warn("Timed out waiting for in-flight uploads")
	}
	return nil
}
