package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/api"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/common/logger"
)

const shutdownTimeout = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP chat API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides server.http_addr")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, o, err := newOrchestrator(ctx)
	if err != nil {
		return err
	}
	addr := cfg.Server.HTTPAddr
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := api.NewServer(o, addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	var result *multierror.Error
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			result = multierror.Append(result, err)
		}
	case <-ctx.Done():
		logger.Infof("serve: signal received, shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := o.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
