package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	convrag "github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/common/logger"
)

var mcpTransport string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the Model Context Protocol server",
	Long:  `Expose the conversation as MCP tools over stdio (default) or streamable HTTP.`,
	RunE:  runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpTransport, "transport", "", "stdio or http, overrides server.mcp_transport")
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, o, err := newOrchestrator(ctx)
	if err != nil {
		return err
	}
	transport := cfg.Server.MCPTransport
	if mcpTransport != "" {
		transport = mcpTransport
	}
	s := convrag.NewMCPServer("convrag", o)

	var result *multierror.Error
	switch transport {
	case "", "stdio":
		logger.Infof("mcp: serving on stdio")
		if err := server.ServeStdio(s); err != nil {
			result = multierror.Append(result, err)
		}
	case "http":
		httpServer := server.NewStreamableHTTPServer(s)
		errCh := make(chan error, 1)
		go func() {
			logger.Infof("mcp: serving streamable http on %s", cfg.Server.MCPAddr)
			errCh <- httpServer.Start(cfg.Server.MCPAddr)
		}()
		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				result = multierror.Append(result, err)
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				result = multierror.Append(result, err)
			}
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown mcp transport: %s", transport))
	}
	if err := o.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
