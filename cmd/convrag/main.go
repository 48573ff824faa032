package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	convrag "github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/common/logger"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/config"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/orchestrator"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "convrag",
	Short: "convrag - conversational RAG for cosmetics product Q&A",
	Long: `convrag answers Vietnamese cosmetics questions by routing each message,
retrieving product chunks from a vector store, reranking them and generating
an answer grounded on the retrieved context, with per-session memory.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONVRAG_CONFIG"), "path to a yaml or toml config file")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(chatCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "convrag v%s\n", convrag.Version)
	},
}

// loadConfig reads the config file and initializes the process logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, fmt.Errorf("init logger failed, err: %w", err)
	}
	return cfg, nil
}

func newOrchestrator(ctx context.Context) (*config.Config, *orchestrator.Orchestrator, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	o, err := orchestrator.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, o, nil
}

func main() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
