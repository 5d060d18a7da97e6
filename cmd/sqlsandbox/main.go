/*-------------------------------------------------------------------------
 *
 * SQL Sandbox - Command Line Interface
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sqlsandbox/internal/config"
	"sqlsandbox/internal/llm"
	"sqlsandbox/internal/logging"
	"sqlsandbox/internal/sandbox"
)

var (
	configFile string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sqlsandbox",
	Short: "SQL Sandbox - Ask natural language questions about uploaded data files",
	Long: `sqlsandbox ingests SQLite databases, SQL dumps, CSV files, and XLSX
workbooks into an ephemeral read-only SQLite store, then answers natural
language questions against it by generating validated SELECT queries with
an LLM (OpenRouter or Ollama).

All uploaded data lives in a temporary per-session directory and is removed
when the command finishes.`,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"Path to configuration file")
	rootCmd.AddCommand(askCmd, schemaCmd, versionCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	// .env is optional; environment variables win over file values either way.
	_ = godotenv.Load()

	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		return err
	}

	logging.SetLevel(logging.ParseLevel(cfg.Log.Level))
	return nil
}

// newRegistry builds a session registry from the loaded configuration.
func newRegistry() *sandbox.Registry {
	gateway := llm.NewClient(cfg.LLM.Provider, cfg.LLM.APIKey, cfg.LLM.BaseURL,
		cfg.LLM.Model, cfg.LLM.FallbackModels, cfg.LLM.MaxTokens)
	return sandbox.NewRegistry(gateway, cfg.Limits())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
