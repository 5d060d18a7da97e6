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
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"sqlsandbox/internal/tsv"
)

var askConsent bool

var askCmd = &cobra.Command{
	Use:   "ask <file> <question>",
	Short: "Ingest a data file and answer one question about it",
	Args:  cobra.ExactArgs(2),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askConsent, "consent", false,
		"Consent to ephemeral processing of the uploaded file")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	if !askConsent {
		return fmt.Errorf("pass --consent to confirm the file may be processed in an ephemeral sandbox")
	}

	path, question := args[0], args[1]
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	registry := newRegistry()
	defer registry.CleanupAll()

	const sessionID = "cli"
	if err := registry.GiveConsent(sessionID); err != nil {
		return err
	}
	if _, err := registry.Upload(sessionID, raw, filepath.Base(path)); err != nil {
		return err
	}

	result, err := registry.Ask(cmd.Context(), sessionID, question)
	if err != nil {
		return err
	}
	if !result.Success {
		if result.SQL != "" {
			fmt.Fprintf(os.Stderr, "Generated SQL: %s\n", result.SQL)
		}
		return fmt.Errorf("%s", result.Error)
	}

	fmt.Fprintf(os.Stderr, "SQL: %s\n", result.SQL)
	fmt.Print(tsv.FormatResults(result.Columns, result.Rows))
	if result.Truncated {
		fmt.Fprintf(os.Stderr, "(results truncated to %d rows)\n", result.RowCount)
	}
	fmt.Fprintf(os.Stderr, "%d rows in %dms (model: %s)\n",
		result.RowCount, result.LatencyMS, result.Model)
	return nil
}
