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
)

var schemaConsent bool

var schemaCmd = &cobra.Command{
	Use:   "schema <file>",
	Short: "Ingest a data file and print its normalized schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchema,
}

func init() {
	schemaCmd.Flags().BoolVar(&schemaConsent, "consent", false,
		"Consent to ephemeral processing of the uploaded file")
}

func runSchema(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	if !schemaConsent {
		return fmt.Errorf("pass --consent to confirm the file may be processed in an ephemeral sandbox")
	}

	path := args[0]
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
	info, err := registry.Upload(sessionID, raw, filepath.Base(path))
	if err != nil {
		return err
	}

	fmt.Printf("Source: %s (%s)\n\n", info.OriginalFilename, info.SourceFormat)
	fmt.Println(info.Schema)
	fmt.Println()
	for _, table := range info.Tables {
		fmt.Printf("%s: %d rows\n", table, info.RowCounts[table])
	}
	return nil
}
