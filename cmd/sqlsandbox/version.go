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

	"github.com/spf13/cobra"
)

// Overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the sqlsandbox version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sqlsandbox %s\n", version)
	},
}
