// Package cmd contains the founderchat command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "founderchat",
	Short: "founderchat - retrieval-grounded founder chat backend",
	Long: `founderchat serves a websocket chat endpoint that answers visitor
questions as the founder, grounded in the company FAQ.

Running founderchat with no arguments starts the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
