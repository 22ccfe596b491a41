// Command oceanq answers natural-language questions about ocean float
// profiles, either as an HTTP service or as an interactive chat.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run())
}

func run() int {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "oceanq",
		Short:         "Ocean profile question answering service.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if envFile == "" {
				_ = godotenv.Load() // ignore missing .env
				return nil
			}
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("load env file: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment variables from this file (default .env when present)")

	rootCmd.AddCommand(newServeCmd(), newChatCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
