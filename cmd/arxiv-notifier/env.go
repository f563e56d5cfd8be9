// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/arxiv-notifier/internal/config"
)

var generateEnvCmd = &cobra.Command{
	Use:   "generate-env",
	Short: "Write a sample environment file",
	Long: `Generate-env writes every supported environment variable with its default
value, grouped by section. Credentials are left empty; they may instead be
stored as files under .secrets/.`,
	Annotations: map[string]string{skipConfig: "true"},
	RunE:        runGenerateEnv,
}

func init() {
	generateEnvCmd.Flags().StringP("output", "o", ".env.example", "output file path")

	rootCmd.AddCommand(generateEnvCmd)
}

func runGenerateEnv(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")

	if err := config.GenerateEnvFile(output); err != nil {
		return err
	}
	fmt.Printf("Generated environment file: %s\n", output)
	fmt.Println("Please edit this file and rename it to .env")
	return nil
}
