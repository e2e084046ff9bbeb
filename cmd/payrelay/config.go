package main

import (
	"encoding/json"
	"fmt"

	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate configuration and print the redacted summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			out, err := json.MarshalIndent(cfg.Summary(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return nil
		},
	}
}
