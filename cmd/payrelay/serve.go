package main

import (
	"os"

	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the callback HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				if err := os.Setenv("HTTP_ADDR", addr); err != nil {
					return err
				}
			}

			app := fx.New(serveOptions(config.Load())...)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}

	cmd.Flags().String("addr", "", "Listen address, overrides HTTP_ADDR")

	return cmd
}
