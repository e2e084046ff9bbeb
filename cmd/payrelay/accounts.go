package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/smallbiznis/payrelay/internal/directory"
	directorydomain "github.com/smallbiznis/payrelay/internal/directory/domain"
	"github.com/smallbiznis/payrelay/internal/providers/sheets"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List the effective account directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			timeout, _ := cmd.Flags().GetDuration("timeout")

			var svc directorydomain.Service
			opts := append(coreOptions(),
				sheets.Module,
				directory.Module,
				fx.Populate(&svc),
				fx.NopLogger,
			)
			app := fx.New(opts...)
			if err := app.Err(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer func() {
				stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer stopCancel()
				_ = app.Stop(stopCtx)
			}()

			accounts := svc.ListAccounts(ctx)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ACCOUNT\tTEAM\tCONTACTS\tSOURCE")
			for _, acc := range accounts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					acc.AccountNumber, acc.TeamName, strings.Join(acc.ContactPhones, ","), acc.Source)
			}
			return w.Flush()
		},
	}

	cmd.Flags().Duration("timeout", 15*time.Second, "Deadline for loading the directory")

	return cmd
}
