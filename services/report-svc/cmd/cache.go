package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	reportsvc "farmreport/services/report-svc"
	"farmreport/services/report-svc/internal/service"
)

func newCacheCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Invalidate cached report data",
	}

	flush := &cobra.Command{
		Use:   "flush",
		Short: "Remove every cached key of the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			app, err := reportsvc.Build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			n, err := app.Service.FlushCache(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d chaves removidas\n", n)
			return nil
		},
	}

	forget := &cobra.Command{
		Use:   "forget <module>",
		Short: "Remove cached keys of one module: " + strings.Join(service.CacheModules(), ", "),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			app, err := reportsvc.Build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			n, err := app.Service.InvalidateCache(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chaves removidas\n", args[0], n)
			return nil
		},
	}

	cmd.AddCommand(flush, forget)
	return cmd
}
