package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/opticfit/internal/admin"
	"github.com/JonMunkholm/opticfit/internal/database"
)

func newResetCmd(a *app) *cobra.Command {
	var (
		yes   bool
		audit bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every catalog row",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to reset without --yes")
			}
			cfg, err := a.config("")
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("DATABASE_URL is required")
			}
			pool, err := database.Connect(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			r := &admin.Resetter{DB: pool}
			if err := r.ResetCatalog(cmd.Context(), audit); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "catalog reset")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")
	cmd.Flags().BoolVar(&audit, "audit", false, "Also clear the audit log")
	return cmd
}
