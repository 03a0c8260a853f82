package main

import (
	"github.com/safar/go-bookstore/internal/config"
	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/seed"
	"github.com/spf13/cobra"
)

func newSeedCommand() *cobra.Command {
	var admin seed.Admin

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the starter catalog and, optionally, an admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := newLogger(config.LogConfig{Level: "info"})
			ctx := cmd.Context()

			dbCfg := config.LoadDatabase()
			db, err := database.NewConnection(&dbCfg)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := seed.Catalog(ctx, db, log)
			if err != nil {
				return err
			}
			log.WithField("books", n).Info("catalog seeded")

			if admin.Email == "" {
				return nil
			}
			user, err := seed.UpsertAdmin(ctx, db, admin)
			if err != nil {
				return err
			}
			log.WithField("email", user.Email).Info("admin account ready")
			return nil
		},
	}

	cmd.Flags().StringVar(&admin.Email, "admin-email", "", "email of the admin account to create or promote")
	cmd.Flags().StringVar(&admin.Password, "admin-password", "", "password for the admin account")
	cmd.Flags().StringVar(&admin.Name, "admin-name", "Administrator", "display name for the admin account")
	cmd.MarkFlagsRequiredTogether("admin-email", "admin-password")

	return cmd
}
