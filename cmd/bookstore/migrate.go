package main

import (
	"fmt"

	"github.com/safar/go-bookstore/internal/config"
	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/migrations"
	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or revert the database schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{migrations.Up, migrations.Down},
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(config.LogConfig{Level: "info"})
			direction := args[0]

			dbCfg := config.LoadDatabase()
			db, err := database.NewConnection(&dbCfg)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := migrations.Run(cmd.Context(), db, direction)
			for _, name := range applied {
				log.WithField("file", name).Info("ran migration")
			}
			if err != nil {
				return fmt.Errorf("migrate %s: %w", direction, err)
			}

			log.Infof("successfully ran %d migration(s) %s", len(applied), direction)
			return nil
		},
	}
}
