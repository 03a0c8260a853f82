package main

import (
	"os"

	"github.com/safar/go-bookstore/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logrus.WithError(err).Error("bookstore exited")
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "bookstore",
		Short:         "Online bookstore backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCommand(), newMigrateCommand(), newSeedCommand())
	return root
}

func newLogger(cfg config.LogConfig) *logrus.Entry {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		log.WithField("level", cfg.Level).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return logrus.NewEntry(log).WithField("service", "bookstore")
}
