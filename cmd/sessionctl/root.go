package main

import (
	"context"
	"io/fs"

	mindvoiceroot "github.com/set-night/mindvoice"
	"github.com/set-night/mindvoice/internal/config"
	"github.com/set-night/mindvoice/internal/repository"
	"github.com/spf13/cobra"
)

type storageFlags struct {
	databaseURL string
	dataDir     string
}

// opener connects the record store selected by the flags.
type opener func(ctx context.Context, flags storageFlags) (repository.RecordStore, error)

func openRecords(ctx context.Context, flags storageFlags) (repository.RecordStore, error) {
	migrationsFS, err := fs.Sub(mindvoiceroot.MigrationsFS, "migrations")
	if err != nil {
		return nil, err
	}
	return repository.Open(ctx, repository.OpenOptions{
		DatabaseURL: flags.databaseURL,
		DataDir:     flags.dataDir,
		Migrations:  migrationsFS,
	})
}

func newRootCmd(open opener) *cobra.Command {
	var flags storageFlags

	root := &cobra.Command{
		Use:   "sessionctl",
		Short: "Inspect and move the assistant's saved chats",
		Long: `sessionctl reads and writes the session record the assistant keeps in its
record store. It uses the same DATABASE_URL and DATA_DIR settings as the bot;
flags override them. Stop the bot before importing into a Badger store.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadStorage()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("database-url") {
				flags.databaseURL = cfg.DatabaseURL
			}
			if !cmd.Flags().Changed("data-dir") {
				flags.dataDir = cfg.DataDir
			}
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&flags.databaseURL, "database-url", "", "Postgres URL (default $DATABASE_URL; empty uses Badger)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory for Badger (default $DATA_DIR)")

	root.AddCommand(newSessionsCmd(open, &flags))
	return root
}
