package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tablebook/internal/app"
	"tablebook/internal/database"
)

func newBackupCmd(opts *rootOptions) *cobra.Command {
	var list bool
	c := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the SQLite database into backup.storage_path",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if a.SQLite == nil {
					return errors.New("backups are only supported for the sqlite driver")
				}
				svc := database.NewBackupService(a.SQLite, a.Config.Backup, a.Logger)
				if list {
					backups, err := svc.ListBackups()
					if err != nil {
						return err
					}
					for _, b := range backups {
						fmt.Fprintln(cmd.OutOrStdout(), b)
					}
					return nil
				}

				path, err := svc.PerformBackup(ctx)
				if err != nil {
					return err
				}
				svc.CleanupOldBackups()
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}
	c.Flags().BoolVar(&list, "list", false, "list existing backups, newest first")
	return c
}
