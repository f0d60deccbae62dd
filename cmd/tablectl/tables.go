package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tablebook/internal/app"
)

func newTablesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Inspect and edit the table catalog",
	}
	cmd.AddCommand(newTablesListCmd(opts))
	cmd.AddCommand(newTableActiveCmd(opts, "activate", true))
	cmd.AddCommand(newTableActiveCmd(opts, "deactivate", false))
	cmd.AddCommand(newTableCapacityCmd(opts))
	return cmd
}

func newTablesListCmd(opts *rootOptions) *cobra.Command {
	var restaurantID int64
	c := &cobra.Command{
		Use:   "list",
		Short: "List tables of a restaurant",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				tables, err := a.Catalog.ListTables(ctx, restaurantID)
				if err != nil {
					return err
				}
				return printJSON(cmd, tables)
			})
		},
	}
	c.Flags().Int64Var(&restaurantID, "restaurant", 0, "restaurant id")
	_ = c.MarkFlagRequired("restaurant")
	return c
}

func newTableActiveCmd(opts *rootOptions, use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <table-id>",
		Short: fmt.Sprintf("Mark a table %sd for future bookings", use),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				table, err := a.Catalog.SetTableActive(ctx, id, active)
				if err != nil {
					return err
				}
				return printJSON(cmd, table)
			})
		},
	}
}

func newTableCapacityCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "capacity <table-id> <seats>",
		Short: "Change how many guests a table seats",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			capacity, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid capacity %q", args[1])
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				table, err := a.Catalog.SetTableCapacity(ctx, id, capacity)
				if err != nil {
					return err
				}
				return printJSON(cmd, table)
			})
		},
	}
}
