package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tablebook/internal/app"
	"tablebook/internal/domain"
	"tablebook/internal/export"
	"tablebook/internal/models"
)

type slotFlags struct {
	restaurantID int64
	date         string
	clock        string
	partySize    int
	duration     int
}

func (f *slotFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.restaurantID, "restaurant", 0, "restaurant id")
	cmd.Flags().StringVar(&f.date, "date", "", "booking date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.clock, "time", "", "start time (HH:MM)")
	cmd.Flags().IntVar(&f.partySize, "party", 2, "party size")
	cmd.Flags().IntVar(&f.duration, "duration", 0, "duration in minutes, 0 for the restaurant default")
	_ = cmd.MarkFlagRequired("restaurant")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("time")
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var slot slotFlags
	c := &cobra.Command{
		Use:   "check",
		Short: "Check whether a party can be seated and list alternatives",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				res, err := a.Bookings.CheckAvailability(ctx, domain.AvailabilityRequest{
					RestaurantID: slot.restaurantID,
					Date:         slot.date,
					Time:         slot.clock,
					PartySize:    slot.partySize,
					Duration:     slot.duration,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
	slot.register(c)
	return c
}

func newBookCmd(opts *rootOptions) *cobra.Command {
	var (
		slot     slotFlags
		phone    string
		name     string
		email    string
		requests string
	)
	c := &cobra.Command{
		Use:   "book",
		Short: "Create a booking on the best fitting free table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				booking, err := a.Bookings.CreateBooking(ctx, domain.BookingRequest{
					RestaurantID:    slot.restaurantID,
					Date:            slot.date,
					Time:            slot.clock,
					PartySize:       slot.partySize,
					Duration:        slot.duration,
					CustomerPhone:   phone,
					CustomerName:    name,
					CustomerEmail:   email,
					SpecialRequests: requests,
				})
				var unavailable *domain.UnavailableError
				if errors.As(err, &unavailable) {
					_ = printJSON(cmd, map[string]any{"suggested_times": unavailable.Suggestions})
				}
				if err != nil {
					return err
				}
				return printJSON(cmd, booking)
			})
		},
	}
	slot.register(c)
	c.Flags().StringVar(&phone, "phone", "", "customer phone")
	c.Flags().StringVar(&name, "name", "", "customer name")
	c.Flags().StringVar(&email, "email", "", "customer email")
	c.Flags().StringVar(&requests, "requests", "", "special requests")
	_ = c.MarkFlagRequired("phone")
	return c
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <booking-id> <status>",
		Short: "Move a booking through its lifecycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				booking, err := a.Bookings.UpdateBookingStatus(ctx, id, models.BookingStatus(args[1]))
				if err != nil {
					return err
				}
				return printJSON(cmd, booking)
			})
		},
	}
}

func newScheduleCmd(opts *rootOptions) *cobra.Command {
	var (
		restaurantID int64
		tableID      int64
		date         string
		xlsx         bool
		dir          string
	)
	c := &cobra.Command{
		Use:   "schedule",
		Short: "Show the bookings of a restaurant or a single table for one day",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (restaurantID == 0) == (tableID == 0) {
				return errors.New("set exactly one of --restaurant or --table")
			}
			if xlsx && restaurantID == 0 {
				return errors.New("--xlsx needs --restaurant")
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if xlsx {
					if dir == "" {
						dir = a.Config.Exports.Path
					}
					path, err := export.NewScheduleExporter(a.Catalog, a.Bookings, dir, a.Logger).Export(ctx, restaurantID, date)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), path)
					return nil
				}

				var (
					entries []models.ScheduleEntry
					err     error
				)
				if tableID != 0 {
					entries, err = a.Bookings.TableSchedule(ctx, tableID, date)
				} else {
					entries, err = a.Bookings.RestaurantSchedule(ctx, restaurantID, date)
				}
				if err != nil {
					return err
				}
				if entries == nil {
					entries = []models.ScheduleEntry{}
				}
				return printJSON(cmd, entries)
			})
		},
	}
	c.Flags().Int64Var(&restaurantID, "restaurant", 0, "restaurant id")
	c.Flags().Int64Var(&tableID, "table", 0, "table id")
	c.Flags().StringVar(&date, "date", "", "day (YYYY-MM-DD)")
	c.Flags().BoolVar(&xlsx, "xlsx", false, "write an xlsx workbook instead of JSON")
	c.Flags().StringVar(&dir, "dir", "", "export directory, defaults to exports.path")
	_ = c.MarkFlagRequired("date")
	return c
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
