package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"tablebook/internal/models"
	"tablebook/internal/scheduling"
)

// Suggest lists alternative start times near requested with at least one
// free table, nearest first.
func (s *BookingService) Suggest(ctx context.Context, restaurantID int64, date string, partySize, requested, duration int) ([]models.SlotSuggestion, error) {
	q, err := s.resolve(ctx, restaurantID, date, models.FormatClock(requested), partySize, duration)
	if err != nil {
		return nil, err
	}
	return s.suggest(ctx, q)
}

func (s *BookingService) suggest(ctx context.Context, q *slotQuery) ([]models.SlotSuggestion, error) {
	starts := scheduling.CandidateStarts(scheduling.SlotWindow{
		Requested: q.slot.Start,
		Duration:  q.slot.Duration(),
		Open:      q.open,
		Close:     q.close,
		Window:    s.cfg.SuggestWindowMinutes,
		Step:      s.cfg.SuggestStepMinutes,
		NotBefore: s.earliestStart(q),
	})
	if len(starts) == 0 {
		return []models.SlotSuggestion{}, nil
	}

	// each goroutine owns one index, so completion order does not matter
	slots := make([]models.SlotSuggestion, len(starts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.SuggestConcurrency)
	for i, start := range starts {
		i, start := i, start
		g.Go(func() error {
			free, err := s.AvailableTables(gctx, q.restaurant.ID, q.date, start, q.slot.Duration(), q.partySize)
			if err != nil {
				return err
			}
			slots[i] = models.SlotSuggestion{
				Time:            models.FormatClock(start),
				StartMinute:     start,
				AvailableTables: len(free),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return scheduling.RankSuggestions(slots, q.slot.Start), nil
}

// earliestStart is the first minute checkHorizon still accepts on q.date.
func (s *BookingService) earliestStart(q *slotQuery) int {
	local := s.now().In(q.restaurant.Location())
	if local.Format(models.DateLayout) != q.date {
		return 0
	}
	return local.Hour()*60 + local.Minute()
}
