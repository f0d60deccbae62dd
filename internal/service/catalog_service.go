package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"tablebook/internal/domain"
	"tablebook/internal/events"
	"tablebook/internal/models"
)

// CatalogService owns restaurants and tables. Restaurants are cached in
// memory so request validation does not touch storage; tables are always
// read fresh.
type CatalogService struct {
	repo     domain.Repository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger

	mu          sync.RWMutex
	restaurants map[int64]models.Restaurant
}

func NewCatalogService(repo domain.Repository, eventBus domain.EventPublisher, logger *zerolog.Logger) *CatalogService {
	return &CatalogService{
		repo:        repo,
		eventBus:    eventBus,
		logger:      logger,
		restaurants: make(map[int64]models.Restaurant),
	}
}

// SyncFromConfig upserts the configured restaurants and creates tables that
// do not exist yet. Existing tables keep their stored capacity and active
// flag, staff edits win over the seed file.
func (s *CatalogService) SyncFromConfig(ctx context.Context, restaurants []models.Restaurant) error {
	for i := range restaurants {
		r := restaurants[i]
		r.ApplyDefaults()
		if _, _, err := r.Hours(); err != nil {
			return domain.InvalidRequestf("restaurant %d: %v", r.ID, err)
		}
		if err := s.repo.UpsertRestaurant(ctx, &r); err != nil {
			return fmt.Errorf("sync restaurant %d: %w", r.ID, err)
		}

		created := 0
		for _, seed := range r.Tables {
			_, err := s.repo.GetTableByNumber(ctx, r.ID, seed.Number)
			if err == nil {
				continue
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("sync table %s of restaurant %d: %w", seed.Number, r.ID, err)
			}
			table := &models.Table{
				RestaurantID: r.ID,
				Number:       seed.Number,
				Capacity:     seed.Capacity,
				Location:     seed.Location,
				IsActive:     true,
			}
			if err := s.repo.CreateTable(ctx, table); err != nil {
				return fmt.Errorf("create table %s of restaurant %d: %w", seed.Number, r.ID, err)
			}
			created++
		}

		s.logger.Info().
			Int64("restaurant_id", r.ID).
			Str("name", r.Name).
			Int("tables_created", created).
			Msg("Restaurant synced")
	}

	return s.Refresh(ctx)
}

// Refresh reloads the restaurant cache from storage.
func (s *CatalogService) Refresh(ctx context.Context) error {
	list, err := s.repo.ListRestaurants(ctx)
	if err != nil {
		return err
	}

	fresh := make(map[int64]models.Restaurant, len(list))
	for _, r := range list {
		r.ApplyDefaults()
		fresh[r.ID] = *r
	}

	s.mu.Lock()
	s.restaurants = fresh
	s.mu.Unlock()
	return nil
}

func (s *CatalogService) GetRestaurant(ctx context.Context, id int64) (*models.Restaurant, error) {
	s.mu.RLock()
	r, ok := s.restaurants[id]
	s.mu.RUnlock()
	if ok {
		return &r, nil
	}

	loaded, err := s.repo.GetRestaurant(ctx, id)
	if err != nil {
		return nil, err
	}
	loaded.ApplyDefaults()

	s.mu.Lock()
	s.restaurants[id] = *loaded
	s.mu.Unlock()
	return loaded, nil
}

func (s *CatalogService) ListRestaurants(ctx context.Context) ([]*models.Restaurant, error) {
	return s.repo.ListRestaurants(ctx)
}

func (s *CatalogService) ListTables(ctx context.Context, restaurantID int64) ([]*models.Table, error) {
	if _, err := s.GetRestaurant(ctx, restaurantID); err != nil {
		return nil, err
	}
	return s.repo.ListTables(ctx, restaurantID)
}

// SetTableActive takes effect for the next booking decision only.
func (s *CatalogService) SetTableActive(ctx context.Context, tableID int64, active bool) (*models.Table, error) {
	if err := s.repo.SetTableActive(ctx, tableID, active); err != nil {
		return nil, err
	}
	return s.tableUpdated(ctx, tableID)
}

// SetTableCapacity never touches bookings already made on the table.
func (s *CatalogService) SetTableCapacity(ctx context.Context, tableID int64, capacity int) (*models.Table, error) {
	if capacity <= 0 {
		return nil, domain.InvalidRequestf("capacity must be positive, got %d", capacity)
	}
	if err := s.repo.SetTableCapacity(ctx, tableID, capacity); err != nil {
		return nil, err
	}
	return s.tableUpdated(ctx, tableID)
}

func (s *CatalogService) tableUpdated(ctx context.Context, tableID int64) (*models.Table, error) {
	table, err := s.repo.GetTable(ctx, tableID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("table_id", table.ID).
		Str("table_number", table.Number).
		Int("capacity", table.Capacity).
		Bool("is_active", table.IsActive).
		Msg("Table updated")

	if s.eventBus != nil {
		payload := events.TableEventPayload{
			TableID:      table.ID,
			RestaurantID: table.RestaurantID,
			TableNumber:  table.Number,
			Capacity:     table.Capacity,
			IsActive:     table.IsActive,
		}
		if err := s.eventBus.PublishJSON(events.EventTableUpdated, payload); err != nil {
			s.logger.Error().Err(err).Int64("table_id", table.ID).Msg("publish event error")
		}
	}
	return table, nil
}
