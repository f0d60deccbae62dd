package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tablebook/internal/domain"
	"tablebook/internal/models"
)

const recordTimeout = 5 * time.Second

// RecordToOutbox subscribes to every scheduler event and stores it in the
// outbox so the delivery worker can hand it to the broker later.
func RecordToOutbox(bus *EventBus, repo domain.OutboxRepository, logger *zerolog.Logger) {
	for _, eventType := range Types() {
		bus.Subscribe(eventType, func(event *Event) error {
			ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
			defer cancel()

			task := &models.OutboxTask{
				EventType: event.Type,
				BookingID: bookingID(event.Payload),
				Payload:   string(event.Payload),
				Status:    models.OutboxPending,
			}
			if err := repo.CreateOutboxTask(ctx, task); err != nil {
				logger.Error().Err(err).Str("event", event.Type).Msg("Failed to record event in outbox")
				return fmt.Errorf("record %s: %w", event.Type, err)
			}
			event.ID = task.ID
			return nil
		})
	}
}

func bookingID(payload []byte) int64 {
	var probe struct {
		BookingID int64 `json:"booking_id"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return 0
	}
	return probe.BookingID
}
