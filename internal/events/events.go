package events

import (
	"encoding/json"
	"sync"
	"time"

	"tablebook/internal/models"
)

const (
	EventBookingCreated       = "booking.created"
	EventBookingStatusChanged = "booking.status_changed"
	EventTableUpdated         = "table.updated"
)

// Types lists every event type the scheduler emits.
func Types() []string {
	return []string{EventBookingCreated, EventBookingStatusChanged, EventTableUpdated}
}

// BookingEventPayload describes the minimal booking snapshot for event consumers
// such as SMS confirmation senders.
type BookingEventPayload struct {
	BookingID     int64                `json:"booking_id"`
	RestaurantID  int64                `json:"restaurant_id"`
	TableID       int64                `json:"table_id"`
	TableNumber   string               `json:"table_number"`
	CustomerPhone string               `json:"customer_phone"`
	CustomerName  string               `json:"customer_name,omitempty"`
	Date          string               `json:"booking_date"`
	Start         string               `json:"start"`
	End           string               `json:"end"`
	PartySize     int                  `json:"party_size"`
	Status        models.BookingStatus `json:"status"`
	PrevStatus    models.BookingStatus `json:"previous_status,omitempty"`
}

// NewBookingEventPayload snapshots a booking.
func NewBookingEventPayload(b *models.Booking) BookingEventPayload {
	return BookingEventPayload{
		BookingID:     b.ID,
		RestaurantID:  b.RestaurantID,
		TableID:       b.TableID,
		TableNumber:   b.TableNumber,
		CustomerPhone: b.CustomerPhone,
		CustomerName:  b.CustomerName,
		Date:          b.Date,
		Start:         b.StartClock(),
		End:           b.EndClock(),
		PartySize:     b.PartySize,
		Status:        b.Status,
	}
}

// TableEventPayload is emitted when staff edit a table.
type TableEventPayload struct {
	TableID      int64  `json:"table_id"`
	RestaurantID int64  `json:"restaurant_id"`
	TableNumber  string `json:"table_number"`
	Capacity     int    `json:"capacity"`
	IsActive     bool   `json:"is_active"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type and returns the first
// handler error. Every handler runs regardless.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var first error
	for _, handler := range handlers {
		if err := handler(event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	return b.Publish(&event)
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
