package models

const (
	// DefaultDurationMinutes длительность бронирования, если ресторан не задал свою
	DefaultDurationMinutes = 90

	// DefaultMaxPartySize максимальный размер компании по умолчанию
	DefaultMaxPartySize = 12

	// DefaultSuggestWindowMinutes окно поиска альтернативного времени в обе стороны
	DefaultSuggestWindowMinutes = 120

	// DefaultSuggestStepMinutes шаг перебора альтернативного времени
	DefaultSuggestStepMinutes = 30

	// DefaultMaxBookingDays горизонт бронирования в днях
	DefaultMaxBookingDays = 90

	// DateLayout формат даты бронирования
	DateLayout = "2006-01-02"
)

const (
	OutboxPending   = "pending"
	OutboxRetry     = "retry"
	OutboxCompleted = "completed"
	OutboxFailed    = "failed"
)
