package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusSeated    = "seated"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

const (
	PaymentNone              = "none"
	PaymentPending           = "pending"
	PaymentPaid              = "paid"
	PaymentPartiallyRefunded = "partially_refunded"
	PaymentRefunded          = "refunded"
)

const (
	// DateLayout is the canonical calendar date form used in settings and storage.
	DateLayout = "2006-01-02"

	// ClockLayout is the wall-clock form used for reservation times.
	ClockLayout = "15:04"
)

const (
	// DefaultSnapshotTTL время жизни кэша снапшотов настроек в Redis (секунды)
	DefaultSnapshotTTL = 5 * 60

	// DefaultBookingWindowDays максимальный горизонт бронирования
	DefaultBookingWindowDays = 90

	// WorkerQueueSize размер очереди воркера синхронизации
	WorkerQueueSize = 1000

	// ConfirmationCodeLength длина кода подтверждения
	ConfirmationCodeLength = 8

	// RateLimitRPS и RateLimitBurst значения по умолчанию для API
	RateLimitRPS   = 10
	RateLimitBurst = 20
)
