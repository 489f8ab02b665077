package domain

import (
	"context"
	"time"

	"tablebook/internal/admission"
	"tablebook/internal/models"
	"tablebook/internal/payments"
	"tablebook/internal/settings"
)

// Repository is the booking and settings persistence boundary.
type Repository interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingByPublicID(ctx context.Context, publicID string) (*models.Booking, error)
	ListBookings(ctx context.Context, date time.Time, typ models.ReservationType) ([]models.Booking, error)
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]models.Booking, error)
	GetDailyBookings(ctx context.Context, start, end time.Time) (map[string][]models.Booking, error)
	CreateReservationWithLock(ctx context.Context, booking *models.Booking, admit func(existing []models.Booking) error) error
	UpdateBookingStatusWithVersion(ctx context.Context, booking *models.Booking, expectedVersion int64) error
	GetSettings(ctx context.Context, key string) ([]byte, error)
	UpsertSettings(ctx context.Context, key string, payload []byte) error
}

// SettingsCache holds marshaled settings snapshots in front of the store.
type SettingsCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, payload []byte) error
	Invalidate(ctx context.Context, key string) error
}

// SettingsService resolves each settings concern through the cache, store,
// environment and hardcoded-default tiers, and applies validated upserts.
type SettingsService interface {
	ClosureSettings(ctx context.Context) (settings.ClosureSettings, settings.Source, error)
	AvailabilitySettings(ctx context.Context) (settings.AvailabilitySettings, settings.Source, error)
	CapacityModel(ctx context.Context) (settings.CapacityModel, settings.Source, error)
	ConfirmationSettings(ctx context.Context) (settings.ConfirmationSettings, settings.Source, error)
	UpdateClosureSettings(ctx context.Context, s settings.ClosureSettings) error
	UpdateAvailabilitySettings(ctx context.Context, s settings.AvailabilitySettings) error
	UpdateCapacityModel(ctx context.Context, m settings.CapacityModel) error
	UpdateConfirmationSettings(ctx context.Context, s settings.ConfirmationSettings) error
}

// ReservationService runs the admission pipeline and the booking lifecycle.
type ReservationService interface {
	CheckAvailability(ctx context.Context, req admission.Request) (admission.Decision, error)
	CreateReservation(ctx context.Context, req ReservationRequest) (*models.Booking, admission.Decision, error)
	ConfirmReservation(ctx context.Context, id, version int64) (*models.Booking, error)
	CancelReservation(ctx context.Context, id, version int64, reason string) (*models.Booking, error)
	MarkSeated(ctx context.Context, id, version int64) (*models.Booking, error)
	MarkCompleted(ctx context.Context, id, version int64) (*models.Booking, error)
	MarkNoShow(ctx context.Context, id, version int64) (*models.Booking, error)
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingByPublicID(ctx context.Context, publicID string) (*models.Booking, error)
}

// ReservationRequest is the inbound request to create a booking.
type ReservationRequest struct {
	Type            models.ReservationType
	Date            time.Time
	Time            string
	PartySize       int
	GuestName       string
	Phone           string
	Email           string
	PrepaymentCents int64
	ChargeID        string
	PaymentStatus   string
}

// EventPublisher fans domain events out to subscribers, best-effort.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// PaymentProvider executes charges and refunds the policies decide on.
type PaymentProvider interface {
	Charge(ctx context.Context, customerRef, paymentMethodRef string, amountCents int64) (payments.ChargeResult, error)
	Refund(ctx context.Context, chargeRef string, amountCents int64) (payments.RefundResult, error)
}

// SheetsWriter mirrors bookings into a spreadsheet for the owner.
type SheetsWriter interface {
	ReplaceBookings(ctx context.Context, bookings []models.Booking) error
	AppendBooking(ctx context.Context, booking *models.Booking) error
}

// ReportWriter produces offline booking reports.
type ReportWriter interface {
	WriteBookingsReport(path string, daily map[string][]models.Booking) error
}

// SyncWorker accepts background sync and export tasks.
type SyncWorker interface {
	EnqueueBookingSync(ctx context.Context, booking *models.Booking) error
	EnqueueRangeExport(ctx context.Context, start, end time.Time) error
}
