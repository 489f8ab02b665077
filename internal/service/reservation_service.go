package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tablebook/internal/admission"
	"tablebook/internal/calendar"
	"tablebook/internal/database"
	"tablebook/internal/domain"
	"tablebook/internal/events"
	"tablebook/internal/metrics"
	"tablebook/internal/models"
	"tablebook/internal/payments"
	"tablebook/internal/policy"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReservationService wires the admission pipeline and the booking lifecycle
// over the store, settings snapshots and the payment collaborator. Event
// publishing and sheet sync are best-effort and never fail the primary
// operation.
type ReservationService struct {
	repo           domain.Repository
	settings       domain.SettingsService
	payments       domain.PaymentProvider
	eventBus       domain.EventPublisher
	syncWorker     domain.SyncWorker
	windowDays     int
	noShowFeeCents int64
	now            func() time.Time
	logger         *zerolog.Logger
}

func NewReservationService(
	repo domain.Repository,
	settingsSvc domain.SettingsService,
	paymentProvider domain.PaymentProvider,
	eventBus domain.EventPublisher,
	syncWorker domain.SyncWorker,
	windowDays int,
	noShowFeeCents int64,
	logger *zerolog.Logger,
) *ReservationService {
	if windowDays <= 0 {
		windowDays = models.DefaultBookingWindowDays
	}
	return &ReservationService{
		repo:           repo,
		settings:       settingsSvc,
		payments:       paymentProvider,
		eventBus:       eventBus,
		syncWorker:     syncWorker,
		windowDays:     windowDays,
		noShowFeeCents: noShowFeeCents,
		now:            time.Now,
		logger:         logger,
	}
}

// controller assembles an admission controller from the current settings
// snapshots. Each call re-reads so settings changes take effect immediately.
func (s *ReservationService) controller(ctx context.Context) (*admission.Controller, error) {
	closures, _, err := s.settings.ClosureSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load closure settings: %w", err)
	}
	availability, _, err := s.settings.AvailabilitySettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load availability settings: %w", err)
	}
	model, _, err := s.settings.CapacityModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("load capacity model: %w", err)
	}

	return admission.NewController(calendar.New(closures, availability), model), nil
}

func (s *ReservationService) validateRequestDate(date time.Time) error {
	maxDate := s.now().AddDate(0, 0, s.windowDays)
	if date.After(maxDate) {
		return database.ErrDateTooFar
	}
	return nil
}

// CheckAvailability runs an advisory admission check against the current
// bookings. The create path repeats the check inside the insert transaction.
func (s *ReservationService) CheckAvailability(ctx context.Context, req admission.Request) (admission.Decision, error) {
	if err := s.validateRequestDate(req.Date); err != nil {
		return admission.Decision{}, err
	}

	ctrl, err := s.controller(ctx)
	if err != nil {
		return admission.Decision{}, err
	}

	existing, err := s.repo.ListBookings(ctx, req.Date, req.Type)
	if err != nil {
		return admission.Decision{}, err
	}

	decision, err := ctrl.Check(existing, req, s.now())
	if err != nil {
		return admission.Decision{}, err
	}

	outcome := "accepted"
	if !decision.Accepted {
		outcome = string(decision.Reason)
	}
	metrics.IncAdmission(string(req.Type), outcome)

	return decision, nil
}

// CreateReservation admits and persists a booking. A rejected admission is
// returned as a Decision with a nil booking and nil error; errors are
// reserved for infrastructure failures and invalid input.
func (s *ReservationService) CreateReservation(ctx context.Context, req domain.ReservationRequest) (*models.Booking, admission.Decision, error) {
	if req.PartySize <= 0 {
		return nil, admission.Decision{}, fmt.Errorf("party size must be positive, got %d", req.PartySize)
	}
	if strings.TrimSpace(req.GuestName) == "" {
		return nil, admission.Decision{}, errors.New("guest name is required")
	}
	if _, err := models.ParseClock(req.Time); err != nil {
		return nil, admission.Decision{}, err
	}
	if err := s.validateRequestDate(req.Date); err != nil {
		return nil, admission.Decision{}, err
	}

	ctrl, err := s.controller(ctx)
	if err != nil {
		return nil, admission.Decision{}, err
	}

	admReq := admission.Request{
		Type:      req.Type,
		Date:      req.Date,
		Time:      req.Time,
		PartySize: req.PartySize,
	}

	confirmation, _, err := s.settings.ConfirmationSettings(ctx)
	if err != nil {
		return nil, admission.Decision{}, fmt.Errorf("load confirmation settings: %w", err)
	}
	status, code := policy.NewConfirmationPolicy(confirmation).InitialStatus(req.Type)

	now := s.now()
	booking := &models.Booking{
		PublicID:         uuid.NewString(),
		Type:             req.Type,
		GuestName:        req.GuestName,
		Phone:            req.Phone,
		Email:            req.Email,
		Date:             req.Date,
		Time:             req.Time,
		PartySize:        req.PartySize,
		Status:           status,
		ConfirmationCode: code,
		PaymentStatus:    req.PaymentStatus,
		ChargeID:         req.ChargeID,
		PrepaymentCents:  req.PrepaymentCents,
		CreatedAt:        now,
		UpdatedAt:        now,
		Version:          1,
	}
	if booking.PaymentStatus == "" {
		booking.PaymentStatus = models.PaymentNone
	}

	// The admit callback re-runs the decision against the rows read inside
	// the insert transaction, closing the check-then-insert race.
	var decision admission.Decision
	err = s.repo.CreateReservationWithLock(ctx, booking, func(existing []models.Booking) error {
		d, checkErr := ctrl.Check(existing, admReq, now)
		if checkErr != nil {
			return checkErr
		}
		decision = d
		if !d.Accepted {
			return database.ErrNotAvailable
		}
		return nil
	})
	if errors.Is(err, database.ErrNotAvailable) {
		metrics.IncAdmission(string(req.Type), string(decision.Reason))
		return nil, decision, nil
	}
	if err != nil {
		return nil, admission.Decision{}, err
	}

	metrics.IncAdmission(string(req.Type), "accepted")
	metrics.IncReservationCreated(string(req.Type), booking.Status)

	s.publishEvent(events.EventReservationCreated, booking)
	if booking.Status == models.StatusConfirmed {
		s.publishEvent(events.EventReservationConfirmed, booking)
	}
	s.enqueueSync(ctx, booking)

	return booking, decision, nil
}

// transitionBooking loads a booking, moves it through the status machine and
// persists under optimistic versioning.
func (s *ReservationService) transitionBooking(ctx context.Context, id, version int64, to string) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := policy.Transition(booking, to, s.now()); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateBookingStatusWithVersion(ctx, booking, version); err != nil {
		return nil, err
	}

	return booking, nil
}

// ConfirmReservation confirms a pending booking, or re-confirms a cancelled
// one with a fresh confirmation code.
func (s *ReservationService) ConfirmReservation(ctx context.Context, id, version int64) (*models.Booking, error) {
	booking, err := s.transitionBooking(ctx, id, version, models.StatusConfirmed)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventReservationConfirmed, booking)
	s.enqueueSync(ctx, booking)
	return booking, nil
}

// CancelReservation cancels a booking and settles the refund the
// cancellation policy decides. Refund execution is best-effort: a payment
// failure leaves the booking cancelled with its payment state unchanged.
func (s *ReservationService) CancelReservation(ctx context.Context, id, version int64, reason string) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	refund, err := policy.DecideRefund(booking, now)
	if err != nil {
		return nil, err
	}

	if err := policy.Transition(booking, models.StatusCancelled, now); err != nil {
		return nil, err
	}
	booking.CancelReason = reason

	refundEvent := events.RefundEventPayload{
		BookingID:   booking.ID,
		Percentage:  refund.Percentage,
		AmountCents: refund.AmountCents,
		ChargeID:    refund.ChargeID,
	}

	if refund.AmountCents > 0 {
		result, payErr := s.payments.Refund(ctx, refund.ChargeID, refund.AmountCents)
		if payErr != nil || result.Status != payments.ResultSucceeded {
			refundEvent.Failure = refundFailure(payErr)
			s.logger.Error().
				Err(payErr).
				Int64("booking_id", booking.ID).
				Str("charge_id", refund.ChargeID).
				Int64("amount_cents", refund.AmountCents).
				Msg("refund execution failed")
		} else {
			policy.ApplyRefund(booking, refund.Percentage)
			refundEvent.Executed = true
		}
	}

	if err := s.repo.UpdateBookingStatusWithVersion(ctx, booking, version); err != nil {
		return nil, err
	}

	metrics.IncRefundDecision(refundTierLabel(refund.Percentage))
	s.publishEvent(events.EventReservationCancelled, booking)
	s.publishRefundEvent(refundEvent)
	s.enqueueSync(ctx, booking)

	return booking, nil
}

// MarkSeated records guest arrival.
func (s *ReservationService) MarkSeated(ctx context.Context, id, version int64) (*models.Booking, error) {
	booking, err := s.transitionBooking(ctx, id, version, models.StatusSeated)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventReservationSeated, booking)
	s.enqueueSync(ctx, booking)
	return booking, nil
}

// MarkCompleted closes out a seated booking.
func (s *ReservationService) MarkCompleted(ctx context.Context, id, version int64) (*models.Booking, error) {
	booking, err := s.transitionBooking(ctx, id, version, models.StatusCompleted)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventReservationCompleted, booking)
	s.enqueueSync(ctx, booking)
	return booking, nil
}

// MarkNoShow flags a no-show and attempts the dining no-show fee when one is
// configured and the booking carries no prepayment. The fee charge is
// best-effort.
func (s *ReservationService) MarkNoShow(ctx context.Context, id, version int64) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := policy.Transition(booking, models.StatusNoShow, s.now()); err != nil {
		return nil, err
	}

	if booking.Type == models.TypeDining && s.noShowFeeCents > 0 && booking.ChargeID == "" {
		result, payErr := s.payments.Charge(ctx, booking.Phone, "", s.noShowFeeCents)
		if payErr != nil || result.Status != payments.ResultSucceeded {
			s.logger.Error().
				Err(payErr).
				Int64("booking_id", booking.ID).
				Int64("amount_cents", s.noShowFeeCents).
				Msg("no-show fee charge failed")
		} else {
			booking.ChargeID = result.ChargeID
			booking.PaymentStatus = models.PaymentPaid
			booking.PrepaymentCents = s.noShowFeeCents
		}
	}

	if err := s.repo.UpdateBookingStatusWithVersion(ctx, booking, version); err != nil {
		return nil, err
	}

	s.publishEvent(events.EventReservationNoShow, booking)
	s.enqueueSync(ctx, booking)
	return booking, nil
}

func (s *ReservationService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

func (s *ReservationService) GetBookingByPublicID(ctx context.Context, publicID string) (*models.Booking, error) {
	return s.repo.GetBookingByPublicID(ctx, publicID)
}

func (s *ReservationService) publishEvent(eventType string, booking *models.Booking) {
	if s.eventBus == nil {
		return
	}

	payload := events.ReservationEventPayload{
		BookingID:        booking.ID,
		PublicID:         booking.PublicID,
		Type:             string(booking.Type),
		GuestName:        booking.GuestName,
		Date:             booking.Date.Format(models.DateLayout),
		Time:             booking.Time,
		PartySize:        booking.PartySize,
		Status:           booking.Status,
		ConfirmationCode: booking.ConfirmationCode,
		CancelReason:     booking.CancelReason,
		OccurredAt:       s.now(),
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *ReservationService) publishRefundEvent(payload events.RefundEventPayload) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(events.EventRefundDecided, payload); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", payload.BookingID).Msg("publish refund event error")
	}
}

func (s *ReservationService) enqueueSync(ctx context.Context, booking *models.Booking) {
	if s.syncWorker == nil {
		return
	}
	if err := s.syncWorker.EnqueueBookingSync(ctx, booking); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("sheets enqueue error")
	}
}

func refundFailure(err error) string {
	if err != nil {
		return err.Error()
	}
	return "refund declined"
}

func refundTierLabel(percentage int) string {
	switch {
	case percentage >= 100:
		return "full"
	case percentage > 0:
		return "partial"
	default:
		return "none"
	}
}
