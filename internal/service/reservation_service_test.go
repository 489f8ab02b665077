package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"tablebook/internal/admission"
	"tablebook/internal/database"
	"tablebook/internal/domain"
	"tablebook/internal/events"
	"tablebook/internal/models"
	"tablebook/internal/payments"
	"tablebook/internal/settings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// testNow is a Tuesday morning; the default availability offers dining every
// day and omakase on Thursdays.
var testNow = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

type settingsStub struct {
	closure      settings.ClosureSettings
	availability settings.AvailabilitySettings
	capacity     settings.CapacityModel
	confirmation settings.ConfirmationSettings
}

func defaultSettingsStub() *settingsStub {
	return &settingsStub{
		closure:      settings.DefaultClosure(),
		availability: settings.DefaultAvailability(),
		capacity:     settings.DefaultCapacity(),
		confirmation: settings.DefaultConfirmation(),
	}
}

func (s *settingsStub) ClosureSettings(ctx context.Context) (settings.ClosureSettings, settings.Source, error) {
	return s.closure, settings.SourceDefault, nil
}

func (s *settingsStub) AvailabilitySettings(ctx context.Context) (settings.AvailabilitySettings, settings.Source, error) {
	return s.availability, settings.SourceDefault, nil
}

func (s *settingsStub) CapacityModel(ctx context.Context) (settings.CapacityModel, settings.Source, error) {
	return s.capacity, settings.SourceDefault, nil
}

func (s *settingsStub) ConfirmationSettings(ctx context.Context) (settings.ConfirmationSettings, settings.Source, error) {
	return s.confirmation, settings.SourceDefault, nil
}

func (s *settingsStub) UpdateClosureSettings(ctx context.Context, cfg settings.ClosureSettings) error {
	s.closure = cfg
	return nil
}

func (s *settingsStub) UpdateAvailabilitySettings(ctx context.Context, cfg settings.AvailabilitySettings) error {
	s.availability = cfg
	return nil
}

func (s *settingsStub) UpdateCapacityModel(ctx context.Context, m settings.CapacityModel) error {
	s.capacity = m
	return nil
}

func (s *settingsStub) UpdateConfirmationSettings(ctx context.Context, cfg settings.ConfirmationSettings) error {
	s.confirmation = cfg
	return nil
}

func newTestService(repo domain.Repository, provider domain.PaymentProvider, bus domain.EventPublisher, noShowFeeCents int64) *ReservationService {
	logger := zerolog.New(io.Discard)
	svc := NewReservationService(repo, defaultSettingsStub(), provider, bus, nil, 90, noShowFeeCents, &logger)
	svc.now = func() time.Time { return testNow }
	return svc
}

func admitWith(existing []models.Booking, outcome error) func(mock.Arguments) {
	return func(args mock.Arguments) {
		admit := args.Get(2).(func([]models.Booking) error)
		err := admit(existing)
		if (err == nil) != (outcome == nil) {
			panic("admit callback outcome diverged from the mocked return")
		}
	}
}

func TestCreateReservation(t *testing.T) {
	ctx := context.Background()

	t.Run("DiningAutoConfirmed", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("CreateReservationWithLock", ctx, mock.Anything, mock.Anything).
			Run(admitWith(nil, nil)).Return(nil)

		svc := newTestService(repo, payments.NewMockProvider(), nil, 0)
		booking, decision, err := svc.CreateReservation(ctx, domain.ReservationRequest{
			Type:      models.TypeDining,
			Date:      time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC),
			Time:      "18:00",
			PartySize: 4,
			GuestName: "Mori",
			Phone:     "+81-90-0000-0001",
		})
		require.NoError(t, err)
		require.NotNil(t, booking)
		assert.True(t, decision.Accepted)
		assert.Equal(t, models.StatusConfirmed, booking.Status)
		assert.Len(t, booking.ConfirmationCode, models.ConfirmationCodeLength)
		assert.NotEmpty(t, booking.PublicID)
		assert.Equal(t, models.PaymentNone, booking.PaymentStatus)
		assert.Equal(t, int64(1), booking.Version)
		repo.AssertExpectations(t)
	})

	t.Run("OmakasePendingWithoutCode", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("CreateReservationWithLock", ctx, mock.Anything, mock.Anything).
			Run(admitWith(nil, nil)).Return(nil)

		svc := newTestService(repo, payments.NewMockProvider(), nil, 0)
		booking, decision, err := svc.CreateReservation(ctx, domain.ReservationRequest{
			Type:      models.TypeOmakase,
			Date:      time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC), // Thursday
			Time:      "17:00",
			PartySize: 2,
			GuestName: "Sato",
		})
		require.NoError(t, err)
		require.NotNil(t, booking)
		assert.True(t, decision.Accepted)
		assert.Equal(t, models.StatusPending, booking.Status)
		assert.Empty(t, booking.ConfirmationCode)
	})

	t.Run("RejectedInsideTransaction", func(t *testing.T) {
		// 22 of 24 flat dining seats already held when the insert runs.
		existing := []models.Booking{
			{Type: models.TypeDining, Date: time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC), Time: "18:00", PartySize: 12, Status: models.StatusConfirmed},
			{Type: models.TypeDining, Date: time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC), Time: "12:00", PartySize: 10, Status: models.StatusConfirmed},
		}
		repo := new(mockRepo)
		repo.On("CreateReservationWithLock", ctx, mock.Anything, mock.Anything).
			Run(admitWith(existing, database.ErrNotAvailable)).Return(database.ErrNotAvailable)

		svc := newTestService(repo, payments.NewMockProvider(), nil, 0)
		booking, decision, err := svc.CreateReservation(ctx, domain.ReservationRequest{
			Type:      models.TypeDining,
			Date:      time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC),
			Time:      "19:00",
			PartySize: 4,
			GuestName: "Abe",
		})
		require.NoError(t, err)
		assert.Nil(t, booking)
		assert.False(t, decision.Accepted)
		assert.Equal(t, admission.ReasonInsufficientCapacity, decision.Reason)
		assert.Equal(t, 2, decision.Shortfall)
	})

	t.Run("DateBeyondWindow", func(t *testing.T) {
		svc := newTestService(new(mockRepo), payments.NewMockProvider(), nil, 0)
		_, _, err := svc.CreateReservation(ctx, domain.ReservationRequest{
			Type:      models.TypeDining,
			Date:      testNow.AddDate(0, 0, 120),
			Time:      "18:00",
			PartySize: 2,
			GuestName: "Endo",
		})
		assert.True(t, errors.Is(err, database.ErrDateTooFar))
	})

	t.Run("InvalidInput", func(t *testing.T) {
		svc := newTestService(new(mockRepo), payments.NewMockProvider(), nil, 0)

		_, _, err := svc.CreateReservation(ctx, domain.ReservationRequest{
			Type: models.TypeDining, Date: testNow, Time: "18:00", PartySize: 0, GuestName: "x",
		})
		assert.Error(t, err)

		_, _, err = svc.CreateReservation(ctx, domain.ReservationRequest{
			Type: models.TypeDining, Date: testNow, Time: "25:99", PartySize: 2, GuestName: "x",
		})
		assert.Error(t, err)

		_, _, err = svc.CreateReservation(ctx, domain.ReservationRequest{
			Type: models.TypeDining, Date: testNow, Time: "18:00", PartySize: 2, GuestName: "  ",
		})
		assert.Error(t, err)
	})

	t.Run("PublishesCreatedEvent", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("CreateReservationWithLock", ctx, mock.Anything, mock.Anything).
			Run(admitWith(nil, nil)).Return(nil)

		bus := events.NewEventBus()
		var created []events.ReservationEventPayload
		bus.Subscribe(events.EventReservationCreated, func(e *events.Event) error {
			var p events.ReservationEventPayload
			if err := json.Unmarshal(e.Payload, &p); err != nil {
				return err
			}
			created = append(created, p)
			return nil
		})

		svc := newTestService(repo, payments.NewMockProvider(), bus, 0)
		booking, _, err := svc.CreateReservation(ctx, domain.ReservationRequest{
			Type:      models.TypeDining,
			Date:      time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC),
			Time:      "18:00",
			PartySize: 3,
			GuestName: "Ueda",
		})
		require.NoError(t, err)
		require.Len(t, created, 1)
		assert.Equal(t, booking.PublicID, created[0].PublicID)
		assert.Equal(t, "2026-09-02", created[0].Date)
	})
}

func TestCheckAvailability(t *testing.T) {
	ctx := context.Background()
	date := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)

	repo := new(mockRepo)
	repo.On("ListBookings", ctx, date, models.TypeDining).Return([]models.Booking{
		{Type: models.TypeDining, Date: date, Time: "18:00", PartySize: 20, Status: models.StatusConfirmed},
	}, nil)

	svc := newTestService(repo, payments.NewMockProvider(), nil, 0)
	decision, err := svc.CheckAvailability(ctx, admission.Request{
		Type: models.TypeDining, Date: date, Time: "19:00", PartySize: 4,
	})
	require.NoError(t, err)
	assert.True(t, decision.Accepted)
	assert.Equal(t, 24, decision.TotalCapacity)
	assert.Equal(t, 20, decision.ReservedSeats)
	assert.Equal(t, 4, decision.AvailableSeats)
}

func TestConfirmReservation(t *testing.T) {
	ctx := context.Background()

	t.Run("PendingGetsCode", func(t *testing.T) {
		booking := &models.Booking{
			ID: 7, Type: models.TypeOmakase, Status: models.StatusPending,
			Date: time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC), Time: "17:00", Version: 1,
		}
		repo := new(mockRepo)
		repo.On("GetBooking", ctx, int64(7)).Return(booking, nil)
		repo.On("UpdateBookingStatusWithVersion", ctx, booking, int64(1)).Return(nil)

		svc := newTestService(repo, payments.NewMockProvider(), nil, 0)
		got, err := svc.ConfirmReservation(ctx, 7, 1)
		require.NoError(t, err)
		assert.Equal(t, models.StatusConfirmed, got.Status)
		assert.Len(t, got.ConfirmationCode, models.ConfirmationCodeLength)
	})

	t.Run("ReconfirmIssuesFreshCode", func(t *testing.T) {
		booking := &models.Booking{
			ID: 8, Type: models.TypeOmakase, Status: models.StatusCancelled,
			ConfirmationCode: "OLDCODE1",
			Date:             time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC), Time: "17:00", Version: 3,
		}
		repo := new(mockRepo)
		repo.On("GetBooking", ctx, int64(8)).Return(booking, nil)
		repo.On("UpdateBookingStatusWithVersion", ctx, booking, int64(3)).Return(nil)

		svc := newTestService(repo, payments.NewMockProvider(), nil, 0)
		got, err := svc.ConfirmReservation(ctx, 8, 3)
		require.NoError(t, err)
		assert.Equal(t, models.StatusConfirmed, got.Status)
		assert.NotEqual(t, "OLDCODE1", got.ConfirmationCode)
	})

	t.Run("VersionConflictPropagates", func(t *testing.T) {
		booking := &models.Booking{
			ID: 9, Type: models.TypeOmakase, Status: models.StatusPending,
			Date: time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC), Time: "17:00", Version: 2,
		}
		repo := new(mockRepo)
		repo.On("GetBooking", ctx, int64(9)).Return(booking, nil)
		repo.On("UpdateBookingStatusWithVersion", ctx, booking, int64(1)).Return(database.ErrConcurrentModification)

		svc := newTestService(repo, payments.NewMockProvider(), nil, 0)
		_, err := svc.ConfirmReservation(ctx, 9, 1)
		assert.True(t, errors.Is(err, database.ErrConcurrentModification))
	})
}

func paidOmakaseBooking(id int64, date time.Time, clock string) *models.Booking {
	return &models.Booking{
		ID: id, Type: models.TypeOmakase, Status: models.StatusConfirmed,
		Date: date, Time: clock,
		PaymentStatus: models.PaymentPaid, ChargeID: "ch_test", PrepaymentCents: 10000,
		Version: 1,
	}
}

func TestCancelReservation(t *testing.T) {
	ctx := context.Background()

	t.Run("FullRefundBeyond48Hours", func(t *testing.T) {
		booking := paidOmakaseBooking(1, time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC), "17:00")
		repo := new(mockRepo)
		repo.On("GetBooking", ctx, int64(1)).Return(booking, nil)
		repo.On("UpdateBookingStatusWithVersion", ctx, booking, int64(1)).Return(nil)

		provider := payments.NewMockProvider()
		provider.RecordCharge("ch_test", 10000)

		svc := newTestService(repo, provider, nil, 0)
		got, err := svc.CancelReservation(ctx, 1, 1, "guest request")
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, got.Status)
		assert.Equal(t, "guest request", got.CancelReason)
		assert.Equal(t, 100, got.RefundPercentage)
		assert.Equal(t, models.PaymentRefunded, got.PaymentStatus)
		assert.Equal(t, int64(10000), provider.RefundedCents("ch_test"))
	})

	t.Run("PartialRefundInside48Hours", func(t *testing.T) {
		// 36 hours out from the fixed clock.
		booking := paidOmakaseBooking(2, time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC), "22:00")
		repo := new(mockRepo)
		repo.On("GetBooking", ctx, int64(2)).Return(booking, nil)
		repo.On("UpdateBookingStatusWithVersion", ctx, booking, int64(1)).Return(nil)

		provider := payments.NewMockProvider()
		provider.RecordCharge("ch_test", 10000)

		svc := newTestService(repo, provider, nil, 0)
		got, err := svc.CancelReservation(ctx, 2, 1, "")
		require.NoError(t, err)
		assert.Equal(t, 50, got.RefundPercentage)
		assert.Equal(t, models.PaymentPartiallyRefunded, got.PaymentStatus)
		assert.Equal(t, int64(5000), provider.RefundedCents("ch_test"))
	})

	t.Run("NoRefundInside24Hours", func(t *testing.T) {
		booking := paidOmakaseBooking(3, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), "20:00")
		repo := new(mockRepo)
		repo.On("GetBooking", ctx, int64(3)).Return(booking, nil)
		repo.On("UpdateBookingStatusWithVersion", ctx, booking, int64(1)).Return(nil)

		provider := payments.NewMockProvider()
		provider.RecordCharge("ch_test", 10000)

		svc := newTestService(repo, provider, nil, 0)
		got, err := svc.CancelReservation(ctx, 3, 1, "")
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, got.Status)
		assert.Equal(t, 0, got.RefundPercentage)
		assert.Equal(t, models.PaymentPaid, got.PaymentStatus)
		assert.Equal(t, int64(0), provider.RefundedCents("ch_test"))
	})

	t.Run("RefundFailureStillCancels", func(t *testing.T) {
		booking := paidOmakaseBooking(4, time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC), "17:00")
		repo := new(mockRepo)
		repo.On("GetBooking", ctx, int64(4)).Return(booking, nil)
		repo.On("UpdateBookingStatusWithVersion", ctx, booking, int64(1)).Return(nil)

		provider := payments.NewMockProvider()
		provider.FailRefunds = true

		bus := events.NewEventBus()
		var refunds []events.RefundEventPayload
		bus.Subscribe(events.EventRefundDecided, func(e *events.Event) error {
			var p events.RefundEventPayload
			if err := json.Unmarshal(e.Payload, &p); err != nil {
				return err
			}
			refunds = append(refunds, p)
			return nil
		})

		svc := newTestService(repo, provider, bus, 0)
		got, err := svc.CancelReservation(ctx, 4, 1, "")
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, got.Status)
		assert.Equal(t, models.PaymentPaid, got.PaymentStatus)
		assert.Equal(t, 0, got.RefundPercentage)
		require.Len(t, refunds, 1)
		assert.False(t, refunds[0].Executed)
		assert.NotEmpty(t, refunds[0].Failure)
	})

	t.Run("DiningCancellationNeverRefunds", func(t *testing.T) {
		booking := &models.Booking{
			ID: 5, Type: models.TypeDining, Status: models.StatusConfirmed,
			Date: time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC), Time: "18:00",
			PaymentStatus: models.PaymentPaid, ChargeID: "ch_d", PrepaymentCents: 5000,
			Version: 1,
		}
		repo := new(mockRepo)
		repo.On("GetBooking", ctx, int64(5)).Return(booking, nil)
		repo.On("UpdateBookingStatusWithVersion", ctx, booking, int64(1)).Return(nil)

		provider := payments.NewMockProvider()
		provider.RecordCharge("ch_d", 5000)

		svc := newTestService(repo, provider, nil, 0)
		got, err := svc.CancelReservation(ctx, 5, 1, "")
		require.NoError(t, err)
		assert.Equal(t, 0, got.RefundPercentage)
		assert.Equal(t, int64(0), provider.RefundedCents("ch_d"))
	})

	t.Run("CompletedCannotCancel", func(t *testing.T) {
		booking := &models.Booking{
			ID: 6, Type: models.TypeDining, Status: models.StatusCompleted,
			Date: time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), Time: "18:00", Version: 4,
		}
		repo := new(mockRepo)
		repo.On("GetBooking", ctx, int64(6)).Return(booking, nil)

		svc := newTestService(repo, payments.NewMockProvider(), nil, 0)
		_, err := svc.CancelReservation(ctx, 6, 4, "")
		assert.Error(t, err)
		repo.AssertNotCalled(t, "UpdateBookingStatusWithVersion", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestMarkNoShow(t *testing.T) {
	ctx := context.Background()

	t.Run("DiningFeeCharged", func(t *testing.T) {
		booking := &models.Booking{
			ID: 11, Type: models.TypeDining, Status: models.StatusConfirmed,
			Date: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), Time: "18:00",
			Phone: "+81-90-0000-0002", PaymentStatus: models.PaymentNone, Version: 1,
		}
		repo := new(mockRepo)
		repo.On("GetBooking", ctx, int64(11)).Return(booking, nil)
		repo.On("UpdateBookingStatusWithVersion", ctx, booking, int64(1)).Return(nil)

		svc := newTestService(repo, payments.NewMockProvider(), nil, 2500)
		got, err := svc.MarkNoShow(ctx, 11, 1)
		require.NoError(t, err)
		assert.Equal(t, models.StatusNoShow, got.Status)
		assert.NotEmpty(t, got.ChargeID)
		assert.Equal(t, models.PaymentPaid, got.PaymentStatus)
		assert.Equal(t, int64(2500), got.PrepaymentCents)
	})

	t.Run("OmakasePrepaidSkipsFee", func(t *testing.T) {
		booking := paidOmakaseBooking(12, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), "17:00")
		repo := new(mockRepo)
		repo.On("GetBooking", ctx, int64(12)).Return(booking, nil)
		repo.On("UpdateBookingStatusWithVersion", ctx, booking, int64(1)).Return(nil)

		svc := newTestService(repo, payments.NewMockProvider(), nil, 2500)
		got, err := svc.MarkNoShow(ctx, 12, 1)
		require.NoError(t, err)
		assert.Equal(t, models.StatusNoShow, got.Status)
		assert.Equal(t, "ch_test", got.ChargeID)
		assert.Equal(t, int64(10000), got.PrepaymentCents)
	})

	// Against real sqlite: the fee's charge reference and amount must be
	// readable after a fresh load, or manual fee reversal is impossible.
	t.Run("FeeSurvivesReload", func(t *testing.T) {
		logger := zerolog.New(io.Discard)
		db, err := database.NewDB(filepath.Join(t.TempDir(), "tablebook.db"), &logger)
		require.NoError(t, err)
		defer db.Close()

		booking := &models.Booking{
			PublicID: uuid.NewString(), Type: models.TypeDining,
			GuestName: "Endo", Phone: "+81-90-0000-0005",
			Date: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), Time: "18:00",
			PartySize: 2, Status: models.StatusConfirmed,
			PaymentStatus: models.PaymentNone,
		}
		require.NoError(t, db.CreateReservationWithLock(ctx, booking, nil))

		svc := newTestService(db, payments.NewMockProvider(), nil, 5000)
		got, err := svc.MarkNoShow(ctx, booking.ID, 1)
		require.NoError(t, err)
		require.NotEmpty(t, got.ChargeID)

		reloaded, err := db.GetBooking(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusNoShow, reloaded.Status)
		assert.Equal(t, got.ChargeID, reloaded.ChargeID)
		assert.Equal(t, models.PaymentPaid, reloaded.PaymentStatus)
		assert.Equal(t, int64(5000), reloaded.PrepaymentCents)
	})

	t.Run("ChargeFailureStillMarks", func(t *testing.T) {
		booking := &models.Booking{
			ID: 13, Type: models.TypeDining, Status: models.StatusConfirmed,
			Date: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), Time: "18:00", Version: 1,
		}
		repo := new(mockRepo)
		repo.On("GetBooking", ctx, int64(13)).Return(booking, nil)
		repo.On("UpdateBookingStatusWithVersion", ctx, booking, int64(1)).Return(nil)

		provider := payments.NewMockProvider()
		provider.FailCharges = true

		svc := newTestService(repo, provider, nil, 2500)
		got, err := svc.MarkNoShow(ctx, 13, 1)
		require.NoError(t, err)
		assert.Equal(t, models.StatusNoShow, got.Status)
		assert.Empty(t, got.ChargeID)
	})
}

func TestSeatedAndCompleted(t *testing.T) {
	ctx := context.Background()

	booking := &models.Booking{
		ID: 21, Type: models.TypeDining, Status: models.StatusConfirmed,
		Date: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), Time: "18:00", Version: 1,
	}
	repo := new(mockRepo)
	repo.On("GetBooking", ctx, int64(21)).Return(booking, nil)
	repo.On("UpdateBookingStatusWithVersion", ctx, booking, mock.Anything).Return(nil)

	svc := newTestService(repo, payments.NewMockProvider(), nil, 0)

	got, err := svc.MarkSeated(ctx, 21, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSeated, got.Status)

	got, err = svc.MarkCompleted(ctx, 21, 2)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)

	// Terminal state: nothing moves out of completed.
	_, err = svc.MarkSeated(ctx, 21, 3)
	assert.Error(t, err)
}
