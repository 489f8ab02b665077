package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventReservationCreated   = "reservation_created"
	EventReservationConfirmed = "reservation_confirmed"
	EventReservationCancelled = "reservation_cancelled"
	EventReservationSeated    = "reservation_seated"
	EventReservationCompleted = "reservation_completed"
	EventReservationNoShow    = "reservation_no_show"
	EventRefundDecided        = "refund_decided"
)

// ReservationEventPayload is the booking snapshot handed to event consumers,
// including the notification collaborator choosing between guest
// confirmation and owner alert.
type ReservationEventPayload struct {
	BookingID        int64     `json:"booking_id"`
	PublicID         string    `json:"public_id"`
	Type             string    `json:"type"`
	GuestName        string    `json:"guest_name"`
	Date             string    `json:"date"`
	Time             string    `json:"time"`
	PartySize        int       `json:"party_size"`
	Status           string    `json:"status"`
	ConfirmationCode string    `json:"confirmation_code,omitempty"`
	CancelReason     string    `json:"cancel_reason,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// RefundEventPayload describes a refund decision handed to the boundary.
type RefundEventPayload struct {
	BookingID   int64  `json:"booking_id"`
	Percentage  int    `json:"percentage"`
	AmountCents int64  `json:"amount_cents"`
	ChargeID    string `json:"charge_id,omitempty"`
	Executed    bool   `json:"executed"`
	Failure     string `json:"failure,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
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

// Publish notifies subscribers of the event type. Handler errors are
// swallowed; event delivery is best-effort and never part of the primary
// operation's contract.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
