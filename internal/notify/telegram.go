// Package notify pushes reservation lifecycle alerts to the owner's
// Telegram chat. Delivery is best-effort; a failed send is logged and
// dropped.
package notify

import (
	"encoding/json"
	"fmt"

	"tablebook/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the slice of the Telegram client the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier renders reservation events into owner chat messages.
type TelegramNotifier struct {
	bot    Sender
	chatID int64
	logger *zerolog.Logger
}

func NewTelegramNotifier(bot Sender, chatID int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID, logger: logger}
}

// SubscribeAll registers the notifier for every reservation event type.
func (n *TelegramNotifier) SubscribeAll(bus *events.EventBus) {
	for _, eventType := range []string{
		events.EventReservationCreated,
		events.EventReservationConfirmed,
		events.EventReservationCancelled,
		events.EventReservationNoShow,
		events.EventRefundDecided,
	} {
		bus.Subscribe(eventType, n.Handle)
	}
}

// Handle renders and sends one event. Errors are returned for the bus to
// swallow; they never reach the operation that raised the event.
func (n *TelegramNotifier) Handle(event *events.Event) error {
	text, err := renderEvent(event)
	if err != nil {
		n.logger.Error().Err(err).Str("event_type", event.Type).Msg("render notification")
		return err
	}
	if text == "" {
		return nil
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error().Err(err).Str("event_type", event.Type).Msg("send notification")
		return err
	}
	return nil
}

func renderEvent(event *events.Event) (string, error) {
	if event.Type == events.EventRefundDecided {
		var p events.RefundEventPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return "", err
		}
		return renderRefund(p), nil
	}

	var p events.ReservationEventPayload
	if err := json.Unmarshal(event.Payload, &p); err != nil {
		return "", err
	}

	switch event.Type {
	case events.EventReservationCreated:
		return fmt.Sprintf("🆕 New %s reservation: %s, party of %d on %s at %s (%s)",
			p.Type, p.GuestName, p.PartySize, p.Date, p.Time, p.Status), nil
	case events.EventReservationConfirmed:
		return fmt.Sprintf("✅ Confirmed: %s on %s at %s, code %s",
			p.GuestName, p.Date, p.Time, p.ConfirmationCode), nil
	case events.EventReservationCancelled:
		text := fmt.Sprintf("❌ Cancelled: %s on %s at %s", p.GuestName, p.Date, p.Time)
		if p.CancelReason != "" {
			text += " (" + p.CancelReason + ")"
		}
		return text, nil
	case events.EventReservationNoShow:
		return fmt.Sprintf("👻 No-show: %s, party of %d on %s at %s",
			p.GuestName, p.PartySize, p.Date, p.Time), nil
	default:
		return "", nil
	}
}

func renderRefund(p events.RefundEventPayload) string {
	if p.AmountCents == 0 {
		return ""
	}
	if !p.Executed {
		return fmt.Sprintf("⚠️ Refund FAILED for booking %d: %d%% (%.2f), reason: %s",
			p.BookingID, p.Percentage, float64(p.AmountCents)/100, p.Failure)
	}
	return fmt.Sprintf("💸 Refund issued for booking %d: %d%% (%.2f)",
		p.BookingID, p.Percentage, float64(p.AmountCents)/100)
}
