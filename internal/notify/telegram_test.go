package notify

import (
	"testing"
	"time"

	"kurort/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func newTestNotifier(chatIDs []int64) (*TelegramNotifier, *fakeSender) {
	logger := zerolog.Nop()
	sender := &fakeSender{}
	return &TelegramNotifier{bot: sender, chatIDs: chatIDs, logger: &logger}, sender
}

func TestNotifierSendsToAllManagers(t *testing.T) {
	notifier, sender := newTestNotifier([]int64{1, 2, 3})

	bus := events.NewEventBus()
	notifier.Register(bus)

	payload := events.ReservationEventPayload{
		ReservationID: 7,
		RoomID:        101,
		GuestID:       42,
		Status:        "pending",
		CheckIn:       time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:      time.Date(2026, 10, 4, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, bus.PublishJSON(events.EventReservationCreated, payload))

	assert.Len(t, sender.sent, 3)
}

func TestNotifierFormatMessage(t *testing.T) {
	notifier, _ := newTestNotifier(nil)

	payload := &events.ReservationEventPayload{
		ReservationID: 9,
		RoomID:        5,
		GuestID:       11,
		CheckIn:       time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:      time.Date(2026, 10, 4, 0, 0, 0, 0, time.UTC),
		PaymentRef:    "pay-1",
		CancelReason:  "guest request",
	}

	assert.Contains(t, notifier.formatMessage(events.EventReservationCreated, payload), "Новая бронь №9")
	assert.Contains(t, notifier.formatMessage(events.EventReservationConfirmed, payload), "pay-1")
	assert.Contains(t, notifier.formatMessage(events.EventReservationCancelled, payload), "guest request")
	assert.Contains(t, notifier.formatMessage(events.EventReservationExpired, payload), "истекла")
	assert.Empty(t, notifier.formatMessage("unknown", payload))
}
