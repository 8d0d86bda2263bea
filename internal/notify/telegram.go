package notify

import (
	"encoding/json"
	"fmt"

	"kurort/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// sender is the subset of the bot API the notifier needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier пересылает события по броням менеджерам в Telegram.
type TelegramNotifier struct {
	bot     sender
	chatIDs []int64
	logger  *zerolog.Logger
}

func NewTelegramNotifier(token string, chatIDs []int64, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramNotifier{
		bot:     bot,
		chatIDs: chatIDs,
		logger:  logger,
	}, nil
}

// Register wires the notifier into the event bus.
func (n *TelegramNotifier) Register(bus *events.EventBus) {
	bus.Subscribe(events.EventReservationCreated, n.handleEvent)
	bus.Subscribe(events.EventReservationConfirmed, n.handleEvent)
	bus.Subscribe(events.EventReservationCancelled, n.handleEvent)
	bus.Subscribe(events.EventReservationExpired, n.handleEvent)
}

func (n *TelegramNotifier) handleEvent(event *events.Event) error {
	var payload events.ReservationEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		n.logger.Error().Err(err).Str("event", event.Type).Msg("Не удалось декодировать событие")
		return err
	}

	text := n.formatMessage(event.Type, &payload)
	if text == "" {
		return nil
	}

	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.bot.Send(msg); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Не удалось отправить уведомление")
		}
	}
	return nil
}

func (n *TelegramNotifier) formatMessage(eventType string, p *events.ReservationEventPayload) string {
	dates := fmt.Sprintf("%s по %s", p.CheckIn.Format("02.01.2006"), p.CheckOut.Format("02.01.2006"))

	switch eventType {
	case events.EventReservationCreated:
		return fmt.Sprintf(`🆕 Новая бронь №%d

🏨 Номер: %d
📅 Даты: %s
👤 Гость: %d`, p.ReservationID, p.RoomID, dates, p.GuestID)
	case events.EventReservationConfirmed:
		return fmt.Sprintf("✅ Бронь №%d подтверждена (оплата %s)", p.ReservationID, p.PaymentRef)
	case events.EventReservationCancelled:
		text := fmt.Sprintf("❌ Бронь №%d отменена", p.ReservationID)
		if p.CancelReason != "" {
			text += "\n💬 " + p.CancelReason
		}
		return text
	case events.EventReservationExpired:
		return fmt.Sprintf("⏳ Бронь №%d истекла без подтверждения", p.ReservationID)
	}
	return ""
}
