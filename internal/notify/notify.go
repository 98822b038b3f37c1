package notify

import (
	"go.uber.org/zap"

	"stellar-harvest-bot-go/internal/config"
)

// Notifier delivers one alert message through a single channel.
type Notifier interface {
	Name() string
	Send(message, level string) error
}

// Manager fans alert messages out to every configured channel. The channel
// set is fixed at construction from the configuration flags.
type Manager struct {
	logger   *zap.Logger
	channels []Notifier
}

// NewManager builds the channel set from the notification toggles.
func NewManager(cfg config.Notifications, logger *zap.Logger) *Manager {
	m := &Manager{logger: logger.Named("notify")}
	if cfg.Telegram {
		m.channels = append(m.channels, newTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.Email {
		m.channels = append(m.channels, newEmailNotifier(cfg))
	}
	return m
}

// Notify sends the message through every channel. A channel failure is
// logged and does not block the remaining channels.
func (m *Manager) Notify(message, level string) {
	for _, ch := range m.channels {
		if err := ch.Send(message, level); err != nil {
			m.logger.Error("Notification channel failed",
				zap.String("channel", ch.Name()),
				zap.String("level", level),
				zap.Error(err))
		}
	}
}
