package notify

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const telegramBaseURL = "https://api.telegram.org"

type telegramNotifier struct {
	client *resty.Client
	token  string
	chatID string
}

func newTelegramNotifier(token, chatID string) *telegramNotifier {
	return &telegramNotifier{
		client: resty.New().SetBaseURL(telegramBaseURL).SetTimeout(10 * time.Second),
		token:  token,
		chatID: chatID,
	}
}

func (t *telegramNotifier) Name() string { return "telegram" }

func (t *telegramNotifier) Send(message, level string) error {
	resp, err := t.client.R().
		SetFormData(map[string]string{
			"chat_id": t.chatID,
			"text":    fmt.Sprintf("[%s] %s", level, message),
		}).
		Post(fmt.Sprintf("/bot%s/sendMessage", t.token))
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telegram API returned %s: %s", resp.Status(), resp.String())
	}
	return nil
}
