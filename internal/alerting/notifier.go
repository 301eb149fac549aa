package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Notification carries the context of a leverage alert.
type Notification struct {
	Year          int
	DebtToGDP     decimal.Decimal
	Threshold     decimal.Decimal
	RatioDelta    decimal.Decimal
	TotalDebt     decimal.Decimal
	GDP           decimal.Decimal
	Direction     string
	Channels      []string
	AdditionalMsg string
}

// Notifier delivers alerts to a channel.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls sendMessage with the rendered alert text.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    RenderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Int("year", note.Year).
		Str("debt_to_gdp", note.DebtToGDP.String()).
		Str("channels", strings.Join(note.Channels, ",")).
		Msg("leverage alert sent")
	return nil
}

// LogNotifier writes alerts to the log. It backs the "log" channel.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier builds a notifier that only logs.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, note Notification) error {
	n.logger.Warn().Int("year", note.Year).
		Str("debt_to_gdp", note.DebtToGDP.StringFixed(3)).
		Str("threshold", note.Threshold.StringFixed(3)).
		Str("direction", note.Direction).
		Msg("debt-to-gdp above threshold")
	return nil
}

// Multi fans a notification out to several notifiers and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, note Notification) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, note); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RenderMessage formats the alert text.
func RenderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Debt-to-GDP Alert]\n")
	builder.WriteString(fmt.Sprintf("Year: %d\n", note.Year))
	builder.WriteString(fmt.Sprintf("Debt-to-GDP: %s (threshold %s)\n", note.DebtToGDP.StringFixed(3), note.Threshold.StringFixed(3)))
	builder.WriteString(fmt.Sprintf("Change vs prev: %s\n", signed(note.RatioDelta, 3)))
	builder.WriteString(fmt.Sprintf("Total debt: %s bn\n", note.TotalDebt.StringFixed(0)))
	builder.WriteString(fmt.Sprintf("GDP: %s bn\n", note.GDP.StringFixed(0)))
	builder.WriteString(fmt.Sprintf("Direction: %s\n", note.Direction))
	if len(note.Channels) > 0 {
		builder.WriteString(fmt.Sprintf("Channels: %s\n", strings.Join(note.Channels, ",")))
	}
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

func signed(d decimal.Decimal, places int32) string {
	if d.Sign() >= 0 {
		return "+" + d.StringFixed(places)
	}
	return d.StringFixed(places)
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = Multi(nil)
)
