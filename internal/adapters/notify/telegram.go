package notify

// telegram.go — notificador que envía alertas vía Telegram Bot API.
// No hay SDK de Telegram en el stack del proyecto, así que se usa
// net/http directamente, igual que el resto de los adapters HTTP.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alejandrodnm/polybacker/internal/domain"
)

const telegramAPIBase = "https://api.telegram.org"

// Telegram implementa ports.Notifier enviando mensajes HTML a un chat fijo
// vía el Bot API. Si botToken o chatID están vacíos, todos los envíos son
// no-ops silenciosos — permite dejar Telegram sin configurar.
type Telegram struct {
	http     *http.Client
	botToken string
	chatID   string
	enabled  bool
}

// NewTelegram crea un notificador de Telegram. enabled es false si
// botToken o chatID están vacíos.
func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		http:     &http.Client{Timeout: 10 * time.Second},
		botToken: botToken,
		chatID:   chatID,
		enabled:  botToken != "" && chatID != "",
	}
}

type telegramSendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

func (t *Telegram) send(ctx context.Context, text string) error {
	if !t.enabled {
		return nil
	}

	body, err := json.Marshal(telegramSendMessageRequest{
		ChatID:                t.chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("telegram: encode request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", telegramAPIBase, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		slog.Warn("telegram send failed", "err", err)
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("telegram send rejected", "status", resp.StatusCode)
		return fmt.Errorf("telegram: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// NotifyEvent entrega un EngineEvent recién registrado.
func (t *Telegram) NotifyEvent(ctx context.Context, e domain.EngineEvent) error {
	msg := fmt.Sprintf("ℹ️ <b>%s</b>\n%s", strings.ToUpper(e.EventType), e.Message)
	return t.send(ctx, msg)
}

// NotifyTradeDetected avisa de un trade detectado en un trader seguido.
func (t *Telegram) NotifyTradeDetected(ctx context.Context, trader domain.FollowedTrader, trade domain.UpstreamTrade) error {
	name := trader.Alias
	if name == "" {
		name = trader.Address
	}
	emoji := "🟢"
	if trade.Side == string(domain.Sell) {
		emoji = "🔴"
	}
	market := trade.Market
	if len(market) > 80 {
		market = market[:80]
	}
	msg := fmt.Sprintf(
		"%s <b>TRADER TRADE DETECTED</b>\n\n"+
			"<b>Trader:</b> %s\n<code>%s</code>\n"+
			"<b>Side:</b> %s\n<b>Market:</b> %s\n"+
			"<b>Size:</b> %.2f shares @ $%.4f\n<b>Value:</b> $%.2f\n",
		emoji, name, trader.Address, trade.Side, market, trade.Size, trade.Price, trade.USD(),
	)
	return t.send(ctx, msg)
}

// NotifyTradeCopied avisa del resultado de una copia ejecutada.
func (t *Telegram) NotifyTradeCopied(ctx context.Context, trader domain.FollowedTrader, trade domain.Trade) error {
	name := trader.Alias
	if name == "" {
		name = trader.Address
	}

	var emoji, statusText string
	switch trade.Status {
	case domain.TradeExecuted:
		emoji, statusText = "✅", "EXECUTED"
	case domain.TradeFailed:
		emoji, statusText = "❌", "FAILED"
	default:
		emoji, statusText = "📝", "DRY RUN"
	}

	market := trade.Market
	if len(market) > 80 {
		market = market[:80]
	}
	msg := fmt.Sprintf(
		"%s <b>COPY TRADE %s</b>\n\n"+
			"<b>Copying:</b> %s\n<b>Side:</b> %s\n<b>Market:</b> %s\n"+
			"<b>Amount:</b> $%.2f\n<b>Price:</b> $%.4f\n",
		emoji, statusText, name, trade.Side, market, trade.Amount, trade.Price,
	)
	return t.send(ctx, msg)
}
