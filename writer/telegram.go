// Package writer delivers alerts: a Telegram notifier sink, the HTML message
// formatters and the S3 archive for market briefs.
package writer

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"trustclaw/internal/metrics"
	"trustclaw/logger"
	"trustclaw/models"
)

const (
	maxMessageRunes = 4000
	truncatedSuffix = "\n\n... (truncated)"
)

type TelegramOptions struct {
	Token         string
	ChatID        string
	Endpoint      string // defaults to tgbotapi.APIEndpoint
	HTTPClient    *http.Client
	RatePerSecond float64
}

// Telegram sends alerts to a single chat. Sends are serialized through a
// rate limiter; failures are logged and never returned to scanners.
type Telegram struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	channel string
	limiter *rate.Limiter
	log     *logger.Entry
}

func NewTelegram(opts TelegramOptions) (*Telegram, error) {
	if opts.Token == "" || opts.ChatID == "" {
		return nil, &models.ConfigError{Field: "telegram", Reason: "bot token and chat id are required"}
	}
	if opts.Endpoint == "" {
		opts.Endpoint = tgbotapi.APIEndpoint
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 1
	}

	t := &Telegram{
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1),
		log:     logger.GetLogger().WithComponent("writer.telegram"),
	}
	if strings.HasPrefix(opts.ChatID, "@") {
		t.channel = opts.ChatID
	} else {
		id, err := strconv.ParseInt(opts.ChatID, 10, 64)
		if err != nil {
			return nil, &models.ConfigError{Field: "telegram.chat_id", Reason: fmt.Sprintf("'%s' is not a chat id or @channel", opts.ChatID)}
		}
		t.chatID = id
	}

	bot, err := tgbotapi.NewBotAPIWithClient(opts.Token, opts.Endpoint, opts.HTTPClient)
	if err != nil {
		return nil, models.NewTransient("telegram getMe", err)
	}
	t.bot = bot
	t.log.WithField("bot", bot.Self.UserName).Info("telegram notifier ready")
	return t, nil
}

func (t *Telegram) Notify(ctx context.Context, a models.Alert) {
	log := t.log.WithFields(logger.Fields{
		"alert_id": a.ID,
		"category": string(a.Category),
		"priority": a.Priority.String(),
	})

	if err := t.limiter.Wait(ctx); err != nil {
		log.WithError(err).Warn("alert dropped before send")
		return
	}

	text := Truncate(a.Text, maxMessageRunes)
	var msg tgbotapi.MessageConfig
	if t.channel != "" {
		msg = tgbotapi.NewMessageToChannel(t.channel, text)
	} else {
		msg = tgbotapi.NewMessage(t.chatID, text)
	}
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	msg.DisableNotification = a.Priority == models.PriorityLow

	start := time.Now()
	if _, err := t.bot.Send(msg); err != nil {
		metrics.SourceError("telegram", "send")
		log.WithError(err).Error("failed to send telegram message")
		return
	}
	metrics.Alert(string(a.Category))
	logger.RecordAlert(string(a.Category))
	logger.LogPerformanceEntry(log, "writer.telegram", "send", time.Since(start), nil)
}

// Truncate caps text at limit runes, cutting back to the last line break so
// no HTML tag is split, and appends a truncation marker.
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	cut := string(runes[:limit])
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i]
	}
	return cut + truncatedSuffix
}

// LogOnly is the sink used when Telegram is not configured. It logs every
// alert instead of delivering it.
type LogOnly struct {
	log *logger.Entry
}

func NewLogOnly() *LogOnly {
	return &LogOnly{log: logger.GetLogger().WithComponent("writer.log_only")}
}

func (l *LogOnly) Notify(ctx context.Context, a models.Alert) {
	metrics.Alert(string(a.Category))
	logger.RecordAlert(string(a.Category))
	l.log.WithFields(logger.Fields{
		"alert_id": a.ID,
		"category": string(a.Category),
		"priority": a.Priority.String(),
		"text":     a.Text,
	}).Info("alert")
}
