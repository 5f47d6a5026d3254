package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"yanderss/internal/domain"
	"yanderss/internal/index"
	"yanderss/internal/ratelimiter"
)

var ErrInvalidConfig = errors.New("invalid telegram config")

// Telegram reports every downloaded asset to one chat.
type Telegram struct {
	api     *bot.Bot
	limiter *ratelimiter.RateLimiter
	chatID  int64
	log     *slog.Logger
}

func NewTelegram(
	token string,
	chatID int64,
	log *slog.Logger,
	opts ...bot.Option,
) (*Telegram, error) {
	if strings.TrimSpace(token) == "" || chatID == 0 {
		return nil, fmt.Errorf("%w: token and chat id are required", ErrInvalidConfig)
	}

	api, err := bot.New(token, append([]bot.Option{bot.WithSkipGetMe()}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	t := &Telegram{
		api:    api,
		chatID: chatID,
		log:    log,
	}
	t.limiter = ratelimiter.New(t.sendMessage, log)

	return t, nil
}

func (t *Telegram) NotifyDownload(
	ctx context.Context,
	record domain.DownloadRecord,
) error {
	if err := t.limiter.Send(ctx, t.chatID, FormatDownload(record)); err != nil {
		return fmt.Errorf("send download notification: %w", err)
	}

	t.log.DebugContext(ctx, "Download notification is sent",
		"chatID", t.chatID,
		"entryURL", record.EntryURL)

	return nil
}

func (t *Telegram) Stop() {
	t.limiter.Stop()
}

func (t *Telegram) sendMessage(ctx context.Context, chatID int64, text string) error {
	_, err := t.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeMarkdown,
		LinkPreviewOptions: &models.LinkPreviewOptions{
			IsDisabled: bot.True(),
		},
	})
	return err
}

// FormatDownload renders a MarkdownV2 message for a downloaded asset.
func FormatDownload(record domain.DownloadRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "*%s*\n", bot.EscapeMarkdown(record.AssetName))
	fmt.Fprintf(&b, "[post](%s)", escapeLinkURL(record.EntryURL))

	if record.Source != "" {
		fmt.Fprintf(&b, " from %s", bot.EscapeMarkdown(record.Source))
	}

	if !record.DownloadedAt.IsZero() {
		fmt.Fprintf(&b, "\n%s", bot.EscapeMarkdown(record.DownloadedAt.Format(index.TimeLayout)))
	}

	return b.String()
}
