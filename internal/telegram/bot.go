package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"hirefire-scraper/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Sender delivers one Telegram message. *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Options tune message pacing.
type Options struct {
	// Delay is the pause between two candidates.
	Delay time.Duration
	// Rate caps messages per second over all destinations.
	Rate float64
	// Workers bounds concurrent sends for one candidate.
	Workers int
}

// Result counts delivered and failed messages.
type Result struct {
	Sent   int
	Failed int
}

type Bot struct {
	api          Sender
	destinations []models.Destination
	opts         Options
	limiter      *rate.Limiter
	logger       *slog.Logger
}

// NewBotAPI connects to Telegram with the given token. endpoint is a Bot API
// URL format such as tgbotapi.APIEndpoint; empty means the public server.
func NewBotAPI(token, endpoint string) (*tgbotapi.BotAPI, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return api, nil
}

func NewBot(api Sender, destinations []models.Destination, opts Options, logger *slog.Logger) *Bot {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		api:          api,
		destinations: destinations,
		opts:         opts,
		limiter:      rate.NewLimiter(limit, 1),
		logger:       logger,
	}
}

// Format renders a candidate as plain text. Nil and empty fields are left out.
func Format(c models.Candidate) string {
	var b strings.Builder
	line := func(prefix string, v *string) {
		if v == nil || *v == "" {
			return
		}
		b.WriteString(prefix)
		b.WriteString(*v)
		b.WriteByte('\n')
	}
	str := func(s string) *string { return &s }

	line("👤 ", str(c.Account))
	line("📌 ", str(c.VacancyName))
	line("👨 ", c.Name)
	line("📞 ", c.Phone)
	line("🎂 ", c.Age)
	line("🎖 ", c.Rank)
	line("⚔️ Бойовий досвід: ", c.CombatExperience)
	line("🚫 СЗЧ: ", c.AWOL)
	line("🎓 Підготовка: ", c.MilitaryTraining)
	line("🕒 ", c.CreatedAt)
	line("📎 Джерело: ", c.Source)

	return strings.TrimSuffix(b.String(), "\n")
}

func message(dest models.Destination, text string) tgbotapi.MessageConfig {
	if dest.Channel != "" {
		return tgbotapi.NewMessageToChannel(dest.Channel, text)
	}
	return tgbotapi.NewMessage(dest.ChatID, text)
}

// Notify sends one candidate to every destination. A failing destination
// does not stop the others.
func (b *Bot) Notify(ctx context.Context, c models.Candidate) Result {
	text := Format(c)
	var sent, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(b.opts.Workers)
	for _, dest := range b.destinations {
		g.Go(func() error {
			if err := b.limiter.Wait(ctx); err != nil {
				failed.Add(1)
				b.logger.Error("❌ Send cancelled", "candidate", c.ID, "destination", dest.String(), "error", err)
				return nil
			}
			if _, err := b.api.Send(message(dest, text)); err != nil {
				failed.Add(1)
				b.logger.Error("❌ Failed to send telegram message", "candidate", c.ID, "destination", dest.String(), "error", err)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return Result{Sent: int(sent.Load()), Failed: int(failed.Load())}
}

// NotifyAll sends candidates in order, pausing between them.
func (b *Bot) NotifyAll(ctx context.Context, candidates []models.Candidate) Result {
	var total Result
	for i, c := range candidates {
		if i > 0 && b.opts.Delay > 0 {
			t := time.NewTimer(b.opts.Delay)
			select {
			case <-ctx.Done():
				t.Stop()
			case <-t.C:
			}
		}
		r := b.Notify(ctx, c)
		total.Sent += r.Sent
		total.Failed += r.Failed
		b.logger.Info("📨 Candidate sent", "candidate", c.ID, "vacancy", c.VacancyName, "sent", r.Sent, "failed", r.Failed)
	}
	return total
}
