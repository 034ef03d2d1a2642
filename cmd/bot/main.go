// Command bot runs the LibriPal Telegram companion. It long-polls the Bot
// API, links chats to patron accounts with one-shot codes, and routes free
// text through the chat assistant. It shares the database with the API
// server; nothing is stored on the Telegram side.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"libripal/internal/assistant/llm"
	assistantservice "libripal/internal/assistant/service"
	catalogservice "libripal/internal/catalog/service"
	"libripal/internal/catalog/source"
	circservice "libripal/internal/circulation/service"
	circstore "libripal/internal/circulation/store"
	notifservice "libripal/internal/notification/service"
	notifstore "libripal/internal/notification/store"
	"libripal/internal/notification/telegram"
	patronmodels "libripal/internal/patron/models"
	patronservice "libripal/internal/patron/service"
	patronstore "libripal/internal/patron/store"
	"libripal/internal/platform/config"
	"libripal/internal/platform/logger"
	"libripal/internal/platform/postgres"
	dErrors "libripal/pkg/domain-errors"
	"libripal/pkg/requestcontext"
)

const (
	pollTimeout = 30 * time.Second
	// How long to back off after a failed getUpdates call before retrying.
	pollBackoff = 5 * time.Second
)

const welcomeText = `Hi! I'm the LibriPal bot.

Link your library account first: open the LibriPal app, request a link code, then send me:
/link <code>

After that you can use:
/mybooks - your current loans
/fines - your outstanding fines
...or just ask me anything about books!`

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("bot exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if cfg.Telegram.BotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}

	var (
		loanStore   circstore.LoanStore
		patronStore patronstore.PatronStore
		notifStore  notifstore.NotificationStore
		codeStore   notifstore.LinkCodeStore
	)
	if cfg.Database.DSN != "" {
		pool, err := postgres.New(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()
		loanStore = circstore.NewPostgres(pool.DB)
		patronStore = patronstore.NewPostgres(pool.DB)
		pgNotif := notifstore.NewPostgres(pool.DB)
		notifStore, codeStore = pgNotif, pgNotif
	} else {
		log.Warn("DATABASE_URL not set, bot runs against empty in-memory storage")
		loanStore = circstore.NewMemory()
		patronStore = patronstore.NewMemory()
		memNotif := notifstore.NewMemory()
		notifStore, codeStore = memNotif, memNotif
	}

	tg := telegram.New(cfg.Telegram.BotToken, telegram.WithAPIBase(cfg.Telegram.APIBase))

	patrons := patronservice.New(patronStore, patronservice.WithLogger(log))
	notifications := notifservice.New(notifStore, codeStore, patrons,
		notifservice.WithLogger(log),
		notifservice.WithTelegram(tg),
	)
	circulation := circservice.New(loanStore, circservice.WithLogger(log))

	sourceClient := &http.Client{Timeout: cfg.Sources.Timeout}
	catalog := catalogservice.New(
		source.NewGoogleBooks(
			source.WithGoogleBooksBaseURL(cfg.Sources.GoogleBooksURL),
			source.WithGoogleBooksAPIKey(cfg.Sources.GoogleBooksKey),
			source.WithGoogleBooksHTTPClient(sourceClient),
		),
		source.NewOpenLibrary(
			source.WithOpenLibraryBaseURL(cfg.Sources.OpenLibraryURL),
			source.WithOpenLibraryHTTPClient(sourceClient),
		),
		catalogservice.WithLogger(log),
	)
	assistant := assistantservice.New(
		llm.NewOpenAI(cfg.OpenAI.APIKey, llm.WithModel(cfg.OpenAI.Model)),
		catalog, circulation,
		assistantservice.WithLogger(log),
	)

	bot := &bot{
		tg:            tg,
		patrons:       patrons,
		notifications: notifications,
		circulation:   circulation,
		assistant:     assistant,
		logger:        log,
	}

	log.Info("starting libripal bot")
	return bot.poll(ctx)
}

type bot struct {
	tg            *telegram.Client
	patrons       *patronservice.Service
	notifications *notifservice.Service
	circulation   *circservice.Service
	assistant     *assistantservice.Service
	logger        *slog.Logger
}

// poll runs the getUpdates loop until ctx is cancelled.
func (b *bot) poll(ctx context.Context) error {
	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		updates, err := b.tg.GetUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.WarnContext(ctx, "getUpdates failed", "error", err)
			select {
			case <-time.After(pollBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *bot) handleMessage(ctx context.Context, msg *telegram.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	var reply string
	switch {
	case text == "/start" || text == "/help":
		reply = welcomeText
	case strings.HasPrefix(text, "/link"):
		reply = b.handleLink(ctx, chatID, text)
	default:
		reply = b.handlePatronCommand(ctx, chatID, text)
	}

	if err := b.tg.SendMessage(ctx, chatID, reply); err != nil {
		b.logger.WarnContext(ctx, "failed to send reply", "chat_id", chatID, "error", err)
	}
}

func (b *bot) handleLink(ctx context.Context, chatID int64, text string) string {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return "Usage: /link <code> (request the code in the LibriPal app)."
	}

	patron, err := b.notifications.RedeemLinkCode(ctx, fields[1], chatID)
	if err != nil {
		return "That code is invalid or has expired. Request a fresh one in the app and try again."
	}
	return fmt.Sprintf("Linked to %s. You'll get reminders here, and you can ask me about your books any time.", patron.FullName())
}

// handlePatronCommand resolves the chat to a patron and runs the command in
// that patron's context.
func (b *bot) handlePatronCommand(ctx context.Context, chatID int64, text string) string {
	patron, err := b.patrons.FindByTelegramChat(ctx, chatID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return "I don't know this chat yet. Link your library account with /link <code> first."
		}
		b.logger.WarnContext(ctx, "chat lookup failed", "chat_id", chatID, "error", err)
		return "Something went wrong on my side. Please try again in a moment."
	}

	ctx = requestcontext.WithPatronID(ctx, patron.ID)
	switch text {
	case "/mybooks":
		return b.myBooks(ctx)
	case "/fines":
		return b.myFines(ctx)
	default:
		return b.chat(ctx, patron, text)
	}
}

func (b *bot) myBooks(ctx context.Context) string {
	loans, err := b.circulation.ListOpenLoans(ctx)
	if err != nil {
		b.logger.WarnContext(ctx, "failed to list loans", "error", err)
		return "I couldn't fetch your loans right now. Please try again in a moment."
	}
	if len(loans) == 0 {
		return "You have no books on loan."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You have %d book(s) on loan:\n", len(loans))
	for _, loan := range loans {
		fmt.Fprintf(&sb, "\n%q, due %s", loan.Item.Title, loan.DueDate.Format("2006-01-02"))
		if loan.DaysUntilDue < 0 {
			fmt.Fprintf(&sb, " (%d day(s) overdue, fine so far: %d)", -loan.DaysUntilDue, loan.CurrentFine)
		}
	}
	return sb.String()
}

func (b *bot) myFines(ctx context.Context) string {
	summary, err := b.circulation.OutstandingFines(ctx)
	if err != nil {
		b.logger.WarnContext(ctx, "failed to fetch fines", "error", err)
		return "I couldn't fetch your fines right now. Please try again in a moment."
	}
	if summary.TotalFine == 0 {
		return "You have no outstanding fines. Keep it up!"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Your total outstanding fine: %d.\n", summary.TotalFine)
	for _, loan := range summary.OverdueLoans {
		fmt.Fprintf(&sb, "\n%q: %d day(s) overdue, %d so far", loan.Item.Title, -loan.DaysUntilDue, loan.CurrentFine)
	}
	return sb.String()
}

func (b *bot) chat(ctx context.Context, patron *patronmodels.Patron, text string) string {
	resp, err := b.assistant.Chat(ctx, text)
	if err != nil {
		b.logger.WarnContext(ctx, "assistant chat failed",
			"patron_id", patron.ID.String(),
			"error", err)
		return "Something went wrong on my side. Please try again in a moment."
	}
	return resp.Message
}
