package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"diet-coach/internal/config"
	"diet-coach/internal/dietplan"
	"diet-coach/internal/extraction"
	"diet-coach/internal/metrics"
	"diet-coach/internal/shared"

	"github.com/avast/retry-go/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// maxMessageLen stays under Telegram's 4096 character limit.
const maxMessageLen = 3800

// API is the subset of the Telegram client the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Extractor runs the image-to-plan pipeline.
type Extractor interface {
	Extract(ctx context.Context, req extraction.Request) (extraction.Result, error)
}

// PlanSaver persists extracted plans.
type PlanSaver interface {
	Save(ctx context.Context, clientID, createdBy string, plan *dietplan.WeeklyMealPlan) (*dietplan.StoredPlan, error)
}

// UploadStore holds downloaded images until the extractor takes them over.
type UploadStore interface {
	Save(r io.Reader, mimeType string) (extraction.Image, error)
	Discard(images []extraction.Image) error
	Dir() string
}

// UsageStore records and reports model usage.
type UsageStore interface {
	RecordMeta(ctx context.Context, meta shared.CallMeta) error
	GetDailyUsage(ctx context.Context, days int) ([]metrics.DailyUsage, error)
}

// Deps are the services the bot drives.
type Deps struct {
	Extractor Extractor
	Plans     PlanSaver
	Uploads   UploadStore
	Usage     UsageStore
}

// Bot lets coaches send plan screenshots over Telegram: /plan <clientId>,
// then photos, then /done.
type Bot struct {
	api        API
	deps       Deps
	cfg        *config.Config
	logger     *zap.Logger
	sessions   *SessionStore
	httpClient *http.Client

	extractTimeout time.Duration
	retryDelay     time.Duration

	wg sync.WaitGroup
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(cfg *config.Config, deps Deps, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	logger.Info("authorized on telegram", zap.String("account", api.Self.UserName))

	wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url %s: %w", cfg.TelegramWebhookURL, err)
	}
	resp, err := api.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	logger.Info("webhook set", zap.String("description", resp.Description))

	return newBot(api, cfg, deps, logger), nil
}

func newBot(api API, cfg *config.Config, deps Deps, logger *zap.Logger) *Bot {
	return &Bot{
		api:            api,
		deps:           deps,
		cfg:            cfg,
		logger:         logger,
		sessions:       NewSessionStore(30 * time.Minute),
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		extractTimeout: 2 * time.Minute,
		retryDelay:     500 * time.Millisecond,
	}
}

// RegisterHandlers registers the webhook and health handlers on mux.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook", b.handleWebhook)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

// Wait blocks until in-flight extractions have finished.
func (b *Bot) Wait() {
	b.wg.Wait()
}

// Sessions exposes the pending upload sessions for maintenance.
func (b *Bot) Sessions() *SessionStore {
	return b.sessions
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		b.logger.Warn("error parsing update", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	if !slices.Contains(b.cfg.TelegramAllowedUserIDs, msg.From.ID) {
		b.logger.Warn("unauthorized access attempt",
			zap.Int64("user_id", msg.From.ID),
			zap.String("username", msg.From.UserName))
		return
	}

	b.handleMessage(msg)
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "plan":
			b.handlePlanCommand(msg)
		case "done":
			b.handleDoneCommand(msg)
		case "cancel":
			if b.sessions.Delete(chatID) {
				b.reply(chatID, "🗑 Upload cancelled.")
			} else {
				b.reply(chatID, "Nothing to cancel.")
			}
		case "metrics":
			b.handleMetricsCommand(chatID)
		default:
			b.reply(chatID, helpText)
		}
		return
	}

	if file, ok := imageFile(msg); ok {
		n, err := b.sessions.AddFile(chatID, file, b.cfg.MaxUploadImages)
		switch {
		case errors.Is(err, errNoSession):
			b.reply(chatID, "Start with /plan <clientId> before sending images.")
		case errors.Is(err, errTooManyImages):
			b.reply(chatID, fmt.Sprintf("⚠️ At most %d images per plan. Send /done to extract.", b.cfg.MaxUploadImages))
		case err == nil:
			b.reply(chatID, fmt.Sprintf("📥 Image %d received.", n))
		}
		return
	}

	if msg.Document != nil {
		b.reply(chatID, "⚠️ Unsupported file type. Send JPEG, PNG, WEBP or HEIC images.")
		return
	}

	b.reply(chatID, helpText)
}

const helpText = "Send /plan <clientId>, then the diet plan screenshots, then /done.\n/cancel drops the pending upload."

// imageFile returns the largest photo size, or an image sent as a document.
func imageFile(msg *tgbotapi.Message) (PendingFile, bool) {
	if len(msg.Photo) > 0 {
		largest := msg.Photo[len(msg.Photo)-1]
		return PendingFile{FileID: largest.FileID, MIMEType: "image/jpeg"}, true
	}
	if msg.Document != nil && extraction.IsAllowedMIMEType(msg.Document.MimeType) {
		return PendingFile{FileID: msg.Document.FileID, MIMEType: msg.Document.MimeType}, true
	}
	return PendingFile{}, false
}

func (b *Bot) handlePlanCommand(msg *tgbotapi.Message) {
	clientID := strings.TrimSpace(msg.CommandArguments())
	if clientID == "" {
		b.reply(msg.Chat.ID, "Please select client: /plan <clientId>")
		return
	}
	b.sessions.Start(msg.Chat.ID, msg.From.ID, clientID)
	b.replyMarkdown(msg.Chat.ID, fmt.Sprintf("🧾 Send the diet plan images for *%s*, then /done.", escapeMarkdown(clientID)))
}

func (b *Bot) handleDoneCommand(msg *tgbotapi.Message) {
	sess, ok := b.sessions.Take(msg.Chat.ID)
	if !ok {
		b.reply(msg.Chat.ID, "No upload in progress. Start with /plan <clientId>.")
		return
	}
	if len(sess.Files) == 0 {
		b.reply(msg.Chat.ID, "No files uploaded. Start again with /plan <clientId>.")
		return
	}

	status := tgbotapi.NewMessage(msg.Chat.ID, "🔎 *Extracting diet plan...*")
	status.ParseMode = tgbotapi.ModeMarkdown
	sent, err := b.api.Send(status)
	if err != nil {
		b.logger.Warn("failed to send status message", zap.Error(err))
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.processSession(sess, sent.MessageID)
	}()
}

// processSession downloads the session's images, runs the extraction and
// reports the result in place of the status message.
func (b *Bot) processSession(sess Session, statusID int) {
	ctx, cancel := context.WithTimeout(context.Background(), b.extractTimeout)
	defer cancel()

	images := make([]extraction.Image, 0, len(sess.Files))
	for _, f := range sess.Files {
		img, err := b.downloadFile(ctx, f)
		if err != nil {
			b.logger.Error("failed to download telegram file", zap.String("file_id", f.FileID), zap.Error(err))
			if discardErr := b.deps.Uploads.Discard(images); discardErr != nil {
				b.logger.Warn("failed to discard downloads", zap.Error(discardErr))
			}
			b.finish(sess.ChatID, statusID, "❌ Could not download the images from Telegram. Please try again.")
			return
		}
		images = append(images, img)
	}

	res, err := b.deps.Extractor.Extract(ctx, extraction.Request{Images: images, ClientID: sess.ClientID})
	if b.deps.Usage != nil {
		if recErr := b.deps.Usage.RecordMeta(context.Background(), res.Meta); recErr != nil {
			b.logger.Warn("failed to record usage", zap.Error(recErr))
		}
	}
	if err != nil {
		b.logger.Warn("diet plan extraction failed", zap.String("client_id", sess.ClientID), zap.Error(err))
		b.finish(sess.ChatID, statusID, extractionFailureText(err))
		return
	}

	createdBy := "telegram:" + strconv.FormatInt(sess.UserID, 10)
	stored, err := b.deps.Plans.Save(ctx, sess.ClientID, createdBy, res.Plan)
	if err != nil {
		b.logger.Error("failed to save meal plan", zap.String("client_id", sess.ClientID), zap.Error(err))
		b.finish(sess.ChatID, statusID, "❌ The plan was extracted but could not be saved.")
		return
	}

	parts := formatPlanMarkdownParts(stored.ID, sess.ClientID, res.Plan)
	b.finish(sess.ChatID, statusID, parts[0])
	for _, part := range parts[1:] {
		b.replyMarkdown(sess.ChatID, part)
	}
}

// downloadFile fetches a Telegram file into the upload store, retrying
// transient failures.
func (b *Bot) downloadFile(ctx context.Context, f PendingFile) (extraction.Image, error) {
	url, err := b.api.GetFileDirectURL(f.FileID)
	if err != nil {
		return extraction.Image{}, fmt.Errorf("failed to resolve file %s: %w", f.FileID, err)
	}

	var img extraction.Image
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := b.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
				return fmt.Errorf("download status: %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("download status: %d", resp.StatusCode))
			}
			img, err = b.deps.Uploads.Save(resp.Body, f.MIMEType)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(b.retryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return extraction.Image{}, err
	}
	return img, nil
}

func extractionFailureText(err error) string {
	switch {
	case errors.Is(err, extraction.ErrNoDietFound):
		return "🤷 No diet plan found in these images."
	case errors.Is(err, extraction.ErrSchemaViolation):
		return "⚠️ Could not read a complete weekly plan from these images. Try clearer screenshots."
	case errors.Is(err, extraction.ErrUpstreamUnavailable), errors.Is(err, context.DeadlineExceeded):
		return "❌ The extraction service is unavailable. Please try again later."
	}
	return "❌ Server error."
}

func (b *Bot) finish(chatID int64, statusID int, text string) {
	if statusID == 0 {
		b.replyMarkdown(chatID, text)
		return
	}
	edit := tgbotapi.NewEditMessageText(chatID, statusID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Warn("failed to edit status message", zap.Error(err))
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Warn("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) replyMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// formatPlanMarkdownParts renders a plan as Markdown messages, split
// between days so each part fits in one Telegram message.
func formatPlanMarkdownParts(id int64, clientID string, plan *dietplan.WeeklyMealPlan) []string {
	var parts []string
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📅 *Weekly Diet Plan* #%d for *%s*\n", id, escapeMarkdown(clientID)))

	for _, day := range dietplan.DayKeys {
		var db strings.Builder
		db.WriteString(fmt.Sprintf("\n*Day %s*\n", day))
		daily := plan.Day(day)
		for _, slot := range dietplan.MealSlots {
			meal := daily.Meal(slot)
			diet := strings.TrimSpace(meal.Diet)
			if diet == "" {
				diet = "-"
			}
			db.WriteString(fmt.Sprintf("• %s: %s", slot, escapeMarkdown(diet)))
			if note := strings.TrimSpace(meal.Note); note != "" {
				db.WriteString(fmt.Sprintf(" _(%s)_", escapeMarkdown(note)))
			}
			db.WriteString("\n")
		}

		if sb.Len()+db.Len() > maxMessageLen {
			parts = append(parts, sb.String())
			sb.Reset()
		}
		sb.WriteString(db.String())
	}
	return append(parts, sb.String())
}

// escapeMarkdown escapes the characters legacy Markdown mode treats as markup.
func escapeMarkdown(s string) string {
	return strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[").Replace(s)
}

func (b *Bot) handleMetricsCommand(chatID int64) {
	if b.deps.Usage == nil {
		b.reply(chatID, "Usage metrics are disabled.")
		return
	}
	usage, err := b.deps.Usage.GetDailyUsage(context.Background(), 7)
	if err != nil {
		b.logger.Error("failed to fetch metrics", zap.Error(err))
		b.reply(chatID, "❌ Error fetching metrics.")
		return
	}

	health := metrics.GetSysHealth(filepath.Dir(b.cfg.DatabasePath), b.deps.Uploads.Dir())

	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent Extractions*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("• *%s*: %d tokens (%d extractions, %d failed)\n",
			d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution, d.Failed))
	}

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("• Disk Data: %s\n", health.DataDiskSize))
	sb.WriteString(fmt.Sprintf("• Pending uploads: %d\n", health.PendingUploads))

	b.replyMarkdown(chatID, sb.String())
}
