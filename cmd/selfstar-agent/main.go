package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/chani337/selfstar/internal/brain"
	"github.com/chani337/selfstar/internal/config"
	"github.com/chani337/selfstar/internal/core/domain"
	"github.com/chani337/selfstar/internal/core/ports"
	"github.com/chani337/selfstar/internal/sites/instagram"
	"github.com/chani337/selfstar/internal/storage"
	"github.com/chani337/selfstar/internal/triage"
	"github.com/chani337/selfstar/internal/ui/telegram"
)

func main() {
	godotenv.Load()
	fmt.Println("🤖 selfstar Comment Agent Starting... [v0.4.0]")

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init failed:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("configuration", zap.Error(err))
	}

	ctx := context.Background()

	var store ports.DedupStore
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Warn("postgres unavailable, falling back to sqlite", zap.Error(err))
		} else {
			store = pg
			fmt.Println("🐘 Dedup store: PostgreSQL")
		}
	}
	if store == nil {
		lite, err := storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			logger.Fatal("sqlite store", zap.Error(err))
		}
		store = lite
		fmt.Println("📄 Dedup store: SQLite")
	}
	defer store.Close()

	site := instagram.NewClient(cfg.BackendBaseURL, cfg.BackendSession)

	var drafts ports.DraftClient = site
	if cfg.DraftSource == "gemini" {
		g, err := brain.NewGeminiDrafter(ctx, cfg.GeminiAPIKey)
		if err != nil {
			logger.Fatal("gemini drafter", zap.Error(err))
		}
		drafts = g
		fmt.Println("🧠 Drafts: Gemini direct")
	}

	var ui ports.Interaction
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		tg, err := telegram.NewTelegramUI(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			logger.Warn("telegram disabled", zap.Error(err))
		} else {
			ui = tg
			fmt.Println("📱 Operator channel: Telegram")
		}
	}

	refresher := triage.NewRefresher(site, ports.OverviewFilters{
		MediaLimit:    cfg.MediaLimit,
		CommentsLimit: cfg.CommentsLimit,
		ExcludeSeen:   cfg.ExcludeSeen,
	}, cfg.OverviewTimeout, logger)

	autoImage := triage.NewAutoImageTrigger(triage.AutoImageConfig{
		Enabled:     cfg.AutoImage.Enabled,
		RetryFailed: cfg.AutoImage.RetryFailed,
	}, site, store, logger)

	refreshAgain := make(chan struct{}, 1)
	requestRefresh := func() {
		select {
		case refreshAgain <- struct{}{}:
		default:
		}
	}

	health := triage.NewAIHealth()
	single := triage.NewSingleWorkflow(drafts, site, health, requestRefresh, logger)
	bulk := triage.NewBulkWorkflow(drafts, site, health, requestRefresh, func(jobID string, index int, entry domain.DraftEntry) {
		logger.Info("bulk entry update",
			zap.String("job", jobID),
			zap.Int("index", index),
			zap.String("comment_id", entry.CommentID),
			zap.String("status", string(entry.Status)))
	}, logger)

	manual := make(chan bool, 1)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		for {
			reader.ReadString('\n')
			manual <- true
		}
	}()

	fmt.Println("🚀 System fully operational.")

	for {
		fmt.Printf("\n--- 🔄 Refresh Cycle (%s) ---\n", time.Now().Format("15:04:05"))
		personas, err := refresher.Refresh(ctx)
		switch {
		case errors.Is(err, domain.ErrAuthRequired):
			fmt.Println("🔒 로그인이 필요합니다. 백엔드 세션을 갱신해 주세요.")
		case err != nil:
			logger.Warn("refresh failed, keeping previous snapshot", zap.Error(err))
		default:
			autoImage.Scan(ctx, personas)
			if ui != nil {
				runApprovalCycle(ctx, personas, single, bulk, ui, logger)
			}
		}

		select {
		case <-time.After(cfg.RefreshInterval):
		case <-manual:
			fmt.Println("⚡ Manual trigger!")
		case <-refreshAgain:
		}
	}
}

// runApprovalCycle walks the snapshot and routes drafts through the operator
// channel: a persona with one pending comment goes through the single-draft
// workflow, more than one through a bulk job.
func runApprovalCycle(ctx context.Context, personas []domain.PersonaOverview, single *triage.SingleWorkflow, bulk *triage.BulkWorkflow, ui ports.Interaction, logger *zap.Logger) {
	for _, p := range personas {
		total := 0
		for _, m := range p.Items {
			total += len(m.Comments)
		}
		if total == 0 {
			continue
		}
		if total == 1 {
			handleSingle(ctx, p, single, ui, logger)
		} else {
			handleBulk(ctx, p, bulk, ui, logger)
		}
	}
}

func handleSingle(ctx context.Context, p domain.PersonaOverview, single *triage.SingleWorkflow, ui ports.Interaction, logger *zap.Logger) {
	var media domain.MediaItem
	var comment domain.Comment
	for _, m := range p.Items {
		if len(m.Comments) > 0 {
			media = m
			comment = m.Comments[0]
			break
		}
	}

	for attempt := 0; attempt < 3; attempt++ {
		if err := single.RequestDraft(ctx, p.PersonaNum, comment.ID, comment.Text, media); err != nil {
			if errors.Is(err, domain.ErrAIUnavailable) {
				fmt.Println("🧠 AI 서비스가 오프라인입니다. 초안 생성을 중단합니다.")
			} else {
				logger.Warn("draft failed", zap.String("comment_id", comment.ID), zap.Error(err))
			}
			return
		}

		draft, ok := single.Draft()
		if !ok {
			return
		}

		title := fmt.Sprintf("💬 [%s] 답글 승인", p.Name)
		body := fmt.Sprintf("📍 댓글(@%s): %s\n\n🤖 답글: %s", comment.Username, comment.Text, draft.Reply)
		action, err := ui.Confirm(ctx, title, body)
		if err != nil || action == ports.ActionSkip {
			single.Cancel()
			return
		}
		if action == ports.ActionRegenerate {
			single.Cancel()
			continue
		}

		if err := single.Confirm(ctx); err != nil {
			logger.Warn("reply post failed", zap.String("comment_id", comment.ID), zap.Error(err))
			single.Cancel()
		}
		return
	}
	single.Cancel()
}

func handleBulk(ctx context.Context, p domain.PersonaOverview, bulk *triage.BulkWorkflow, ui ports.Interaction, logger *zap.Logger) {
	if _, err := bulk.StartBulk(ctx, p); err != nil {
		if !errors.Is(err, domain.ErrNothingToDraft) {
			logger.Warn("bulk draft failed", zap.Int("persona", p.PersonaNum), zap.Error(err))
		}
		return
	}

	job, ok := bulk.Job()
	if !ok {
		return
	}

	ready := 0
	body := ""
	for _, e := range job.Entries {
		switch e.Status {
		case domain.EntryReady:
			ready++
			body += fmt.Sprintf("✅ %s → %s\n", truncate(e.Text, 30), truncate(e.Reply, 40))
		case domain.EntryError:
			body += fmt.Sprintf("⚠️ %s → %s\n", truncate(e.Text, 30), e.Err)
		}
	}
	if ready == 0 {
		bulk.CancelBulk()
		return
	}

	title := fmt.Sprintf("📬 [%s] 일괄 답글 승인 (%d건)", p.Name, ready)
	action, err := ui.Confirm(ctx, title, body)
	if err != nil || action != ports.ActionApprove {
		bulk.CancelBulk()
		return
	}

	if err := bulk.ConfirmBulk(ctx); err != nil {
		logger.Warn("bulk reply failed", zap.Int("persona", p.PersonaNum), zap.Error(err))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
