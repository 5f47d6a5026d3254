package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"yanderss/internal/config"
	"yanderss/internal/database"
	"yanderss/internal/feed"
	"yanderss/internal/notifier"
	"yanderss/internal/scheduler"
)

func main() {
	os.Exit(run())
}

func run() int {
	start := time.Now()

	cfg, opts, err := config.Load(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		return 0
	}
	if err != nil {
		slog.Error("Failed to load config",
			"error", err)

		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log, closeLog, err := initLogger(cfg)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to open log file",
			"error", err,
			"logPath", cfg.LogPath)

		return 1
	}
	defer closeLog()
	slog.SetDefault(log)

	if err = os.MkdirAll(cfg.SaveDir, 0o755); err != nil {
		log.ErrorContext(ctx, "Failed to create save dir",
			"error", err,
			"saveDir", cfg.SaveDir)

		return 1
	}

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return 1
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.DebugContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	if opts.Command() {
		if err = manageKeywords(ctx, db, opts, os.Stdout); err != nil {
			log.ErrorContext(ctx, "Failed to manage keywords",
				"error", err)

			return 1
		}

		return 0
	}

	sched, stop, err := initScheduler(ctx, cfg, db, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize scheduler",
			"error", err)

		return 1
	}
	defer stop()

	if opts.Once {
		if err = sched.RunOnce(ctx); err != nil {
			log.ErrorContext(ctx, "Poll cycle failed",
				"error", err)

			return 1
		}

		return 0
	}

	log.InfoContext(ctx, "Scheduler is started",
		"interval", cfg.PollInterval.String(),
		"schedule", cfg.Schedule,
		"saveDir", cfg.SaveDir,
		"indexPath", cfg.IndexPath)

	err = sched.Run(ctx)

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())

	if err != nil {
		return 1
	}

	return 0
}

func initLogger(cfg config.Config) (*slog.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}

	logFile, err := os.OpenFile(cfg.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	log := slog.New(slog.NewJSONHandler(io.MultiWriter(os.Stdout, logFile), &slog.HandlerOptions{
		Level: level,
	}))

	return log, func() { _ = logFile.Close() }, nil
}

func initScheduler(
	ctx context.Context,
	cfg config.Config,
	db *database.Database,
	log *slog.Logger,
) (*scheduler.Scheduler, func(), error) {
	tiers, err := cfg.BuildTiers()
	if err != nil {
		return nil, nil, err
	}

	schedule, err := cfg.CronSchedule()
	if err != nil {
		return nil, nil, err
	}

	client := &http.Client{Timeout: cfg.RequestTimeout}
	fetcher := feed.NewFetcher(client, cfg.RequestTimeout, cfg.UserAgent, cfg.SaveDir, log)
	processor := feed.NewProcessor(fetcher, feed.NewExtractor(tiers), cfg.Site, log)

	var (
		n    feed.Notifier
		stop = func() {}
	)

	if cfg.TelegramToken != "" {
		tg, tgErr := notifier.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, log)
		if tgErr != nil {
			return nil, nil, tgErr
		}

		n = tg
		stop = tg.Stop
		log.InfoContext(ctx, "Telegram notifier is initialized",
			"chatID", cfg.TelegramChatID)
	}

	poller := feed.NewPoller(fetcher, processor, n, cfg.IndexPath, log)
	cycle := scheduler.NewKeywordCycle(db, poller, func(keyword string) string {
		return feed.KeywordFeedURL(cfg.Site, keyword)
	}, log)

	return scheduler.New(cycle, schedule, cfg.Cooldown, log), stop, nil
}

func manageKeywords(
	ctx context.Context,
	db *database.Database,
	opts config.Options,
	out io.Writer,
) error {
	if len(opts.Add) > 0 {
		added, err := db.AddKeywords(ctx, opts.Add)
		if err != nil {
			return fmt.Errorf("add keywords: %w", err)
		}

		for _, k := range added {
			_, _ = fmt.Fprintf(out, "added %s\n", k)
		}
	}

	if len(opts.Remove) > 0 {
		removed, err := db.RemoveKeywords(ctx, opts.Remove)
		if err != nil {
			return fmt.Errorf("remove keywords: %w", err)
		}

		for _, k := range removed {
			_, _ = fmt.Fprintf(out, "removed %s\n", k)
		}
	}

	if opts.List {
		keywords, err := db.ListKeywords(ctx)
		if err != nil {
			return fmt.Errorf("list keywords: %w", err)
		}

		for _, k := range keywords {
			_, _ = fmt.Fprintln(out, k)
		}
	}

	return nil
}
