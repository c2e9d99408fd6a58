package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/lingua/internal/ai"
	"github.com/example/lingua/internal/api"
	"github.com/example/lingua/internal/bot"
	"github.com/example/lingua/internal/config"
	"github.com/example/lingua/internal/database"
	"github.com/example/lingua/internal/excel"
	"github.com/example/lingua/internal/lesson"
	"github.com/example/lingua/internal/logger"
	"github.com/example/lingua/internal/review"
	"github.com/example/lingua/internal/scheduler"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load")
	importPath := flag.String("import", "", "import cards from an .xlsx or .csv file and exit")
	importSheet := flag.String("sheet", "Sheet1", "sheet to read when importing a workbook")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *importPath, *importSheet); err != nil {
		log.Error("exiting", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, importPath, importSheet string) error {
	db, err := database.Open(database.Options{
		Type: cfg.DBType,
		Path: cfg.DatabasePath,
		URL:  cfg.DatabaseURL,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("database ready", "type", cfg.DBType)

	reviews := review.NewScheduler(database.NewReviewStore(db), review.WithLogger(log.With("component", "review")))

	if importPath != "" {
		importCfg := excel.DefaultImportConfig()
		importCfg.FilePath = importPath
		importCfg.SheetName = importSheet
		res, err := excel.ImportCards(ctx, reviews, importCfg)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		log.Info("import finished",
			"processed", res.TotalProcessed,
			"decks_created", res.DecksCreated,
			"created", res.Created,
			"updated", res.Updated,
			"skipped", res.Skipped,
			"errors", len(res.Errors),
		)
		for _, e := range res.Errors {
			log.Warn("import row failed", "detail", e)
		}
		return nil
	}

	gen, scorer, err := collaborators(cfg)
	if err != nil {
		return err
	}
	lessons := database.NewLessonRepository(db)
	machine := lesson.NewMachine(gen, scorer, lessons,
		lesson.WithLogger(log.With("component", "lesson")),
		lesson.WithCallTimeout(cfg.CollaboratorTimeout),
		lesson.WithRecentScoresLimit(cfg.RecentScoresLimit),
	)
	if err := machine.Restore(ctx); err != nil {
		return err
	}

	var notifier scheduler.Notifier
	if cfg.RemindersEnabled() {
		n, err := bot.NewNotifier(bot.Config{Token: cfg.TelegramToken, ChatID: cfg.TelegramChatID}, log.With("component", "telegram"))
		if err != nil {
			// Reminders are optional; the API keeps working without them
			log.Warn("telegram reminders disabled", "error", err)
		} else {
			notifier = n
		}
	}
	jobs := scheduler.New(reviews, notifier, scheduler.Config{
		RefreshInterval: cfg.DueRefreshInterval,
		StartHour:       cfg.NotificationStartHour,
		EndHour:         cfg.NotificationEndHour,
	}, log.With("component", "scheduler"))
	if err := jobs.Start(ctx); err != nil {
		return err
	}
	defer jobs.Stop()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(api.NewHandler(reviews, machine, lessons, log.With("component", "api"))),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.HTTPAddr, "lesson_backend", cfg.LessonBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func collaborators(cfg *config.Config) (lesson.Generator, lesson.Scorer, error) {
	switch cfg.LessonBackend {
	case config.BackendFunctions:
		c := ai.NewFunctionsClient(cfg.FunctionsURL, cfg.FunctionsAPIKey, nil)
		return c, c, nil
	case config.BackendOpenAI:
		c, err := ai.NewChatGPT(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	case config.BackendMock:
		m := ai.NewMock(0)
		return m, m, nil
	default:
		return nil, nil, fmt.Errorf("unknown lesson backend %q", cfg.LessonBackend)
	}
}
