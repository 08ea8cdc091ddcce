package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"moviepost-tg-bot/internal/config"
	"moviepost-tg-bot/internal/engine"
	"moviepost-tg-bot/internal/publish"
	"moviepost-tg-bot/internal/render"
	"moviepost-tg-bot/internal/session"
	"moviepost-tg-bot/internal/storage"
	"moviepost-tg-bot/internal/tg"
	"moviepost-tg-bot/internal/tmdb"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	var cfgStore storage.Store
	if cfg.MongoURI != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		mongoStore, err := storage.NewMongoStore(ctx, cfg.MongoURI)
		cancel()
		if err != nil {
			log.Fatalf("FATAL: mongo config store: %v", err)
		}
		cfgStore = mongoStore
		log.Printf("config store: mongo")
	} else {
		fileStore, err := storage.NewFileStore(cfg.DataDir)
		if err != nil {
			log.Fatalf("FATAL: file config store: %v", err)
		}
		cfgStore = fileStore
		log.Printf("config store: %s", cfg.DataDir)
	}

	bot := tg.NewClient(cfg.BotToken)
	meta := tmdb.NewClient(cfg.TMDBAPIKey, "")
	gateway := publish.NewGateway(cfg.PasteURL, cfg.ImgBBKey)
	compositor := render.NewCompositor(cfg.FontDir)
	sessions := session.NewStore()

	eng := engine.New(bot, meta, gateway, compositor, sessions, cfgStore, engine.Options{
		DefaultAdLink: cfg.AdLink,
		TelegramLink:  cfg.TelegramLink,
		WaitSeconds:   render.DefaultWaitSeconds,
		SeedCounter:   render.DefaultSeedDownloads,
	})

	// Keep-alive endpoint so the hosting platform considers us healthy.
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("✅ Bot is up and running!"))
	})
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("keep-alive server listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("keep-alive server failed: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bot.DeleteWebhook(ctx); err != nil {
		log.Printf("deleteWebhook: %v", err)
	}
	log.Printf("🚀 Bot is online, polling for updates")
	poll(ctx, bot, eng)

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	log.Println("Stopped")
}

// poll runs the long-poll loop. Each update is handled in its own
// goroutine so one user's slow generation cannot stall another's prompts.
func poll(ctx context.Context, bot *tg.Client, eng *engine.Engine) {
	offset := 0
	for {
		if ctx.Err() != nil {
			return
		}
		updates, err := bot.GetUpdates(ctx, offset, 30)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("polling error: %v", err)
			sleep(ctx, 2*time.Second)
			continue
		}
		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			go eng.Dispatch(ctx, upd)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
