package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/rcliao/tai/internal/chat"
	"github.com/rcliao/tai/internal/config"
	"github.com/rcliao/tai/internal/llm"
	"github.com/rcliao/tai/internal/logging"
	"github.com/rcliao/tai/internal/memory"
	"github.com/rcliao/tai/internal/patch"
	"github.com/rcliao/tai/internal/prompt"
	"github.com/rcliao/tai/internal/scrape"
	"github.com/rcliao/tai/internal/store"
	"github.com/rcliao/tai/internal/telemetry"
)

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverRedis:
		return store.NewRedisStore(ctx, cfg.Store.RedisURL, cfg.Store.Prefix)
	case config.DriverPostgres:
		return store.NewPostgresStore(ctx, cfg.Store.PostgresDSN)
	default:
		return store.NewSQLiteStore(cfg.Store.Path)
	}
}

func storeLocation(cfg config.Config) string {
	switch cfg.Store.Driver {
	case config.DriverRedis:
		return cfg.Store.RedisURL
	case config.DriverPostgres:
		return "postgres"
	default:
		return cfg.Store.Path
	}
}

// app holds everything a command needs, opened from config.
type app struct {
	cfg     config.Config
	store   store.Store
	kv      *store.KV
	mem     *memory.Manager
	regions *patch.Regions
	log     *zap.Logger

	closers []func()
}

// openApp opens the store and builds the memory and region layers.
// Interactive sessions always log to a file.
func openApp(ctx context.Context, interactive bool) *app {
	cfg := loadConfig()

	logFile := ""
	if interactive || cfg.Trace.Enabled {
		logFile = cfg.Log.File
	}
	log, err := logging.New(cfg.Log.Level, logFile)
	if err != nil {
		exitErr("logger", err)
	}
	a := &app{cfg: cfg, log: log}
	a.closers = append(a.closers, func() { _ = log.Sync() })

	if cfg.Trace.Enabled {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			exitErr("open trace output", err)
		}
		shutdown, err := telemetry.Setup(f, Version)
		if err != nil {
			exitErr("tracing", err)
		}
		a.closers = append(a.closers, func() {
			_ = shutdown(context.Background())
			f.Close()
		})
	}

	var cipher *store.Cipher
	if cfg.Store.EncryptionKey != "" {
		if cipher, err = store.NewCipher(cfg.Store.EncryptionKey); err != nil {
			exitErr("encryption key", err)
		}
	}

	s, err := openStore(ctx, cfg)
	if err != nil {
		exitErr("open store", err)
	}
	a.store = s
	a.closers = append(a.closers, func() { s.Close() })

	a.kv = store.NewKV(s, cipher)
	a.mem = memory.NewManager(a.kv,
		memory.WithEncryption(cfg.Store.Encrypted),
		memory.WithLogger(log.Named("memory")))
	a.regions = patch.NewRegions(a.kv, nil, log.Named("patch"))
	return a
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// pipeline connects the models and builds a turn pipeline.
func (a *app) pipeline(ctx context.Context) *chat.Pipeline {
	factory, err := llm.NewFactory(ctx, llm.Config{
		Provider: a.cfg.LLM.Provider,
		Model:    a.cfg.LLM.Model,
		APIKey:   a.cfg.LLM.APIKey,
		BaseURL:  a.cfg.LLM.BaseURL,
		Timeout:  a.cfg.LLM.Timeout,
	})
	if err != nil {
		exitErr("connect model", err)
	}

	var scraper *scrape.Scraper
	if a.cfg.Scrape.Enabled {
		var fetcher scrape.Fetcher = scrape.NewHTTPFetcher()
		if a.cfg.Scrape.Browser {
			b := scrape.NewBrowserFetcher()
			a.closers = append(a.closers, func() { _ = b.Close() })
			fetcher = b
		}
		scraper = scrape.New(factory("linkfinder", prompt.LinkFinder.String()), fetcher, a.log.Named("scrape"))
	}

	p, err := chat.NewPipeline(chat.Config{
		Composer: prompt.New(""),
		Models: chat.Models{
			Dictator:  factory("dictator", prompt.Dictator.String()),
			Architect: factory("architect", prompt.Architect.String()),
			Historian: factory("historian", prompt.Historian.String()),
		},
		Memory:       a.mem,
		Applier:      a.regions,
		Region:       a.cfg.Patch.Region,
		Scraper:      scraper,
		ChangelogURL: a.cfg.Scrape.ChangelogURL,
		Budget:       a.cfg.Memory.Budget,
		Logger:       a.log.Named("chat"),
	})
	if err != nil {
		exitErr("pipeline", err)
	}
	return p
}

func printJSONOrText(v any, text string) {
	if formatFlag == "text" {
		fmt.Println(text)
		return
	}
	printJSON(v)
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
