package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deal_scout/config"
	"deal_scout/httputil"
	"deal_scout/llm"
	"deal_scout/logging"
	"deal_scout/scheduler"
	"deal_scout/scraper"
	"deal_scout/server"
	"deal_scout/services"
	"deal_scout/storage"
	"deal_scout/voice"
)

const (
	TriggerCLI   = "cli"
	TriggerVoice = "voice"
)

var (
	queryOnce = flag.String("query", "", "Answer one query, print the JSON response and exit")
	fromStdin = flag.Bool("stdin", false, "Treat each stdin line as a voice transcript and answer it")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogFile)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}
	logging.SetLevel(cfg.LogLevel)

	log.Println("Starting deal_scout...")
	log.Printf("Loaded %d allow-listed sites, %d saved searches", len(cfg.Sites), len(cfg.Watchlist))
	if !cfg.LLM.Configured() {
		log.Println("Warning: LLM_API_KEY is not set, every query will fail with a configuration error")
	}

	clients := httputil.NewClients(cfg)
	if cfg.Proxy.URL != "" {
		log.Printf("Proxy: %s", maskConnectionString(cfg.Proxy.URL))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sqliteStore, err := storage.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.Storage.DBPath)

	gen := llm.NewClient(cfg.LLM, clients.Model)

	var browser scraper.Fetcher
	if cfg.Scraper.BrowserEnabled {
		bf := scraper.NewBrowserFetcher(cfg.Scraper.Timeout)
		defer bf.Close()
		browser = bf
		log.Println("Browser fetcher enabled")
	}
	fetchers := scraper.NewFetcherSet(cfg.Sites, scraper.NewHTTPFetcher(clients.Scrape), browser)

	pipeline := scraper.NewPipeline(cfg, scraper.Stages{
		Classifier: services.NewIntentClassifier(gen),
		Expander:   services.NewQueryExpander(gen),
		Analyzer:   services.NewDealAnalyzer(gen),
		Responder:  services.NewResponder(gen),
		Discovery:  scraper.NewDiscovery(clients.Search, cfg.Search.URL, cfg.Sites, cfg.Scraper.Concurrency),
		Extractor:  scraper.NewExtractor(fetchers, cfg.Scraper.Concurrency),
	})
	pipeline.SetRecorder(sqliteStore)

	handlers := &server.Handlers{
		Agent:   pipeline,
		Runs:    sqliteStore,
		Speaker: voice.NewHTTPSpeaker(cfg.Voice, clients.Voice),
	}

	if cfg.Storage.DatabaseURL != "" {
		pgStore, err := storage.NewPostgresStore(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pgStore.Close()
		pipeline.AddSink(pgStore)
		handlers.Deals = pgStore
		log.Printf("Deal archive: %s", maskConnectionString(cfg.Storage.DatabaseURL))
	}

	if cfg.S3.Enabled() {
		archiver, err := storage.NewS3Archiver(ctx, cfg.S3)
		if err != nil {
			log.Fatalf("Failed to configure S3: %v", err)
		}
		pipeline.AddSink(archiver)
		log.Printf("Report archive: s3://%s", cfg.S3.Bucket)
	}

	// One-shot modes
	if *queryOnce != "" {
		resp, err := pipeline.Run(ctx, *queryOnce, TriggerCLI)
		if err != nil {
			log.Fatalf("Query failed: %v", err)
		}
		printJSON(resp)
		return
	}

	if *fromStdin {
		answer := voice.Dispatch(func(ctx context.Context, text string) {
			resp, err := pipeline.Run(ctx, text, TriggerVoice)
			if err != nil {
				log.Printf("Query %q failed: %v", text, err)
				return
			}
			printJSON(resp)
		})
		if err := voice.ReadTranscripts(ctx, os.Stdin, answer); err != nil {
			log.Fatalf("Read transcripts: %v", err)
		}
		return
	}

	// Daemon mode
	sched := scheduler.New(cfg, pipeline)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	if len(cfg.Watchlist) > 0 {
		handlers.Watchlist = sched
	}

	srv := server.NewServer(cfg.HTTPAddr, handlers)
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("HTTP server: %v", err)
		}
	}()

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	log.Println("Goodbye!")
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("encode response: %v", err)
		return
	}
	fmt.Println(string(data))
}

// maskConnectionString masks the password in a connection string for logging
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
