package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"trustclaw/config"
	"trustclaw/internal/brain"
	"trustclaw/internal/dashboard"
	"trustclaw/internal/metrics"
	"trustclaw/internal/scheduler"
	"trustclaw/internal/scoring"
	"trustclaw/internal/state"
	"trustclaw/logger"
	"trustclaw/reader"
	"trustclaw/reader/dexscreener"
	"trustclaw/reader/helius"
	"trustclaw/reader/price"
	"trustclaw/reader/social"
	"trustclaw/scanner"
	"trustclaw/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", config.DefaultPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": config.AppEnvironment(),
	}).Info("starting trustclaw")

	for _, w := range cfg.Warnings() {
		log.WithComponent("main").Warn(w)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.CloudWatch.Enabled {
		logger.InitCloudWatch(ctx, cfg.CloudWatch.Region, cfg.CloudWatch.Namespace, cfg.CloudWatch.Dashboard)
	}
	metrics.Init()

	recent := state.NewRecent(cfg.State.RecentLimit)
	notifier := buildNotifier(cfg, log)
	opts := scanner.Options{Log: log, Notifier: notifier, Recent: recent}

	scorer, err := scoring.New(cfg.Scoring.Weights)
	if err != nil {
		log.WithError(err).Error("invalid scoring weights")
		os.Exit(1)
	}

	var (
		analyzer    scanner.Analyzer
		briefWriter scanner.BriefWriter
		archiver    scanner.Archiver
	)
	if cfg.LLM.Enabled {
		provider, key := cfg.LLM.Resolve()
		completer, err := brain.NewCompleter(provider, key, cfg.LLM.BaseURL, cfg.LLM.Model)
		if err != nil {
			log.WithError(err).Error("failed to create llm client")
			os.Exit(1)
		}
		analyzer = brain.NewAnalyzer(completer, cfg.LLM.AnalyzeTimeout)
		briefWriter = brain.NewBriefWriter(completer, cfg.LLM.BriefTimeout)
		log.WithComponent("main").WithFields(logger.Fields{"provider": provider, "model": completer.Model()}).Info("llm analysis enabled")
	}

	if cfg.Storage.S3.Enabled {
		s3cfg := cfg.Storage.S3
		a, err := writer.NewS3Archive(ctx, writer.S3Options{
			Bucket:          s3cfg.Bucket,
			Prefix:          s3cfg.Prefix,
			Region:          s3cfg.Region,
			Endpoint:        s3cfg.Endpoint,
			PathStyle:       s3cfg.PathStyle,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
		})
		if err != nil {
			log.WithError(err).Error("failed to create S3 archive")
			os.Exit(1)
		}
		archiver = a
	} else {
		log.WithComponent("main").Info("S3 storage disabled; briefs will not be archived")
	}

	src := cfg.Sources
	dex := dexscreener.New(newClient("dexscreener", src, src.DexScreener), src.DexScreener.BaseURL)

	var jobs []scheduler.Job
	var names []string
	add := func(t scheduler.Task, every time.Duration, immediate bool) {
		jobs = append(jobs, scheduler.Job{Task: t, Interval: every, Immediate: immediate})
		names = append(names, t.Name())
	}

	if sc := cfg.Scanners.TokenLaunch; sc.Enabled {
		add(scanner.NewTokenLaunch(opts, dex, scorer, analyzer, scanner.TokenLaunchConfig{
			Threshold:   cfg.Scoring.Threshold,
			MaxPerCycle: sc.MaxPerCycle,
			DedupWindow: sc.DedupWindow,
		}), sc.Interval, true)
	}

	if sc := cfg.Scanners.Pump; sc.Enabled {
		add(scanner.NewPump(opts, dex, scorer, analyzer, scanner.PumpConfig{
			MinChangeH1:   sc.MinChangeH1,
			MinLiquidity:  sc.MinLiquidity,
			AnalyzeChange: sc.AnalyzeChange,
			Threshold:     cfg.Scoring.Threshold,
			MaxPerCycle:   sc.MaxPerCycle,
			DedupWindow:   sc.DedupWindow,
		}), sc.Interval, true)
	}

	if cfg.WhaleEnabled() {
		sc := cfg.Scanners.Whale
		swaps := helius.New(newClient("helius", src, src.Helius.HTTPSourceConfig), src.Helius.BaseURL, src.Helius.APIKey)
		oracle := price.NewOracle(price.OracleOptions{
			TTL:         src.Price.CacheTTL,
			Timeout:     src.Price.Timeout,
			FallbackUSD: src.Price.FallbackUSD,
		},
			price.NewBinanceSource(src.Price.BinanceBaseURL, price.SOLUSDT, nil),
			price.NewBybitSource(src.Price.BybitBaseURL, price.SOLUSDT),
		)
		add(scanner.NewWhale(opts, swaps, oracle, scanner.WhaleConfig{
			Wallets:     sc.Wallets,
			MinUSD:      sc.MinUSD,
			TxLimit:     sc.TxLimit,
			DedupWindow: sc.DedupWindow,
		}), sc.Interval, true)
	}

	if sc := cfg.Scanners.Sentiment; sc.Enabled {
		sources := []scanner.PostSource{
			social.NewReddit(newClient("reddit", src, src.Reddit.HTTPSourceConfig), src.Reddit.BaseURL, src.Reddit.Subreddits, src.Reddit.Limit),
		}
		if src.News.Enabled && len(src.News.URLs) > 0 {
			sources = append(sources, social.NewNews(newClient("news", src, src.News.HTTPSourceConfig), src.News.URLs, src.News.Limit))
		}
		add(scanner.NewSentiment(opts, scanner.SentimentConfig{
			Keywords:      sc.Keywords,
			AlertMinScore: sc.AlertMinScore,
			MaxAlerts:     sc.MaxAlerts,
			DedupWindow:   sc.DedupWindow,
		}, sources...), sc.Interval, true)
	}

	// the first brief covers a full interval of findings
	if sc := cfg.Scanners.Brief; sc.Enabled {
		add(scanner.NewMarketBrief(opts, briefWriter, archiver, scanner.BriefConfig{
			Interval: sc.Interval,
			TopLimit: sc.TopLimit,
		}), sc.Interval, false)
	}

	if len(jobs) == 0 {
		log.Error("no scanners enabled; nothing to do")
		os.Exit(1)
	}

	sched := scheduler.New(log, jobs...)

	dash, err := dashboard.NewServer(cfg.Dashboard, log, dashboard.Sources{Tasks: sched, Recent: recent})
	if err != nil {
		log.WithError(err).Error("failed to create dashboard")
		os.Exit(1)
	}
	dashDone := make(chan struct{})
	go func() {
		defer close(dashDone)
		if err := dash.Run(ctx, cfg.App.Name); err != nil {
			log.WithComponent("dashboard").WithError(err).Error("dashboard stopped")
		}
	}()

	if cfg.Telegram.SendStartup {
		scanner.NotifyStartup(ctx, notifier, cfg.App.Version, names, analyzer != nil)
	}

	if err := sched.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start scheduler")
		os.Exit(1)
	}

	logger.StartReport(ctx, log, cfg.Logging.ReportInterval)

	log.WithField("scanners", names).Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	done := make(chan struct{})
	go func() {
		sched.Stop()
		<-dashDone
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("trustclaw stopped")
}

func buildNotifier(cfg *config.Config, log *logger.Log) scanner.Notifier {
	if !cfg.Telegram.Configured() {
		return writer.NewLogOnly()
	}
	tg, err := writer.NewTelegram(writer.TelegramOptions{
		Token:         cfg.Telegram.BotToken,
		ChatID:        cfg.Telegram.ChatID,
		Endpoint:      cfg.Telegram.Endpoint,
		RatePerSecond: cfg.Telegram.RatePerSecond,
	})
	if err != nil {
		log.WithComponent("main").WithError(err).Error("telegram unavailable; alerts will only be logged")
		return writer.NewLogOnly()
	}
	return tg
}

func newClient(name string, src config.SourcesConfig, hc config.HTTPSourceConfig) *reader.Client {
	return reader.NewClient(name, reader.ClientOptions{
		Timeout:           hc.Timeout,
		RequestsPerMinute: hc.RequestsPerMinute,
		Burst:             hc.Burst,
		UserAgent:         src.UserAgent,
		BreakerFailures:   src.BreakerFailures,
		BreakerCooldown:   src.BreakerCooldown,
	})
}
