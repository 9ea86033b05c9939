package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/djlord-it/easy-remind/internal/analytics"
	"github.com/djlord-it/easy-remind/internal/api"
	"github.com/djlord-it/easy-remind/internal/config"
	"github.com/djlord-it/easy-remind/internal/digest"
	"github.com/djlord-it/easy-remind/internal/dispatcher"
	"github.com/djlord-it/easy-remind/internal/metrics"
	"github.com/djlord-it/easy-remind/internal/notify"
	"github.com/djlord-it/easy-remind/internal/ratelimit"
	"github.com/djlord-it/easy-remind/internal/reconciler"
	"github.com/djlord-it/easy-remind/internal/recorder"
	"github.com/djlord-it/easy-remind/internal/scheduler"
	"github.com/djlord-it/easy-remind/internal/store/postgres"
	"github.com/djlord-it/easy-remind/internal/timeparse"
	"github.com/djlord-it/easy-remind/internal/transport/channel"

	_ "github.com/lib/pq"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`easyremind - chat-platform reminder scheduler

Usage:
  easyremind <command>

Commands:
  serve      Start the scheduler and HTTP command endpoint
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  CHANNEL_WEBHOOK_URL       Bridge endpoint for channel posts (required)
  DM_WEBHOOK_URL            Bridge endpoint for direct messages (required)
  WEBHOOK_SECRET            HMAC secret for outgoing posts (optional)
  WEBHOOK_TIMEOUT           Per-delivery timeout (default: "10s")

  HTTP_ADDR                 HTTP server address (default: ":8080", PORT honored)
  DEFAULT_TIMEZONE          Zone for wall-clock expressions (default: "UTC")
  NATURAL_DATES             Accept phrases like "tomorrow 3pm" (default: "true")
  MAX_HORIZON               How far ahead reminders may be set (default: "720h")
  REMIND_COOLDOWN           Per-user cooldown for self reminders (default: "10s")
  REMINDYOU_COOLDOWN        Per-user cooldown for reminding others (default: "10s")
  EVENTBUS_BUFFER_SIZE      Outcome event buffer (default: "100")

  DATABASE_URL              PostgreSQL connection string (optional; enables durability)
  DB_MAX_OPEN_CONNS         Max open database connections (default: "25")
  DB_MAX_IDLE_CONNS         Max idle database connections (default: "5")
  DB_CONN_MAX_LIFETIME      Max connection lifetime (default: "30m")
  DB_CONN_MAX_IDLE_TIME     Max connection idle time (default: "5m")

  REDIS_ADDR                Redis address for analytics counters (optional)
  ANALYTICS_WINDOW          Counter bucket width (default: "24h")
  ANALYTICS_RETENTION       Counter expiry (default: "720h")

  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")
  RECORDER_DRAIN_TIMEOUT    Outcome drain timeout on shutdown (default: "30s")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")

  DIGEST_ENABLED            Enable daily upcoming-reminder digest (default: "false")
  DIGEST_SCHEDULE           Digest cron expression (default: "0 9 * * *")
  DIGEST_TIMEZONE           Zone the digest schedule runs in (default: DEFAULT_TIMEZONE)
  DIGEST_CHANNEL_ID         Channel the digest posts to (required when enabled)
  DIGEST_WINDOW             Digest lookahead (default: "24h")

  RECONCILE_ENABLED         Enable missed-reminder sweeper (default: "false")
  RECONCILE_INTERVAL        How often to scan for unlinked rows (default: "5m")
  RECONCILE_THRESHOLD       Min row age before re-arming (default: "1m")
  RECONCILE_BATCH_SIZE      Max rows per cycle (default: "100")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	logConfigWarnings(cfg)

	// Validate guarantees the zone loads.
	location, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid DEFAULT_TIMEZONE: %v\n", err)
		return exitInvalidConfig
	}

	// Connect to PostgreSQL when durability is configured
	var db *sql.DB
	var store *postgres.Store
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
			return exitRuntimeError
		}
		defer db.Close()

		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
		db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
		db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

		log.Printf("easyremind: db pool configured (max_open=%d, max_idle=%d, max_lifetime=%s, max_idle_time=%s)",
			cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)

		if err := db.Ping(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
			return exitRuntimeError
		}
		if err := probeRemindersTable(db); err != nil {
			if err == sql.ErrNoRows {
				fmt.Fprintln(os.Stderr, "reminders table missing or outdated; apply the schema before starting")
			} else {
				fmt.Fprintf(os.Stderr, "failed to probe reminders table: %v\n", err)
			}
			return exitRuntimeError
		}
		store = postgres.New(db)
	} else {
		log.Println("easyremind: DATABASE_URL not set; running in-memory only")
	}

	parser := timeparse.NewParser()
	if cfg.NaturalDates {
		parser = parser.WithNaturalLanguage()
	}

	limiter := ratelimit.New(map[string]time.Duration{
		dispatcher.ClassRemind:    cfg.RemindCooldown,
		dispatcher.ClassRemindYou: cfg.RemindYouCooldown,
	}, cfg.RemindCooldown)

	notifier := notify.NewWebhookNotifier(cfg.ChannelWebhookURL, cfg.DMWebhookURL, cfg.WebhookSecret).
		WithTimeout(cfg.WebhookTimeout)

	// Initialize metrics sink (optional)
	var metricsSink *metrics.PrometheusSink
	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("easyremind: metrics enabled (path=%s)", cfg.MetricsPath)
	} else {
		log.Println("easyremind: METRICS_ENABLED not set; metrics disabled")
	}

	// Create outcome event bus with optional metrics
	var busOpts []channel.Option
	if metricsSink != nil {
		busOpts = append(busOpts, channel.WithMetrics(metricsSink))
	}
	bus := channel.NewEventBus(cfg.EventBusBufferSize, busOpts...)

	sched := scheduler.New(limiter, notifier, scheduler.WallClock{}).
		WithEmitter(bus)
	if store != nil {
		sched = sched.WithStore(store)
	}
	if metricsSink != nil {
		sched = sched.WithMetrics(metricsSink)
	}

	disp := dispatcher.New(dispatcher.Config{
		DefaultZone: location,
		MaxHorizon:  cfg.MaxHorizon,
	}, parser, sched)
	if metricsSink != nil {
		disp = disp.WithMetrics(metricsSink)
	}

	var rec *recorder.Recorder
	if store != nil {
		rec = recorder.New(store)
	} else {
		rec = recorder.New(nil)
	}
	rec = rec.WithDrainTimeout(cfg.RecorderDrainTimeout)
	if metricsSink != nil {
		rec = rec.WithMetrics(metricsSink)
	}

	// Wire analytics if Redis is configured
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		sink := analytics.NewRedisSink(redisClient, analytics.Config{
			Window:    cfg.AnalyticsWindow,
			Retention: cfg.AnalyticsRetention,
		})
		rec = rec.WithAnalytics(sink)
		log.Printf("easyremind: analytics enabled (redis=%s)", cfg.RedisAddr)
	} else {
		log.Println("easyremind: REDIS_ADDR not set; analytics disabled")
	}

	// Re-arm persisted reminders before accepting new commands.
	if store != nil {
		rearmCtx, rearmCancel := context.WithTimeout(context.Background(), 30*time.Second)
		rearmed, err := rearmPersisted(rearmCtx, store, sched)
		rearmCancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to re-arm persisted reminders: %v\n", err)
			return exitRuntimeError
		}
		log.Printf("easyremind: re-armed %d persisted reminders", rearmed)
	}

	apiHandler := api.NewHandler(disp, sched)
	if store != nil {
		apiHandler = apiHandler.WithStore(store)
	}
	if db != nil {
		apiHandler = apiHandler.WithHealthChecker(db)
	}

	mux := http.NewServeMux()
	if cfg.MetricsEnabled {
		mux.Handle(cfg.MetricsPath, promhttp.Handler())
	}
	mux.Handle("/", apiHandler)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("easyremind: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("easyremind: http server error: %v", err)
		}
	}()

	// Use separate contexts for recorder, digest, and reconciler to enable ordered shutdown.
	recorderCtx, cancelRecorder := context.WithCancel(context.Background())

	var recorderWg sync.WaitGroup
	var digestWg sync.WaitGroup
	var reconcilerWg sync.WaitGroup
	var cancelDigest context.CancelFunc
	var cancelReconciler context.CancelFunc

	recorderWg.Add(1)
	go func() {
		defer recorderWg.Done()
		rec.Run(recorderCtx, bus.Channel())
	}()

	// Start digest if enabled
	if cfg.DigestEnabled {
		dig, err := digest.New(digest.Config{
			Schedule:  cfg.DigestSchedule,
			Timezone:  cfg.DigestTimezone,
			ChannelID: cfg.DigestChannelID,
			Window:    cfg.DigestWindow,
		}, store, notifier)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create digest: %v\n", err)
			cancelRecorder()
			return exitInvalidConfig
		}
		var digestCtx context.Context
		digestCtx, cancelDigest = context.WithCancel(context.Background())
		digestWg.Add(1)
		go func() {
			defer digestWg.Done()
			dig.Run(digestCtx)
		}()
		log.Printf("easyremind: digest enabled (schedule=%q, tz=%s, channel=%s, window=%s)",
			cfg.DigestSchedule, cfg.DigestTimezone, cfg.DigestChannelID, cfg.DigestWindow)
	} else {
		log.Println("easyremind: DIGEST_ENABLED not set; digest disabled")
	}

	// Start reconciler if enabled
	if cfg.ReconcileEnabled {
		recon := reconciler.New(
			reconciler.Config{
				Interval:  cfg.ReconcileInterval,
				Threshold: cfg.ReconcileThreshold,
				BatchSize: cfg.ReconcileBatchSize,
			},
			store,
			sched,
		)
		var reconcilerCtx context.Context
		reconcilerCtx, cancelReconciler = context.WithCancel(context.Background())
		reconcilerWg.Add(1)
		go func() {
			defer reconcilerWg.Done()
			recon.Run(reconcilerCtx)
		}()
		log.Printf("easyremind: reconciler enabled (interval=%s, threshold=%s, batch=%d)",
			cfg.ReconcileInterval, cfg.ReconcileThreshold, cfg.ReconcileBatchSize)
	} else {
		log.Println("easyremind: RECONCILE_ENABLED not set; reconciler disabled")
	}

	log.Printf("easyremind: started (http=%s, tz=%s, horizon=%s)", cfg.HTTPAddr, cfg.DefaultTimezone, cfg.MaxHorizon)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("easyremind: received signal %v, shutting down", received)

	// Phase 1: Stop digest and reconciler (no new posts or re-arms)
	if cancelDigest != nil {
		log.Println("easyremind: stopping digest...")
		cancelDigest()
		digestWg.Wait()
		log.Println("easyremind: digest stopped")
	}
	if cancelReconciler != nil {
		log.Println("easyremind: stopping reconciler...")
		cancelReconciler()
		reconcilerWg.Wait()
		log.Println("easyremind: reconciler stopped")
	}

	// Phase 2: Stop scheduler (cancels pending waits, waits for in-flight deliveries)
	log.Println("easyremind: stopping scheduler...")
	sched.Shutdown()
	log.Println("easyremind: scheduler stopped")

	// Phase 3: Stop recorder (will drain buffered outcome events before returning)
	log.Println("easyremind: stopping recorder (draining events)...")
	cancelRecorder()
	recorderWg.Wait()
	log.Println("easyremind: recorder stopped")

	// Phase 4: Stop HTTP server with graceful shutdown
	log.Println("easyremind: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("easyremind: http server shutdown error: %v", err)
	}
	log.Println("easyremind: http server stopped")

	log.Println("easyremind: stopped")
	return exitSuccess
}

// rearmPersisted walks the scheduled rows in batches and hands each back to
// the scheduler. Rows that can no longer be armed (raced into a terminal
// state) are skipped with a log line rather than failing the boot.
func rearmPersisted(ctx context.Context, store *postgres.Store, sched *scheduler.Scheduler) (int, error) {
	const batch = 500
	total := 0
	for offset := 0; ; offset += batch {
		jobs, err := store.GetPendingReminders(ctx, batch, offset)
		if err != nil {
			return total, err
		}
		for _, job := range jobs {
			if err := sched.Rearm(job); err != nil {
				log.Printf("easyremind: skipping reminder %s: %v", job.ID, err)
				continue
			}
			total++
		}
		if len(jobs) < batch {
			return total, nil
		}
	}
}

// probeRemindersTable checks that the reminders table carries the fired_at
// column added in the latest schema revision. Returns sql.ErrNoRows when the
// column (or the table) is absent.
func probeRemindersTable(db *sql.DB) error {
	var col string
	return db.QueryRow(
		`SELECT column_name FROM information_schema.columns
		 WHERE table_name = 'reminders' AND column_name = 'fired_at'`,
	).Scan(&col)
}

func logConfigWarnings(cfg config.Config) {
	if cfg.DatabaseURL == "" {
		log.Println("easyremind: WARNING [P0]: DATABASE_URL not set; reminders are held in memory and lost on restart")
	}
	if cfg.DatabaseURL != "" && !cfg.ReconcileEnabled {
		log.Println("easyremind: WARNING [P1]: RECONCILE_ENABLED=false; persisted reminders dropped at runtime are not swept back in")
	}
	if !cfg.MetricsEnabled {
		log.Println("easyremind: WARNING [P1]: METRICS_ENABLED=false; no scheduler visibility in production")
	}
	if cfg.WebhookSecret == "" {
		log.Println("easyremind: WARNING [P1]: WEBHOOK_SECRET not set; outgoing webhook posts are unsigned")
	}
	if !cfg.NaturalDates {
		log.Println("easyremind: INFO: NATURAL_DATES=false; only increment and absolute time formats are accepted")
	}
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("easyremind version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
