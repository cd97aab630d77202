package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/haven-crisis-platform/internal/api/router"
	"github.com/wolfman30/haven-crisis-platform/internal/comms"
	"github.com/wolfman30/haven-crisis-platform/internal/compliance"
	appconfig "github.com/wolfman30/haven-crisis-platform/internal/config"
	"github.com/wolfman30/haven-crisis-platform/internal/crisis"
	"github.com/wolfman30/haven-crisis-platform/internal/escalation"
	"github.com/wolfman30/haven-crisis-platform/internal/http/handlers"
	"github.com/wolfman30/haven-crisis-platform/internal/knowledge"
	"github.com/wolfman30/haven-crisis-platform/internal/notify"
	"github.com/wolfman30/haven-crisis-platform/internal/observability/metrics"
	"github.com/wolfman30/haven-crisis-platform/internal/responders"
	"github.com/wolfman30/haven-crisis-platform/internal/risk"
	"github.com/wolfman30/haven-crisis-platform/internal/safety"
	"github.com/wolfman30/haven-crisis-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting haven crisis platform",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	registry := prometheus.NewRegistry()
	crisisMetrics := metrics.NewCrisisMetrics(registry)
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	ctx := context.Background()

	// Storage
	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	var repo responders.Repository
	if pool != nil {
		repo = responders.NewPostgresRepository(pool)
	} else {
		logger.Warn("no database configured, responder roster is in-memory")
		repo = responders.NewInMemoryRepository()
	}

	var audit *compliance.AuditService
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Error("audit database open failed", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		audit = compliance.NewAuditService(db)
	}

	// Risk assessment
	store, err := knowledge.NewStore(nil, logger)
	if err != nil {
		logger.Error("knowledge store init failed", "error", err)
		os.Exit(1)
	}
	if err := store.AddPassages(ctx, knowledge.DefaultCorpus); err != nil {
		logger.Error("knowledge corpus load failed", "error", err)
		os.Exit(1)
	}

	pipeline := risk.NewPipeline(risk.PipelineConfig{
		Weights: risk.FusionWeights{
			Lexical:    cfg.FusionLexicalWeight,
			Structural: cfg.FusionStructuralWeight,
			Contextual: cfg.FusionContextualWeight,
			Behavioral: cfg.FusionBehavioralWeight,
		},
		MinConfidence: cfg.MinAssessmentConfidence,
		KnowledgeTopK: cfg.KnowledgeTopK,
	}, store, nil, crisisMetrics, logger)
	if audit != nil {
		pipeline.SetAudit(audit)
	}

	// Safety monitoring
	var gate safety.CooldownGate
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		gate = safety.NewRedisGate(redis.NewClient(opts), logger)
	}
	events := safety.NewInMemoryEventStore(0)
	alerts := safety.NewInMemoryAlertStore()
	engine := safety.NewEngine(events, alerts, gate, cfg.AlertCooldown, crisisMetrics, logger)

	// Notifications
	emailSender := buildEmailSender(ctx, cfg, logger)
	smsSender := buildSMSSender(cfg, logger)
	notifier := notify.NewService(emailSender, smsSender, logger)
	staff := notify.Recipient{Name: "Crisis Team", Phone: cfg.StaffSMSNumber, Email: cfg.StaffEmail}

	// Secure channels
	keyring, err := comms.NewKeyring()
	if err != nil {
		logger.Error("keyring init failed", "error", err)
		os.Exit(1)
	}
	channels := comms.NewService(keyring, cfg.ChannelTTL, crisisMetrics, logger)

	// Escalation
	matcher := responders.NewMatcher(repo, crisisMetrics, logger)
	catalog := escalation.DefaultCatalog()
	exec := escalation.NewActionExecutor(notifier, matcher, repo, channels, engine, engine, assignmentAuditor(audit), staff, logger)
	records := escalation.NewInMemoryRecordStore()
	orchestrator := escalation.NewOrchestrator(records, exec, escalation.OrchestratorConfig{
		DefaultStepTimeout: cfg.DefaultStepTimeout,
		MaxParallel:        cfg.EscalationMaxParallel,
	}, crisisMetrics, logger)

	monitor := safety.NewMonitor(engine, records, safety.MonitorConfig{
		Interval:              cfg.MonitorInterval,
		HighRiskFractionLimit: cfg.HighRiskFractionLimit,
		EscalationCapacity:    cfg.EscalationCapacity,
		ResponseTimeSLA:       cfg.ResponseTimeSLA,
		SafetyScoreFloor:      cfg.SafetyScoreFloor,
	}, logger)

	var resources *compliance.ResourceService
	if audit != nil {
		resources = compliance.NewResourceService(audit, compliance.DefaultResourceConfig())
	} else {
		resources = compliance.NewResourceService(nil, compliance.DefaultResourceConfig())
	}

	crisisSvc := crisis.NewService(crisis.Config{
		Pipeline:     pipeline,
		Protocols:    escalation.NewMatcher(catalog, logger),
		Orchestrator: orchestrator,
		Safety:       engine,
		Audit:        audit,
		Resources:    resources,
		Logger:       logger,
	})

	// Background loops
	runCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	go monitor.Run(runCtx)
	go rotateKeysPeriodically(runCtx, channels, audit, cfg.KeyRotationInterval, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		Messages:           handlers.NewMessageHandler(crisisSvc, logger),
		Channels:           handlers.NewChannelHandler(channels, logger),
		Protocols:          handlers.NewProtocolHandler(catalog, logger),
		Safety:             handlers.NewSafetyHandler(engine, monitor, alerts, logger),
		Escalations:        handlers.NewEscalationHandler(records, crisisSvc, logger),
		Security:           handlers.NewSecurityHandler(channels, audit, logger),
		Responders:         handlers.NewResponderHandler(repo, logger),
		OperatorAuthSecret: cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		MessageRate:        5,
		MessageBurst:       10,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stopBackground()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Let in-flight escalations reach a terminal state before exiting.
	orchestrator.Wait()
	if pool != nil {
		pool.Close()
	}
	logger.Info("server stopped")
}

// connectPostgresPool returns nil when no database is configured.
func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if databaseURL == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("postgres pool init failed", "error", err)
		os.Exit(1)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("postgres ping failed", "error", err)
		os.Exit(1)
	}
	return pool
}

// assignmentAuditor keeps a nil *AuditService out of the executor's interface
// field, where a typed nil would pass its nil check and panic on use.
func assignmentAuditor(audit *compliance.AuditService) escalation.AssignmentAuditor {
	if audit == nil {
		return nil
	}
	return audit
}

func buildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender != nil {
			return sender
		}
		logger.Warn("sendgrid selected but not configured, falling back to stub")
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Error("aws config load failed, falling back to stub email", "error", err)
			break
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	}
	return notify.NewStubEmailSender(logger)
}

func buildSMSSender(cfg *appconfig.Config, logger *logging.Logger) notify.SMSSender {
	if cfg.StaffSMSNumber == "" {
		return notify.NewStubSMSSender(logger)
	}
	return notify.NewSimpleSMSSender(cfg.StaffSMSNumber, nil, logger)
}

// rotateKeysPeriodically rotates the channel keyring on a fixed interval so
// a leaked key has a bounded exposure window.
func rotateKeysPeriodically(ctx context.Context, channels *comms.Service, audit *compliance.AuditService, interval time.Duration, logger *logging.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			keyID, err := channels.RotateKeys(ctx)
			if err != nil {
				logger.Error("scheduled key rotation failed", "error", err)
				continue
			}
			if audit != nil {
				if err := audit.LogKeyRotated(ctx, "scheduler", keyID); err != nil {
					logger.Error("key rotation audit write failed", "error", err)
				}
			}
			logger.Info("channel keys rotated", "key_id", keyID)
		}
	}
}
