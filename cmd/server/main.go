package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	apphandler "connections-portal/backend/internal/application/handler"
	apprepo "connections-portal/backend/internal/application/repository"
	"connections-portal/backend/internal/assessment"
	"connections-portal/backend/internal/audit"
	audithandler "connections-portal/backend/internal/audit/handler"
	"connections-portal/backend/internal/config"
	"connections-portal/backend/internal/db"
	"connections-portal/backend/internal/devotp"
	devotphandler "connections-portal/backend/internal/devotp/handler"
	healthhandler "connections-portal/backend/internal/health/handler"
	"connections-portal/backend/internal/mail"
	"connections-portal/backend/internal/otp"
	otphandler "connections-portal/backend/internal/otp/handler"
	otpservice "connections-portal/backend/internal/otp/service"
	"connections-portal/backend/internal/ratelimit"
	"connections-portal/backend/internal/security"
	"connections-portal/backend/internal/server"
	"connections-portal/backend/internal/server/middleware"
	"connections-portal/backend/internal/telemetry"
	telemetryotel "connections-portal/backend/internal/telemetry/otel"
	"connections-portal/backend/internal/telemetry/producer"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	emitters := telemetry.Fanout{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	kafkaProducer, err := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	if kafkaProducer != nil {
		emitters = append(emitters, kafkaProducer)
		log.Printf("telemetry: publishing events to kafka topic %s", cfg.TelemetryKafkaTopic)
	}

	var conn *sql.DB
	if cfg.DatabaseURL != "" {
		conn, err = db.OpenContext(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
	} else {
		log.Println("db: DATABASE_URL not set; application routes disabled")
	}

	evaluator, err := assessment.NewOPAEvaluator(ctx, assessment.Limits{
		SinglePhaseKVA:  cfg.SinglePhaseLimitKVA,
		AutoQuoteMaxKVA: cfg.AutoQuoteMaxKVA,
	})
	if err != nil {
		log.Fatalf("assessment: %v", err)
	}

	sink := audit.NewFileSink(cfg.AuditLogPath)
	auditLogger := audit.NewLogger(sink, middleware.Origin, emitters)

	var (
		sender   mail.Sender
		devStore *devotp.MemoryStore
	)
	switch {
	case cfg.OTPReturnToClient:
		devStore = devotp.NewMemoryStore()
		sender = devotp.NewSender(devStore, cfg.OTPValidity())
		log.Println("devotp: dev OTP mode enabled; codes are served at GET /dev/otp and no email is sent")
	case cfg.MailProvider == "http":
		sender = mail.NewHTTPSender(cfg.MailAPIKey, cfg.MailAPIURL, cfg.MailFrom, cfg.OTPValidity())
	default:
		sender = mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom, cfg.OTPValidity())
	}

	tokens, err := security.NewTokenIssuer(cfg.SessionTokenLength)
	if err != nil {
		log.Fatalf("security: %v", err)
	}

	challenges := otp.NewMemoryStore()
	if interval := cfg.SweepInterval(); interval > 0 {
		go challenges.RunSweeper(ctx, interval, nil)
	}
	otpSvc := otpservice.NewService(challenges, otp.NewKeyedMutex(), sender, tokens, auditLogger, otpservice.Config{
		CodeLength:  cfg.OTPLength,
		TTL:         cfg.OTPValidity(),
		MaxAttempts: cfg.OTPMaxAttempts,
		SendTimeout: cfg.MailSendTimeout(),
	})

	deps := server.Deps{
		OTP:            otphandler.NewHandler(otpSvc),
		Audit:          audithandler.NewHandler(sink),
		Telemetry:      emitters,
		AllowedOrigins: cfg.AllowedOrigins(),
		TrustedProxies: cfg.TrustedProxyList(),
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Printf("ratelimit: redis ping failed: %v; limiter fails open until redis is reachable", err)
		}
		cancel()
		deps.SendLimiter = ratelimit.NewLimiter(rdb, ratelimit.Config{Limit: cfg.OTPSendLimit, Window: cfg.SendWindow()})
	}

	if conn != nil {
		deps.Applications = apphandler.NewHandler(apprepo.NewPostgresRepository(conn), evaluator)
		deps.Health = healthhandler.NewHandler(conn, evaluator)
	} else {
		deps.Health = healthhandler.NewHandler(nil, evaluator)
	}
	if devStore != nil {
		deps.DevOTP = devotphandler.NewHandler(devStore)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}

	// In-flight async telemetry must finish before the exporters go away.
	if err := telemetry.Drain(shutdownCtx); err != nil {
		log.Printf("telemetry: drain: %v", err)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry: shutdown: %v", err)
	}
	if err := kafkaProducer.Close(); err != nil {
		log.Printf("telemetry: kafka close: %v", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}
	log.Println("HTTP server stopped")
}
