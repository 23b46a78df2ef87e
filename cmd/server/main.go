package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mhmpets/mhm_server/config"
	"github.com/mhmpets/mhm_server/internal/api"
	"github.com/mhmpets/mhm_server/internal/api/handler"
	"github.com/mhmpets/mhm_server/internal/database"
	"github.com/mhmpets/mhm_server/internal/pkg/cron"
	"github.com/mhmpets/mhm_server/internal/pkg/dedup"
	"github.com/mhmpets/mhm_server/internal/pkg/email"
	"github.com/mhmpets/mhm_server/internal/repository"
	"github.com/mhmpets/mhm_server/internal/service"
)

func main() {
	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// Redis 只用于 webhook 去重，连不上时降级为不去重
	var deduper service.DeliveryDeduper
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Printf("Redis unavailable, webhook dedup disabled: %v", err)
	} else {
		defer rdb.Close()
		deduper = dedup.NewStore(rdb, dedup.DefaultPrefix, time.Duration(cfg.PayPal.DedupTTLHours)*time.Hour)
		log.Println("Redis connected")
	}

	// 初始化邮件
	sender, err := email.NewSender(context.Background(), &cfg.Email)
	if err != nil {
		log.Fatalf("Failed to init email sender: %v", err)
	}
	mailer := email.NewService(sender, cfg.Verification.CodeTTLMinutes)

	// 初始化 Repository
	subscriberRepo := repository.NewSubscriberRepository(db)
	codeRepo := repository.NewVerificationRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	eventRepo := repository.NewEventLogRepository(db)

	// 初始化 Service
	catalog := service.NewPlanCatalog(cfg.Subscription, cfg.PayPal)
	entitlementService := service.NewEntitlementService(subscriberRepo, catalog)
	webhookService := service.NewWebhookService(entitlementService, eventRepo, catalog, deduper)
	verificationService := service.NewVerificationService(
		codeRepo,
		accountRepo,
		subscriberRepo,
		mailer,
		time.Duration(cfg.Verification.CodeTTLMinutes)*time.Minute,
		cfg.Verification.HashCost,
	)

	// 定时清理过期验证码
	sweeper := cron.NewService(verificationService, time.Duration(cfg.Verification.SweepIntervalMinutes)*time.Minute)
	sweeper.Start()
	defer sweeper.Stop()

	// 初始化 Handler
	subscriptionHandler := handler.NewSubscriptionHandler(entitlementService)
	webhookHandler := handler.NewWebhookHandler(webhookService)
	verificationHandler := handler.NewVerificationHandler(verificationService)
	actionHandler := handler.NewActionHandler(subscriptionHandler, webhookHandler, verificationHandler, cfg.Admin.JWTSecret)

	if cfg.Admin.JWTSecret == "" {
		log.Println("WARNING: admin.jwt_secret is empty, admin endpoints are unauthenticated")
	}

	// 初始化 Router
	router := api.NewRouter(
		subscriptionHandler,
		webhookHandler,
		verificationHandler,
		actionHandler,
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("Received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server shutdown complete")
}
