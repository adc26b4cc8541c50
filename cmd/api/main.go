package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nemonet1337/nexinventory/internal/auth"
	"github.com/nemonet1337/nexinventory/internal/config"
	"github.com/nemonet1337/nexinventory/pkg/inventory"
	"github.com/nemonet1337/nexinventory/pkg/inventory/advisory"
	"github.com/nemonet1337/nexinventory/pkg/inventory/events"
	"github.com/nemonet1337/nexinventory/pkg/inventory/storage"
)

func main() {
	// 設定読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("設定読み込みに失敗しました:", err)
	}

	// ログ設定
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatal("ログ初期化に失敗しました:", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// ストレージ接続
	store, err := storage.Open(ctx, cfg.StorageOptions(), logger)
	if err != nil {
		logger.Fatal("ストレージ接続に失敗しました", zap.Error(err))
	}
	defer store.Close()

	// メトリクス
	var (
		httpMetrics   *HTTPMetrics
		ledgerMetrics *inventory.Metrics
	)
	if cfg.API.EnableMetrics {
		httpMetrics = NewHTTPMetrics()
		ledgerMetrics = inventory.NewMetrics(httpMetrics.Registerer())
	}

	// 台帳初期化
	seed := inventory.DefaultSeed()
	if !cfg.Inventory.SeedDemoData {
		seed = inventory.SeedData{Users: seed.Users}
	}
	ledger := inventory.NewLedger(store, logger,
		inventory.WithSeed(seed),
		inventory.WithLedgerMetrics(ledgerMetrics),
	)
	if err := ledger.Init(ctx); err != nil {
		logger.Fatal("台帳の初期化に失敗しました", zap.Error(err))
	}

	// イベント発行
	var publisher inventory.EventPublisher
	if cfg.Events.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		defer client.Close()
		publisher = events.NewRedisPublisher(client, cfg.Events.Channel)
		logger.Info("イベント発行を有効にしました", zap.String("channel", cfg.Events.Channel))
	}

	// 在庫マネージャー初期化
	opts := []inventory.Option{inventory.WithMetrics(ledgerMetrics)}
	if cfg.Advisory.GeminiAPIKey != "" {
		var advisorOpts []advisory.Option
		if cfg.Advisory.BaseURL != "" {
			advisorOpts = append(advisorOpts, advisory.WithBaseURL(cfg.Advisory.BaseURL))
		}
		opts = append(opts, inventory.WithAdvisor(advisory.NewGeminiAdvisor(cfg.Advisory.GeminiAPIKey, cfg.Advisory.Model, advisorOpts...)))
	} else {
		logger.Info("Gemini APIキーが未設定のため、AI分析は代替メッセージを返します")
	}
	manager := inventory.NewManager(ledger, publisher, logger, cfg.ManagerConfig(), opts...)

	tokens, err := auth.NewIssuer(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Fatal("トークン発行者の初期化に失敗しました", zap.Error(err))
	}

	// HTTPハンドラー設定
	handlers := NewHandlers(manager, tokens, logger)
	var handler http.Handler = setupRouter(handlers, httpMetrics)
	if cfg.API.EnableCORS {
		handler = corsMiddleware(handler)
	}

	// HTTPサーバー設定
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.API.Port),
		Handler:      handler,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
	}

	// グレースフルシャットダウン設定
	go func() {
		logger.Info("在庫管理APIサーバーを開始します",
			zap.Int("port", cfg.API.Port),
			zap.String("storage", cfg.Storage.Driver),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("サーバー開始に失敗しました", zap.Error(err))
		}
	}()

	// シャットダウンシグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("サーバーシャットダウンに失敗しました", zap.Error(err))
	}

	logger.Info("サーバーが正常に停止しました")
}

// setupRouter sets up HTTP routes
// HTTPルートを設定
func setupRouter(handlers *Handlers, metrics *HTTPMetrics) *mux.Router {
	router := mux.NewRouter()
	router.Use(metrics.Middleware)
	router.Use(loggingMiddleware(handlers.logger))

	// ヘルスチェック
	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	// API v1ルート
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/auth/login", handlers.Login).Methods("POST")

	// 認証が必要なルート
	secured := api.NewRoute().Subrouter()
	secured.Use(handlers.authMiddleware)

	// 商品管理
	secured.HandleFunc("/products", handlers.ListProducts).Methods("GET")
	secured.HandleFunc("/products", handlers.CreateProduct).Methods("POST")
	secured.HandleFunc("/products/bulk-delete", handlers.BulkDeleteProducts).Methods("POST")
	secured.HandleFunc("/products/{id}", handlers.GetProduct).Methods("GET")
	secured.HandleFunc("/products/{id}", handlers.UpdateProduct).Methods("PUT")
	secured.HandleFunc("/products/{id}", handlers.DeleteProduct).Methods("DELETE")
	secured.HandleFunc("/products/{id}/adjust", handlers.AdjustStock).Methods("POST")

	// オペレーション
	secured.HandleFunc("/operations", handlers.ListOperations).Methods("GET")
	secured.HandleFunc("/operations", handlers.CreateOperation).Methods("POST")
	secured.HandleFunc("/operations/scan", handlers.ScanOperation).Methods("POST")
	secured.HandleFunc("/operations/{id}", handlers.GetOperation).Methods("GET")
	secured.HandleFunc("/operations/{id}", handlers.UpdateOperation).Methods("PUT")
	secured.HandleFunc("/operations/{id}/confirm", handlers.ConfirmOperation).Methods("POST")
	secured.HandleFunc("/operations/{id}/process", handlers.ProcessOperation).Methods("POST")

	// 履歴
	secured.HandleFunc("/movements", handlers.ListMovements).Methods("GET")
	secured.HandleFunc("/audit-logs", handlers.ListAuditLogs).Methods("GET")

	// 集計・分析
	secured.HandleFunc("/dashboard", handlers.Dashboard).Methods("GET")
	secured.HandleFunc("/insights", handlers.Insights).Methods("GET")
	secured.HandleFunc("/analytics", handlers.Analytics).Methods("GET")
	secured.HandleFunc("/reports/stock.csv", handlers.StockReport).Methods("GET")

	// ユーザー管理
	secured.HandleFunc("/users", handlers.ListUsers).Methods("GET")
	users := secured.PathPrefix("/users").Subrouter()
	users.Use(handlers.requireRole(inventory.RoleAdmin))
	users.HandleFunc("", handlers.CreateUser).Methods("POST")
	users.HandleFunc("/{id}", handlers.DeleteUser).Methods("DELETE")

	// 管理者専用
	admin := secured.PathPrefix("/admin").Subrouter()
	admin.Use(handlers.requireRole(inventory.RoleAdmin))
	admin.HandleFunc("/reset", handlers.Reset).Methods("POST")

	return router
}
