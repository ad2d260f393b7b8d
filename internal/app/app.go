package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/photorate/internal/auth"
	"github.com/hitoshi/photorate/internal/config"
	"github.com/hitoshi/photorate/internal/database"
	"github.com/hitoshi/photorate/internal/handler"
	"github.com/hitoshi/photorate/internal/ledger"
	"github.com/hitoshi/photorate/internal/logger"
	"github.com/hitoshi/photorate/internal/metrics"
	"github.com/hitoshi/photorate/internal/middleware"
	"github.com/hitoshi/photorate/internal/photo"
	"github.com/hitoshi/photorate/internal/rating"
	"github.com/hitoshi/photorate/internal/repository"
	"github.com/hitoshi/photorate/internal/security"
	"github.com/hitoshi/photorate/internal/storage"
	"github.com/hitoshi/photorate/internal/worker/cleanup"
)

// dbConnectAttempts は起動時のDB接続試行回数。
const dbConnectAttempts = 8

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDB はDB接続を開き、疎通できるまで待つ。
func openDB(databaseURL string) (*sql.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := database.WaitReady(ctx, db, dbConnectAttempts); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// newRegistry はアプリケーションのメトリクスを登録したレジストリを生成する。
func newRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// buildRouter は設定とDB接続から全依存関係をワイヤリングし、ルーターを構築する。
// 返されるRateLimiterはサーバー停止時にStopすること。
func buildRouter(cfg *config.Config, db *sql.DB) (http.Handler, *middleware.RateLimiter, error) {
	policy := ledger.PolicyFromConfig(cfg)
	if err := policy.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid points policy: %w", err)
	}

	reg, collector := newRegistry()

	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	photoRepo := repository.NewPostgresPhotoRepo(db)
	poolRepo := repository.NewPostgresPoolRepo(db)
	ratingRepo := repository.NewPostgresRatingRepo(db)
	ledgerRepo := repository.NewPostgresLedgerRepo(db)
	revokedRepo := repository.NewPostgresRevokedTokenRepo(db)

	// 2. ファイル保存とセキュリティサービスの初期化
	files, err := storage.New(cfg.UploadDir, cfg.UploadMaxBytes)
	if err != nil {
		return nil, nil, err
	}
	sanitizer := security.NewTextSanitizer()

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create token manager: %w", err)
	}

	// 3. ドメインサービスの初期化
	authService := auth.NewService(userRepo, revokedRepo, tokens, policy, sanitizer,
		auth.ServiceConfig{ResetTokenTTL: cfg.ResetTokenTTL})
	photoService := photo.NewService(userRepo, photoRepo, poolRepo, files, sanitizer, policy, collector)
	ratingService := rating.NewService(photoRepo, ratingRepo, userRepo, policy, collector)
	ledgerService := ledger.NewService(userRepo, ledgerRepo)

	// 4. ルーターの構築
	// configのレート制限はreq/min単位
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitUpload),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		Metrics:           collector,
		TokenVerifier:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		RequestTimeout:    cfg.RequestTimeout,

		AuthService: handler.NewAuthServiceAdapter(authService),

		PhotoService:   handler.NewPhotoServiceAdapter(photoService),
		RatingService:  handler.NewRatingServiceAdapter(ratingService),
		LedgerService:  handler.NewLedgerServiceAdapter(ledgerService),
		MaxUploadBytes: files.MaxBytes(),

		DB:             db,
		MetricsHandler: metrics.Handler(reg),
		UploadDir:      files.Dir(),
	})

	return router, rateLimiter, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	router, rateLimiter, err := buildRouter(cfg, db)
	if err != nil {
		return err
	}
	defer rateLimiter.Stop()

	// アップロードは最大5MBのため、書き込みタイムアウトはリクエストタイムアウトより長くとる
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、クリーンアップジョブをcronスケジュールで実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	files, err := storage.New(cfg.UploadDir, cfg.UploadMaxBytes)
	if err != nil {
		return err
	}

	// ワーカーのメトリクスは収集のみで公開しない
	_, collector := newRegistry()

	job := cleanup.NewCleanupJob(
		repository.NewPostgresRevokedTokenRepo(db),
		repository.NewPostgresUserRepo(db),
		repository.NewPostgresPhotoRepo(db),
		files,
		collector,
		slog.Default(),
	)
	job.GracePeriod = cfg.OrphanGracePeriod

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	scheduler, err := cleanup.NewScheduler(ctx, job, cfg.CleanupSchedule, slog.Default())
	if err != nil {
		return err
	}

	slog.Info("worker starting",
		slog.String("schedule", cfg.CleanupSchedule),
		slog.Duration("orphan_grace_period", cfg.OrphanGracePeriod),
	)

	// 起動直後に1回実行
	if err := job.Run(ctx); err != nil {
		slog.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	scheduler.Start()
	<-ctx.Done()
	slog.Info("shutting down worker...")
	scheduler.Stop()

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
