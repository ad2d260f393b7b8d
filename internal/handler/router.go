package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/photorate/internal/metrics"
	"github.com/hitoshi/photorate/internal/middleware"
	"github.com/hitoshi/photorate/internal/storage"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	RequestTimeout    time.Duration

	// 認証
	AuthService AuthServiceInterface

	// 写真・評価・ポイント
	PhotoService   PhotoServiceInterface
	RatingService  RatingServiceInterface
	LedgerService  LedgerServiceInterface
	MaxUploadBytes int64

	// 運用
	DB             Pinger
	MetricsHandler http.Handler
	UploadDir      string
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Metrics → Logging → SecurityHeaders → CORS → Timeout
//
// /api配下の認証が必要なルートには Auth → RateLimit(General) を追加し、
// アップロードにはさらにRateLimit(Upload)を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mc := deps.Metrics
	if mc == nil {
		mc = metrics.NopCollector{}
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewMetricsMiddleware(mc))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewTimeoutMiddleware(deps.RequestTimeout))

	authHandler := NewAuthHandler(deps.AuthService)
	photoHandler := NewPhotoHandler(deps.PhotoService, deps.LedgerService, deps.MaxUploadBytes)
	ratingHandler := NewRatingHandler(deps.RatingService)

	// --- 運用エンドポイント ---
	if deps.DB != nil {
		r.Get("/health", NewHealthHandler(deps.DB))
	}
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	if deps.UploadDir != "" {
		fs := http.StripPrefix(storage.PublicPrefix, http.FileServer(http.Dir(deps.UploadDir)))
		r.Handle(storage.PublicPrefix+"*", noDirectoryListing(fs))
	}

	r.Route("/api", func(r chi.Router) {
		// --- 認証不要のルート ---
		// クライアントIPごとにレート制限する
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/forgot-password", authHandler.ForgotPassword)
			r.Post("/reset-password", authHandler.ResetPassword)
			r.Get("/auth/check", authHandler.Check)
		})

		// --- 認証が必要なルート ---
		// ミドルウェアスタック: Auth → RateLimit(General)
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Post("/logout", authHandler.Logout)

			r.Route("/photo", func(r chi.Router) {
				// POST /api/photo/upload - アップロード専用レート制限を追加
				r.With(deps.RateLimiter.UploadMiddleware()).Post("/upload", photoHandler.Upload)
				r.Get("/my-photos", photoHandler.MyPhotos)
				r.Get("/points", photoHandler.Points)

				r.Post("/evaluate/add", photoHandler.AddToPool)
				r.Post("/evaluate/remove", photoHandler.RemoveFromPool)

				r.Get("/rate", ratingHandler.Candidates)
				r.Post("/rate", ratingHandler.Submit)
				r.Get("/statistics/{photoId}", ratingHandler.Statistics)
			})
		})
	})

	return r
}

// noDirectoryListing はディレクトリへのリクエストを404にする。
func noDirectoryListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
