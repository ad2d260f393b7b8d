package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/photorate/internal/model"
	"github.com/hitoshi/photorate/internal/rating"
)

// RatingServiceInterface は評価ハンドラーが必要とするサービスインターフェース。
type RatingServiceInterface interface {
	Candidates(ctx context.Context, userID model.ID, filter model.CandidateFilter) ([]candidateResponse, error)
	// Submit は評価を登録し、評価者の残高を返す。
	Submit(ctx context.Context, userID, photoID model.ID, score int) (int, error)
	Statistics(ctx context.Context, userID, photoID model.ID) (*statisticsResponse, error)
}

// RatingHandler は評価のHTTPハンドラー。
type RatingHandler struct {
	service RatingServiceInterface
}

// NewRatingHandler はRatingHandlerを生成する。
func NewRatingHandler(service RatingServiceInterface) *RatingHandler {
	return &RatingHandler{service: service}
}

// --- リクエスト・レスポンス型 ---

type submitRatingRequest struct {
	PhotoID string `json:"photoId"`
	Score   int    `json:"score"`
}

// candidateResponse は評価候補1件のレスポンス。
type candidateResponse struct {
	ID       string `json:"id"`
	FilePath string `json:"filePath"`
}

type submitRatingResponse struct {
	Message string `json:"message"`
	Points  int    `json:"points"`
}

type groupStatsResponse struct {
	Count        int     `json:"count"`
	AverageScore float64 `json:"averageScore"`
}

type statisticsResponse struct {
	TotalRatings int                           `json:"totalRatings"`
	AverageScore float64                       `json:"averageScore"`
	Scores       []int                         `json:"scores"`
	ByGender     map[string]groupStatsResponse `json:"byGender"`
	ByAgeGroup   map[string]groupStatsResponse `json:"byAgeGroup"`
}

// Candidates は評価候補の写真を返す。
// GET /api/photo/rate?gender=&age=&ageMin=&ageMax=
func (h *RatingHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter, err := rating.ParseCandidateFilter(q.Get("gender"), q.Get("age"), q.Get("ageMin"), q.Get("ageMax"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	candidates, err := h.service.Candidates(r.Context(), userID, filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, candidates)
}

// Submit は写真を評価する。
// POST /api/photo/rate
func (h *RatingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req submitRatingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	photoID, err := model.ParseID(req.PhotoID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	points, err := h.service.Submit(r.Context(), userID, photoID, req.Score)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submitRatingResponse{
		Message: "評価を登録しました。",
		Points:  points,
	})
}

// Statistics は自分の写真の評価統計を返す。
// GET /api/photo/statistics/{photoId}
func (h *RatingHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	photoID, err := model.ParseID(chi.URLParam(r, "photoId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	stats, err := h.service.Statistics(r.Context(), userID, photoID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
