package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/photorate/internal/model"
)

// multipartOverhead はmultipartの境界やヘッダー分としてファイル上限に加える余裕。
const multipartOverhead = 1 << 20

// PhotoServiceInterface は写真ハンドラーが必要とするサービスインターフェース。
type PhotoServiceInterface interface {
	Upload(ctx context.Context, userID model.ID, body io.Reader, contentType, originalName string) (*uploadResponse, error)
	MyPhotos(ctx context.Context, userID model.ID) (*myPhotosResponse, error)
	// AddToPool は写真を評価プールに追加し、追加後の残高を返す。
	AddToPool(ctx context.Context, userID, photoID model.ID) (*poolAddResponse, error)
	// RemoveFromPool は写真を評価プールから外す。
	RemoveFromPool(ctx context.Context, userID, photoID model.ID) error
}

// LedgerServiceInterface はポイント残高・履歴の取得に必要なサービスインターフェース。
type LedgerServiceInterface interface {
	// Points は残高と新しい順の履歴を最大limit件返す。limitが0以下の場合は既定の件数とする。
	Points(ctx context.Context, userID model.ID, limit int) (*pointsResponse, error)
}

// PhotoHandler は写真のHTTPハンドラー。
type PhotoHandler struct {
	service        PhotoServiceInterface
	ledger         LedgerServiceInterface
	maxUploadBytes int64
}

// NewPhotoHandler はPhotoHandlerを生成する。
func NewPhotoHandler(service PhotoServiceInterface, ledger LedgerServiceInterface, maxUploadBytes int64) *PhotoHandler {
	return &PhotoHandler{service: service, ledger: ledger, maxUploadBytes: maxUploadBytes}
}

// --- リクエスト・レスポンス型 ---

// photoIDRequest は写真IDのみを含むリクエストボディ。
type photoIDRequest struct {
	PhotoID string `json:"photoId"`
}

// photoResponse は写真情報のレスポンス。
type photoResponse struct {
	ID            string    `json:"id"`
	FilePath      string    `json:"filePath"`
	ThumbnailPath string    `json:"thumbnailPath,omitempty"`
	OriginalName  string    `json:"originalName"`
	MimeType      string    `json:"mimeType"`
	Size          int64     `json:"size"`
	IsEvaluated   bool      `json:"isEvaluated"`
	TotalRatings  int       `json:"totalRatings"`
	CreatedAt     time.Time `json:"createdAt"`
}

type uploadResponse struct {
	Message string        `json:"message"`
	PhotoID string        `json:"photoId"`
	Photo   photoResponse `json:"photo"`
	Points  int           `json:"points"`
}

type myPhotosResponse struct {
	Photos []photoResponse `json:"photos"`
	Points int             `json:"points"`
}

type poolAddResponse struct {
	Message string `json:"message"`
	Points  int    `json:"points"`
}

// transactionResponse はポイント履歴1件のレスポンス。
type transactionResponse struct {
	Delta     int       `json:"delta"`
	Kind      string    `json:"kind"`
	PhotoID   string    `json:"photoId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type pointsResponse struct {
	Points  int                   `json:"points"`
	History []transactionResponse `json:"history"`
}

// Upload はmultipartの"photo"フィールドで送られた写真を保存する。
// POST /api/photo/upload
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		handleServiceError(w, model.NewFileMissingError())
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.handleUploadError(w, err, model.NewInvalidRequestError())
			return
		}
		if part.FormName() != "photo" || part.FileName() == "" {
			part.Close()
			continue
		}

		resp, err := h.service.Upload(r.Context(), userID, part, part.Header.Get("Content-Type"), part.FileName())
		part.Close()
		if err != nil {
			h.handleUploadError(w, err, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
		return
	}

	handleServiceError(w, model.NewFileMissingError())
}

// handleUploadError はリクエスト全体の上限超過をFILE_TOO_LARGEとして扱い、
// それ以外はfallbackをエラーレスポンスにする。
func (h *PhotoHandler) handleUploadError(w http.ResponseWriter, err, fallback error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		handleServiceError(w, model.NewFileTooLargeError(h.maxUploadBytes))
		return
	}
	handleServiceError(w, fallback)
}

// MyPhotos は自分の写真一覧と残高を返す。
// GET /api/photo/my-photos
func (h *PhotoHandler) MyPhotos(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.MyPhotos(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddToPool は自分の写真を評価プールに追加する。
// POST /api/photo/evaluate/add
func (h *PhotoHandler) AddToPool(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req photoIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	photoID, err := model.ParseID(req.PhotoID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp, err := h.service.AddToPool(r.Context(), userID, photoID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// RemoveFromPool は自分の写真を評価プールから外す。
// POST /api/photo/evaluate/remove
func (h *PhotoHandler) RemoveFromPool(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req photoIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	photoID, err := model.ParseID(req.PhotoID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.service.RemoveFromPool(r.Context(), userID, photoID); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "評価プールから削除しました。"})
}

// Points は残高と直近のポイント履歴を返す。
// GET /api/photo/points?limit=
func (h *PhotoHandler) Points(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			handleServiceError(w, model.NewInvalidRequestError())
			return
		}
		limit = n
	}

	resp, err := h.ledger.Points(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
