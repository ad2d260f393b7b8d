package handler

import (
	"context"
	"io"
	"strings"

	"github.com/hitoshi/photorate/internal/auth"
	"github.com/hitoshi/photorate/internal/ledger"
	"github.com/hitoshi/photorate/internal/model"
	"github.com/hitoshi/photorate/internal/photo"
	"github.com/hitoshi/photorate/internal/rating"
)

// AuthServiceAdapter は auth.Service を AuthServiceInterface に適合させるアダプタ。
type AuthServiceAdapter struct {
	svc *auth.Service
}

// NewAuthServiceAdapter はAuthServiceAdapterを生成する。
func NewAuthServiceAdapter(svc *auth.Service) *AuthServiceAdapter {
	return &AuthServiceAdapter{svc: svc}
}

// Register はユーザーを登録しhandlerレスポンス型で返す。
func (a *AuthServiceAdapter) Register(ctx context.Context, req registerRequest) (*authResponse, error) {
	result, err := a.svc.Register(ctx, auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Gender:   model.Gender(strings.ToLower(strings.TrimSpace(req.Gender))),
		Age:      req.Age,
	})
	if err != nil {
		return nil, err
	}
	return toAuthResponse(result), nil
}

// Login はログインしhandlerレスポンス型で返す。
func (a *AuthServiceAdapter) Login(ctx context.Context, email, password string) (*authResponse, error) {
	result, err := a.svc.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return toAuthResponse(result), nil
}

// ForgotPassword はリセットトークンを発行する。
func (a *AuthServiceAdapter) ForgotPassword(ctx context.Context, email string) (string, error) {
	return a.svc.ForgotPassword(ctx, email)
}

// ResetPassword はパスワードを再設定する。
func (a *AuthServiceAdapter) ResetPassword(ctx context.Context, token, newPassword string) error {
	return a.svc.ResetPassword(ctx, token, newPassword)
}

// Check はトークンが有効かどうかを返す。
func (a *AuthServiceAdapter) Check(ctx context.Context, raw string) bool {
	return a.svc.Check(ctx, raw)
}

// Logout はトークンを失効させる。
func (a *AuthServiceAdapter) Logout(ctx context.Context, claims *model.TokenClaims) error {
	return a.svc.Logout(ctx, claims)
}

func toAuthResponse(result *auth.AuthResult) *authResponse {
	return &authResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      toUserResponse(result.User),
	}
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:     u.ID.String(),
		Email:  u.Email,
		Name:   u.Name,
		Gender: string(u.Gender),
		Age:    u.Age,
		Points: u.Points,
	}
}

// PhotoServiceAdapter は photo.Service を PhotoServiceInterface に適合させるアダプタ。
type PhotoServiceAdapter struct {
	svc *photo.Service
}

// NewPhotoServiceAdapter はPhotoServiceAdapterを生成する。
func NewPhotoServiceAdapter(svc *photo.Service) *PhotoServiceAdapter {
	return &PhotoServiceAdapter{svc: svc}
}

// Upload は写真を保存しhandlerレスポンス型で返す。
func (a *PhotoServiceAdapter) Upload(ctx context.Context, userID model.ID, body io.Reader, contentType, originalName string) (*uploadResponse, error) {
	result, err := a.svc.Upload(ctx, userID, photo.UploadInput{
		Body:         body,
		ContentType:  contentType,
		OriginalName: originalName,
	})
	if err != nil {
		return nil, err
	}
	return &uploadResponse{
		Message: "写真をアップロードしました。",
		PhotoID: result.Photo.ID.String(),
		Photo:   toPhotoResponse(model.PhotoWithState{Photo: *result.Photo}),
		Points:  result.Points,
	}, nil
}

// MyPhotos は自分の写真一覧をhandlerレスポンス型で返す。
func (a *PhotoServiceAdapter) MyPhotos(ctx context.Context, userID model.ID) (*myPhotosResponse, error) {
	result, err := a.svc.MyPhotos(ctx, userID)
	if err != nil {
		return nil, err
	}

	photos := make([]photoResponse, len(result.Photos))
	for i, p := range result.Photos {
		photos[i] = toPhotoResponse(p)
	}
	return &myPhotosResponse{Photos: photos, Points: result.Points}, nil
}

// AddToPool は評価プールに追加しhandlerレスポンス型で返す。
func (a *PhotoServiceAdapter) AddToPool(ctx context.Context, userID, photoID model.ID) (*poolAddResponse, error) {
	result, err := a.svc.AddToPool(ctx, userID, photoID)
	if err != nil {
		return nil, err
	}

	message := "評価プールに追加しました。"
	if !result.Added {
		message = "既に評価プールに追加されています。"
	}
	return &poolAddResponse{Message: message, Points: result.Points}, nil
}

// RemoveFromPool は評価プールから外す。追加されていなかった場合も成功とする。
func (a *PhotoServiceAdapter) RemoveFromPool(ctx context.Context, userID, photoID model.ID) error {
	_, err := a.svc.RemoveFromPool(ctx, userID, photoID)
	return err
}

func toPhotoResponse(p model.PhotoWithState) photoResponse {
	return photoResponse{
		ID:            p.ID.String(),
		FilePath:      p.FilePath,
		ThumbnailPath: p.ThumbnailPath,
		OriginalName:  p.OriginalName,
		MimeType:      p.MimeType,
		Size:          p.Size,
		IsEvaluated:   p.IsEvaluated,
		TotalRatings:  p.TotalRatings,
		CreatedAt:     p.CreatedAt,
	}
}

// RatingServiceAdapter は rating.Service を RatingServiceInterface に適合させるアダプタ。
type RatingServiceAdapter struct {
	svc *rating.Service
}

// NewRatingServiceAdapter はRatingServiceAdapterを生成する。
func NewRatingServiceAdapter(svc *rating.Service) *RatingServiceAdapter {
	return &RatingServiceAdapter{svc: svc}
}

// Candidates は評価候補をhandlerレスポンス型で返す。
func (a *RatingServiceAdapter) Candidates(ctx context.Context, userID model.ID, filter model.CandidateFilter) ([]candidateResponse, error) {
	candidates, err := a.svc.Candidates(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	results := make([]candidateResponse, len(candidates))
	for i, c := range candidates {
		results[i] = candidateResponse{ID: c.ID.String(), FilePath: c.FilePath}
	}
	return results, nil
}

// Submit は評価を登録し評価者の残高を返す。
func (a *RatingServiceAdapter) Submit(ctx context.Context, userID, photoID model.ID, score int) (int, error) {
	result, err := a.svc.Submit(ctx, userID, photoID, score)
	if err != nil {
		return 0, err
	}
	return result.Points, nil
}

// Statistics は評価統計をhandlerレスポンス型で返す。
func (a *RatingServiceAdapter) Statistics(ctx context.Context, userID, photoID model.ID) (*statisticsResponse, error) {
	stats, err := a.svc.Statistics(ctx, userID, photoID)
	if err != nil {
		return nil, err
	}
	return &statisticsResponse{
		TotalRatings: stats.TotalRatings,
		AverageScore: stats.AverageScore,
		Scores:       stats.Scores,
		ByGender:     toGroupStatsResponse(stats.ByGender),
		ByAgeGroup:   toGroupStatsResponse(stats.ByAgeGroup),
	}, nil
}

func toGroupStatsResponse(groups map[string]rating.GroupStats) map[string]groupStatsResponse {
	out := make(map[string]groupStatsResponse, len(groups))
	for k, g := range groups {
		out[k] = groupStatsResponse{Count: g.Count, AverageScore: g.AverageScore}
	}
	return out
}

// LedgerServiceAdapter は ledger.Service を LedgerServiceInterface に適合させるアダプタ。
type LedgerServiceAdapter struct {
	svc *ledger.Service
}

// NewLedgerServiceAdapter はLedgerServiceAdapterを生成する。
func NewLedgerServiceAdapter(svc *ledger.Service) *LedgerServiceAdapter {
	return &LedgerServiceAdapter{svc: svc}
}

// Points は残高と履歴をhandlerレスポンス型で返す。
func (a *LedgerServiceAdapter) Points(ctx context.Context, userID model.ID, limit int) (*pointsResponse, error) {
	balance, err := a.svc.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	history, err := a.svc.History(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	txs := make([]transactionResponse, len(history))
	for i, t := range history {
		txs[i] = transactionResponse{
			Delta:     t.Delta,
			Kind:      string(t.Kind),
			CreatedAt: t.CreatedAt,
		}
		if t.PhotoID != nil {
			txs[i].PhotoID = t.PhotoID.String()
		}
	}
	return &pointsResponse{Points: balance, History: txs}, nil
}

var (
	_ AuthServiceInterface   = (*AuthServiceAdapter)(nil)
	_ PhotoServiceInterface  = (*PhotoServiceAdapter)(nil)
	_ RatingServiceInterface = (*RatingServiceAdapter)(nil)
	_ LedgerServiceInterface = (*LedgerServiceAdapter)(nil)
)
