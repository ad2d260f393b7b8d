// Package rating は評価候補の選択、評価の投稿、評価統計の集計を提供する。
package rating

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/hitoshi/photorate/internal/ledger"
	"github.com/hitoshi/photorate/internal/metrics"
	"github.com/hitoshi/photorate/internal/model"
	"github.com/hitoshi/photorate/internal/repository"
)

// 統計の年齢層キー。
const (
	AgeGroupUnder20 = "under20"
	AgeGroup20to30  = "20to30"
	AgeGroup30to40  = "30to40"
	AgeGroupOver40  = "over40"
	// GroupUnknown は性別・年齢を申告していない評価者の集計キー。
	GroupUnknown = "unknown"
)

// SubmitResult は評価投稿の結果。
type SubmitResult struct {
	Rating *model.Rating
	Points int // 評価者の投稿後の残高
}

// GroupStats は評価者の属性ごとの集計値。
type GroupStats struct {
	Count        int
	AverageScore float64
}

// Statistics は写真1枚分の評価統計。
type Statistics struct {
	TotalRatings int
	AverageScore float64
	Scores       []int
	ByGender     map[string]GroupStats
	ByAgeGroup   map[string]GroupStats
}

// Service は評価に関するビジネスロジックを提供する。
type Service struct {
	photoRepo  repository.PhotoRepository
	ratingRepo repository.RatingRepository
	userRepo   repository.UserRepository
	policy     ledger.Policy
	metrics    metrics.MetricsCollector
	now        func() time.Time
}

// NewService はServiceを生成する。metricsがnilの場合は記録しない。
func NewService(
	photoRepo repository.PhotoRepository,
	ratingRepo repository.RatingRepository,
	userRepo repository.UserRepository,
	policy ledger.Policy,
	mc metrics.MetricsCollector,
) *Service {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &Service{
		photoRepo:  photoRepo,
		ratingRepo: ratingRepo,
		userRepo:   userRepo,
		policy:     policy,
		metrics:    mc,
		now:        time.Now,
	}
}

// Candidates はuserIDが評価できる写真を最大CandidatePageSize件返す。
func (s *Service) Candidates(ctx context.Context, userID model.ID, filter model.CandidateFilter) ([]model.Candidate, error) {
	if filter.Limit <= 0 || filter.Limit > CandidatePageSize {
		filter.Limit = CandidatePageSize
	}

	candidates, err := s.ratingRepo.ListCandidates(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("評価候補の取得に失敗しました: %w", err)
	}
	if candidates == nil {
		candidates = []model.Candidate{}
	}
	return candidates, nil
}

// Submit は写真に評価を投稿し、台帳ポリシーに従ってポイントを増減する。
func (s *Service) Submit(ctx context.Context, userID, photoID model.ID, score int) (*SubmitResult, error) {
	if !model.ValidScore(score) {
		return nil, model.NewInvalidScoreError(score)
	}

	photo, err := s.photoRepo.FindByID(ctx, photoID)
	if err != nil {
		return nil, fmt.Errorf("写真の取得に失敗しました: %w", err)
	}
	if photo == nil {
		return nil, model.NewPhotoNotFoundError(photoID)
	}
	if photo.UserID == userID {
		return nil, model.NewSelfRatingError()
	}

	r := &model.Rating{
		ID:        model.NewID(),
		PhotoID:   photoID,
		RaterID:   userID,
		Score:     score,
		CreatedAt: s.now(),
	}
	movements := s.policy.RatingMovements(userID, photo.UserID, photoID)

	balances, err := s.ratingRepo.CreateWithMovements(ctx, r, movements)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyRated):
			return nil, model.NewAlreadyRatedError()
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("評価の保存に失敗しました: %w", err)
	}

	s.metrics.RecordRating(score)
	for _, m := range movements {
		s.metrics.RecordPointMovement(string(m.Kind), m.Delta)
	}

	points, ok := balances[userID]
	if !ok {
		user, err := s.userRepo.FindByID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
		}
		if user == nil {
			return nil, model.NewUserNotFoundError()
		}
		points = user.Points
	}

	slog.Info("photo rated",
		slog.String("photo_id", photoID.String()),
		slog.String("rater_id", userID.String()),
		slog.Int("score", score),
		slog.Int("points", points),
	)

	return &SubmitResult{Rating: r, Points: points}, nil
}

// Statistics は所有者向けに写真の評価統計を返す。
func (s *Service) Statistics(ctx context.Context, userID, photoID model.ID) (*Statistics, error) {
	photo, err := s.photoRepo.FindByID(ctx, photoID)
	if err != nil {
		return nil, fmt.Errorf("写真の取得に失敗しました: %w", err)
	}
	if photo == nil {
		return nil, model.NewPhotoNotFoundError(photoID)
	}
	if photo.UserID != userID {
		return nil, model.NewNotPhotoOwnerError()
	}

	ratings, err := s.ratingRepo.ListByPhoto(ctx, photoID)
	if err != nil {
		return nil, fmt.Errorf("評価の取得に失敗しました: %w", err)
	}

	return Summarize(ratings), nil
}

// Summarize は投稿順の評価一覧から統計を計算する。
// 平均は小数第2位で丸め、評価が0件の場合は0とする。
func Summarize(ratings []model.Rating) *Statistics {
	st := &Statistics{
		TotalRatings: len(ratings),
		Scores:       make([]int, 0, len(ratings)),
		ByGender:     make(map[string]GroupStats),
		ByAgeGroup:   make(map[string]GroupStats),
	}

	all := make([]float64, 0, len(ratings))
	byGender := make(map[string][]float64)
	byAge := make(map[string][]float64)
	for _, r := range ratings {
		v := float64(r.Score)
		st.Scores = append(st.Scores, r.Score)
		all = append(all, v)

		g := GroupUnknown
		if r.RaterGender != model.GenderUnspecified {
			g = string(r.RaterGender)
		}
		byGender[g] = append(byGender[g], v)

		a := ageGroup(r.RaterAge)
		byAge[a] = append(byAge[a], v)
	}

	st.AverageScore = roundedMean(all)
	for k, v := range byGender {
		st.ByGender[k] = GroupStats{Count: len(v), AverageScore: roundedMean(v)}
	}
	for k, v := range byAge {
		st.ByAgeGroup[k] = GroupStats{Count: len(v), AverageScore: roundedMean(v)}
	}
	return st
}

func ageGroup(age *int) string {
	if age == nil {
		return GroupUnknown
	}
	switch a := *age; {
	case a < 20:
		return AgeGroupUnder20
	case a < 30:
		return AgeGroup20to30
	case a < 40:
		return AgeGroup30to40
	default:
		return AgeGroupOver40
	}
}

func roundedMean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return math.Round(stat.Mean(xs, nil)*100) / 100
}
