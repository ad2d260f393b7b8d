// Package photo は写真のアップロード、所有写真の一覧、評価プールへの追加・削除を提供する。
package photo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hitoshi/photorate/internal/ledger"
	"github.com/hitoshi/photorate/internal/metrics"
	"github.com/hitoshi/photorate/internal/model"
	"github.com/hitoshi/photorate/internal/repository"
	"github.com/hitoshi/photorate/internal/security"
	"github.com/hitoshi/photorate/internal/storage"
)

// FileStore はアップロードファイルの保存先のインターフェース。
type FileStore interface {
	Save(r io.Reader, declaredType string) (*storage.StoredFile, error)
	Remove(f *storage.StoredFile)
}

var _ FileStore = (*storage.Store)(nil)

// UploadInput はアップロード1件分の入力。
type UploadInput struct {
	Body         io.Reader
	ContentType  string // multipartパートで申告されたContent-Type
	OriginalName string
}

// UploadResult はアップロード成功時の写真と残高。
type UploadResult struct {
	Photo  *model.Photo
	Points int
}

// MyPhotosResult は所有写真の一覧と残高。
type MyPhotosResult struct {
	Photos []model.PhotoWithState
	Points int
}

// PoolResult は評価プール追加の結果。
type PoolResult struct {
	Added  bool // falseの場合は既に追加済みで、ポイントは消費していない
	Points int
}

// Service は写真に関するビジネスロジックを提供する。
type Service struct {
	userRepo  repository.UserRepository
	photoRepo repository.PhotoRepository
	poolRepo  repository.PoolRepository
	files     FileStore
	sanitizer security.TextSanitizerService
	policy    ledger.Policy
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceを生成する。metricsがnilの場合は記録しない。
func NewService(
	userRepo repository.UserRepository,
	photoRepo repository.PhotoRepository,
	poolRepo repository.PoolRepository,
	files FileStore,
	sanitizer security.TextSanitizerService,
	policy ledger.Policy,
	mc metrics.MetricsCollector,
) *Service {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &Service{
		userRepo:  userRepo,
		photoRepo: photoRepo,
		poolRepo:  poolRepo,
		files:     files,
		sanitizer: sanitizer,
		policy:    policy,
		metrics:   mc,
		now:       time.Now,
	}
}

func (s *Service) findUser(ctx context.Context, userID model.ID) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// findOwnedPhoto はuserIDが所有する写真を返す。
// 存在しない写真と他人の写真は区別せずPHOTO_NOT_FOUNDとする。
func (s *Service) findOwnedPhoto(ctx context.Context, userID, photoID model.ID) (*model.Photo, error) {
	photo, err := s.photoRepo.FindByID(ctx, photoID)
	if err != nil {
		return nil, fmt.Errorf("写真の取得に失敗しました: %w", err)
	}
	if photo == nil || photo.UserID != userID {
		return nil, model.NewPhotoNotFoundError(photoID)
	}
	return photo, nil
}

// Upload は写真ファイルを保存し、写真レコードの作成とアップロード費用の消費を1トランザクションで行う。
// ファイル保存後に失敗した場合は保存したファイルとサムネイルを削除する。
func (s *Service) Upload(ctx context.Context, userID model.ID, in UploadInput) (*UploadResult, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	// 残高が明らかに足りない場合はファイルを書き込む前に拒否する。
	if !s.policy.CanAffordUpload(user.Points) {
		s.metrics.RecordInsufficientPoints("upload")
		return nil, model.NewNotEnoughPointsError()
	}

	stored, err := s.files.Save(in.Body, in.ContentType)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			s.metrics.RecordUploadRejected(apiErr.Code)
			return nil, apiErr
		}
		return nil, fmt.Errorf("ファイルの保存に失敗しました: %w", err)
	}

	photo := &model.Photo{
		ID:            model.NewID(),
		UserID:        userID,
		FileName:      stored.FileName,
		FilePath:      stored.FilePath,
		ThumbnailPath: stored.ThumbnailPath,
		OriginalName:  s.sanitizer.SanitizeFileName(in.OriginalName),
		MimeType:      stored.MimeType,
		Size:          stored.Size,
		CreatedAt:     s.now(),
	}
	charge := s.policy.UploadCharge(userID, photo.ID)

	balances, err := s.photoRepo.CreateWithMovements(ctx, photo, charge)
	if err != nil {
		s.files.Remove(stored)
		if errors.Is(err, repository.ErrInsufficientPoints) {
			s.metrics.RecordInsufficientPoints("upload")
			return nil, model.NewNotEnoughPointsError()
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("写真の登録に失敗しました: %w", err)
	}

	points, ok := balances[userID]
	if !ok {
		points = user.Points
	}

	s.metrics.RecordUpload(photo.Size)
	for _, m := range charge {
		s.metrics.RecordPointMovement(string(m.Kind), m.Delta)
	}
	slog.Info("photo uploaded",
		slog.String("photo_id", photo.ID.String()),
		slog.String("user_id", userID.String()),
		slog.Int64("size", photo.Size),
		slog.Int("points", points),
	)

	return &UploadResult{Photo: photo, Points: points}, nil
}

// MyPhotos はユーザーの写真一覧を評価プール状態・評価件数付きで、残高とともに返す。
func (s *Service) MyPhotos(ctx context.Context, userID model.ID) (*MyPhotosResult, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	photos, err := s.photoRepo.ListByOwnerWithState(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("写真一覧の取得に失敗しました: %w", err)
	}
	if photos == nil {
		photos = []model.PhotoWithState{}
	}
	return &MyPhotosResult{Photos: photos, Points: user.Points}, nil
}

// AddToPool は自分の写真を評価プールに追加し、追加費用を消費する。
// 既に追加済みの場合は何もせず、ポイントも消費しない。
func (s *Service) AddToPool(ctx context.Context, userID, photoID model.ID) (*PoolResult, error) {
	if _, err := s.findOwnedPhoto(ctx, userID, photoID); err != nil {
		return nil, err
	}

	charge := s.policy.PoolCharge(userID, photoID)
	added, points, err := s.poolRepo.Add(ctx, userID, photoID, charge)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientPoints) {
			s.metrics.RecordInsufficientPoints("pool_add")
			return nil, model.NewNotEnoughPointsError()
		}
		return nil, fmt.Errorf("評価プールへの追加に失敗しました: %w", err)
	}

	if added {
		for _, m := range charge {
			s.metrics.RecordPointMovement(string(m.Kind), m.Delta)
		}
		slog.Info("photo added to evaluation pool",
			slog.String("photo_id", photoID.String()),
			slog.String("user_id", userID.String()),
			slog.Int("points", points),
		)
	}
	return &PoolResult{Added: added, Points: points}, nil
}

// RemoveFromPool は自分の写真を評価プールから外す。返金はしない。
// 削除されたかどうかを返す。
func (s *Service) RemoveFromPool(ctx context.Context, userID, photoID model.ID) (bool, error) {
	if _, err := s.findOwnedPhoto(ctx, userID, photoID); err != nil {
		return false, err
	}

	removed, err := s.poolRepo.Remove(ctx, userID, photoID)
	if err != nil {
		return false, fmt.Errorf("評価プールからの削除に失敗しました: %w", err)
	}
	if removed {
		slog.Info("photo removed from evaluation pool",
			slog.String("photo_id", photoID.String()),
			slog.String("user_id", userID.String()),
		)
	}
	return removed, nil
}
