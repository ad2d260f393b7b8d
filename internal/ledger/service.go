package ledger

import (
	"context"
	"fmt"

	"github.com/hitoshi/photorate/internal/model"
	"github.com/hitoshi/photorate/internal/repository"
)

// 履歴取得件数の上限。
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// Service はポイント残高と増減履歴の参照を提供する。
type Service struct {
	userRepo   repository.UserRepository
	ledgerRepo repository.LedgerRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, ledgerRepo repository.LedgerRepository) *Service {
	return &Service{userRepo: userRepo, ledgerRepo: ledgerRepo}
}

// Balance はユーザーの現在の残高を返す。
func (s *Service) Balance(ctx context.Context, userID model.ID) (int, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return 0, model.NewUserNotFoundError()
	}
	return user.Points, nil
}

// History はユーザーの増減履歴を新しい順に返す。
// limitが0以下の場合はDefaultHistoryLimit、MaxHistoryLimitを超える場合はMaxHistoryLimitを使う。
func (s *Service) History(ctx context.Context, userID model.ID, limit int) ([]model.PointTransaction, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	history, err := s.ledgerRepo.History(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ポイント履歴の取得に失敗しました: %w", err)
	}
	if history == nil {
		history = []model.PointTransaction{}
	}
	return history, nil
}
