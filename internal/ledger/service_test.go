package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/photorate/internal/model"
)

// --- モック ---

type mockUserRepo struct {
	findByIDFn func(ctx context.Context, id model.ID) (*model.User, error)
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User, grant []model.PointMovement) error {
	return nil
}
func (m *mockUserRepo) FindByID(ctx context.Context, id model.ID) (*model.User, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) SetResetToken(ctx context.Context, reset *model.PasswordReset) error {
	return nil
}
func (m *mockUserRepo) FindByResetTokenHash(ctx context.Context, tokenHash string) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) UpdatePassword(ctx context.Context, id model.ID, passwordHash string) error {
	return nil
}
func (m *mockUserRepo) ClearExpiredResetTokens(ctx context.Context) (int64, error) {
	return 0, nil
}

type mockLedgerRepo struct {
	historyFn func(ctx context.Context, userID model.ID, limit int) ([]model.PointTransaction, error)
}

func (m *mockLedgerRepo) History(ctx context.Context, userID model.ID, limit int) ([]model.PointTransaction, error) {
	return m.historyFn(ctx, userID, limit)
}

// --- テスト ---

func TestService_Balance(t *testing.T) {
	userID := model.NewID()
	svc := NewService(&mockUserRepo{
		findByIDFn: func(ctx context.Context, id model.ID) (*model.User, error) {
			if id != userID {
				return nil, nil
			}
			return &model.User{ID: userID, Points: 7}, nil
		},
	}, &mockLedgerRepo{})

	got, err := svc.Balance(context.Background(), userID)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if got != 7 {
		t.Errorf("Balance = %d, want 7", got)
	}

	_, err = svc.Balance(context.Background(), model.NewID())
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserNotFound {
		t.Errorf("expected USER_NOT_FOUND, got %v", err)
	}
}

func TestService_History_ClampsLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"0は既定値", 0, DefaultHistoryLimit},
		{"負数は既定値", -5, DefaultHistoryLimit},
		{"範囲内はそのまま", 50, 50},
		{"上限を超える場合は上限", 1000, MaxHistoryLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit int
			svc := NewService(&mockUserRepo{}, &mockLedgerRepo{
				historyFn: func(ctx context.Context, userID model.ID, limit int) ([]model.PointTransaction, error) {
					gotLimit = limit
					return nil, nil
				},
			})
			history, err := svc.History(context.Background(), model.NewID(), tt.limit)
			if err != nil {
				t.Fatalf("History failed: %v", err)
			}
			if history == nil {
				t.Error("history should be an empty slice, not nil")
			}
			if gotLimit != tt.want {
				t.Errorf("limit = %d, want %d", gotLimit, tt.want)
			}
		})
	}
}

func TestService_History_ReturnsTransactions(t *testing.T) {
	userID := model.NewID()
	svc := NewService(&mockUserRepo{}, &mockLedgerRepo{
		historyFn: func(ctx context.Context, id model.ID, limit int) ([]model.PointTransaction, error) {
			return []model.PointTransaction{
				{ID: 2, UserID: id, Delta: -1, Kind: model.MovementUpload, CreatedAt: time.Now()},
				{ID: 1, UserID: id, Delta: 10, Kind: model.MovementSignup, CreatedAt: time.Now()},
			}, nil
		},
	})

	history, err := svc.History(context.Background(), userID, 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 || history[0].Kind != model.MovementUpload {
		t.Errorf("unexpected history: %+v", history)
	}
}

func TestService_History_WrapsError(t *testing.T) {
	sentinel := errors.New("db down")
	svc := NewService(&mockUserRepo{}, &mockLedgerRepo{
		historyFn: func(ctx context.Context, id model.ID, limit int) ([]model.PointTransaction, error) {
			return nil, sentinel
		},
	})
	if _, err := svc.History(context.Background(), model.NewID(), 10); !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped sentinel, got %v", err)
	}
}
