package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/hitoshi/photorate/internal/model"
)

// applyMovements はトランザクション内でポイント増減を適用し、増減履歴を記録する。
// 厳格な減算は残高が不足する場合ErrInsufficientPointsを返すため、呼び出し側はロールバックすること。
// 下限付きの減算は残高0を下限として実際に減算できた分だけ記録する。
// 戻り値は適用後の各ユーザーの残高。
func applyMovements(ctx context.Context, tx *sql.Tx, movements []model.PointMovement) (map[model.ID]int, error) {
	balances := make(map[model.ID]int, len(movements))

	// ユーザーID順に適用して行ロックの取得順序を固定する。
	ordered := make([]model.PointMovement, len(movements))
	copy(ordered, movements)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].UserID.String() < ordered[j].UserID.String()
	})

	for _, m := range ordered {
		if m.Delta == 0 {
			continue
		}

		applied, balance, err := applyMovement(ctx, tx, m)
		if err != nil {
			return nil, err
		}
		balances[m.UserID] = balance

		if applied == 0 {
			continue
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO point_transactions (user_id, delta, kind, photo_id)
			 VALUES ($1, $2, $3, $4)`,
			m.UserID, applied, m.Kind, m.PhotoID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert point transaction: %w", err)
		}
	}

	return balances, nil
}

// applyMovement は1件の増減を適用し、実際の増減量と適用後の残高を返す。
func applyMovement(ctx context.Context, tx *sql.Tx, m model.PointMovement) (int, int, error) {
	var balance int

	switch {
	case !m.IsDebit():
		err := tx.QueryRowContext(ctx,
			`UPDATE users SET points = points + $2, updated_at = now()
			 WHERE id = $1
			 RETURNING points`,
			m.UserID, m.Delta,
		).Scan(&balance)
		if err == sql.ErrNoRows {
			return 0, 0, ErrUserNotFound
		}
		if err != nil {
			return 0, 0, fmt.Errorf("failed to credit points: %w", err)
		}
		return m.Delta, balance, nil

	case m.Strict:
		cost := -m.Delta
		err := tx.QueryRowContext(ctx,
			`UPDATE users SET points = points - $2, updated_at = now()
			 WHERE id = $1 AND points >= $2
			 RETURNING points`,
			m.UserID, cost,
		).Scan(&balance)
		if err == sql.ErrNoRows {
			return 0, 0, ErrInsufficientPoints
		}
		if err != nil {
			return 0, 0, fmt.Errorf("failed to debit points: %w", err)
		}
		return m.Delta, balance, nil

	default:
		var current int
		err := tx.QueryRowContext(ctx,
			`SELECT points FROM users WHERE id = $1 FOR UPDATE`,
			m.UserID,
		).Scan(&current)
		if err == sql.ErrNoRows {
			return 0, 0, ErrUserNotFound
		}
		if err != nil {
			return 0, 0, fmt.Errorf("failed to lock user balance: %w", err)
		}

		debit := min(-m.Delta, current)
		if debit == 0 {
			return 0, current, nil
		}
		err = tx.QueryRowContext(ctx,
			`UPDATE users SET points = points - $2, updated_at = now()
			 WHERE id = $1
			 RETURNING points`,
			m.UserID, debit,
		).Scan(&balance)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to debit points: %w", err)
		}
		return -debit, balance, nil
	}
}

// PostgresLedgerRepo はPostgreSQLを使用したポイント履歴リポジトリ。
type PostgresLedgerRepo struct {
	db *sql.DB
}

// NewPostgresLedgerRepo はPostgresLedgerRepoを生成する。
func NewPostgresLedgerRepo(db *sql.DB) *PostgresLedgerRepo {
	return &PostgresLedgerRepo{db: db}
}

// History はユーザーのポイント増減履歴を新しい順に最大limit件返す。
func (r *PostgresLedgerRepo) History(ctx context.Context, userID model.ID, limit int) ([]model.PointTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, delta, kind, photo_id, created_at
		 FROM point_transactions
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list point transactions: %w", err)
	}
	defer rows.Close()

	var history []model.PointTransaction
	for rows.Next() {
		var tr model.PointTransaction
		if err := rows.Scan(&tr.ID, &tr.UserID, &tr.Delta, &tr.Kind, &tr.PhotoID, &tr.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan point transaction: %w", err)
		}
		history = append(history, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate point transactions: %w", err)
	}

	return history, nil
}

// compile-time interface check
var _ LedgerRepository = (*PostgresLedgerRepo)(nil)
