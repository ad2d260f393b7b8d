package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/photorate/internal/database"
	"github.com/hitoshi/photorate/internal/model"
)

// PostgresRatingRepo はPostgreSQLを使用した評価リポジトリ。
type PostgresRatingRepo struct {
	db *sql.DB
}

// NewPostgresRatingRepo はPostgresRatingRepoを生成する。
func NewPostgresRatingRepo(db *sql.DB) *PostgresRatingRepo {
	return &PostgresRatingRepo{db: db}
}

// CreateWithMovements は評価を追加し、movementsを同一トランザクションで適用する。
// (photo_id, rater_id) の一意制約により、同時に送信された二重評価は片方のみ受理される。
func (r *PostgresRatingRepo) CreateWithMovements(ctx context.Context, rating *model.Rating, movements []model.PointMovement) (map[model.ID]int, error) {
	var balances map[model.ID]int
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO ratings (id, photo_id, rater_id, score, rater_gender, rater_age, created_at)
			 SELECT $1, $2, u.id, $4, u.gender, u.age, COALESCE($5::timestamptz, now())
			 FROM users u WHERE u.id = $3
			 ON CONFLICT (photo_id, rater_id) DO NOTHING
			 RETURNING rater_gender, rater_age, created_at`,
			rating.ID, rating.PhotoID, rating.RaterID, rating.Score, nullTime(rating.CreatedAt),
		).Scan(&rating.RaterGender, &rating.RaterAge, &rating.CreatedAt)
		if err == sql.ErrNoRows {
			var exists bool
			if err := tx.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`,
				rating.RaterID,
			).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check rater: %w", err)
			}
			if !exists {
				return ErrUserNotFound
			}
			return ErrAlreadyRated
		}
		if err != nil {
			return fmt.Errorf("failed to insert rating: %w", err)
		}

		balances, err = applyMovements(ctx, tx, movements)
		return err
	})
	if err != nil {
		return nil, err
	}
	return balances, nil
}

// nullTime はゼロ値の時刻をNULLとして渡す。NULLの場合はDB側で現在時刻を記録する。
func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// ListCandidates はraterIDが評価可能な写真を最大filter.Limit件返す。
// 性別・年齢の条件は写真所有者の申告プロフィールに対して適用する。
func (r *PostgresRatingRepo) ListCandidates(ctx context.Context, raterID model.ID, filter model.CandidateFilter) ([]model.Candidate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.file_path
		 FROM photos p
		 JOIN evaluation_pool ep ON ep.photo_id = p.id AND ep.user_id = p.user_id
		 JOIN users u ON u.id = p.user_id
		 WHERE p.user_id <> $1
		   AND NOT EXISTS (
			   SELECT 1 FROM ratings r WHERE r.photo_id = p.id AND r.rater_id = $1
		   )
		   AND ($2::text = '' OR u.gender = $2::text)
		   AND ($3::integer IS NULL OR u.age >= $3::integer)
		   AND ($4::integer IS NULL OR u.age <= $4::integer)
		 LIMIT $5`,
		raterID, string(filter.Gender), filter.AgeMin, filter.AgeMax, filter.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	candidates := []model.Candidate{}
	for rows.Next() {
		var c model.Candidate
		if err := rows.Scan(&c.ID, &c.FilePath); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate candidates: %w", err)
	}

	return candidates, nil
}

// ListByPhoto は写真の評価を投稿順で返す。
func (r *PostgresRatingRepo) ListByPhoto(ctx context.Context, photoID model.ID) ([]model.Rating, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, photo_id, rater_id, score, rater_gender, rater_age, created_at
		 FROM ratings
		 WHERE photo_id = $1
		 ORDER BY seq`,
		photoID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	defer rows.Close()

	var ratings []model.Rating
	for rows.Next() {
		var rt model.Rating
		if err := rows.Scan(&rt.ID, &rt.PhotoID, &rt.RaterID, &rt.Score, &rt.RaterGender, &rt.RaterAge, &rt.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		ratings = append(ratings, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ratings: %w", err)
	}

	return ratings, nil
}

// compile-time interface check
var _ RatingRepository = (*PostgresRatingRepo)(nil)
