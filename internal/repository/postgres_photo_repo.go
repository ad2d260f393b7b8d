package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/photorate/internal/database"
	"github.com/hitoshi/photorate/internal/model"
)

const photoColumns = `p.id, p.user_id, p.file_name, p.file_path, p.thumbnail_path, p.original_name, p.mime_type, p.size, p.created_at`

// PostgresPhotoRepo はPostgreSQLを使用した写真リポジトリ。
type PostgresPhotoRepo struct {
	db *sql.DB
}

// NewPostgresPhotoRepo はPostgresPhotoRepoを生成する。
func NewPostgresPhotoRepo(db *sql.DB) *PostgresPhotoRepo {
	return &PostgresPhotoRepo{db: db}
}

func photoScanArgs(p *model.Photo) []any {
	return []any{
		&p.ID, &p.UserID, &p.FileName, &p.FilePath, &p.ThumbnailPath,
		&p.OriginalName, &p.MimeType, &p.Size, &p.CreatedAt,
	}
}

// CreateWithMovements は写真レコードを作成し、movementsを同一トランザクションで適用する。
func (r *PostgresPhotoRepo) CreateWithMovements(ctx context.Context, photo *model.Photo, movements []model.PointMovement) (map[model.ID]int, error) {
	var balances map[model.ID]int
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO photos (id, user_id, file_name, file_path, thumbnail_path, original_name, mime_type, size, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			photo.ID, photo.UserID, photo.FileName, photo.FilePath, photo.ThumbnailPath,
			photo.OriginalName, photo.MimeType, photo.Size, photo.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert photo: %w", err)
		}

		balances, err = applyMovements(ctx, tx, movements)
		return err
	})
	if err != nil {
		return nil, err
	}
	return balances, nil
}

// FindByID は指定IDの写真を取得する。見つからない場合はnilを返す。
func (r *PostgresPhotoRepo) FindByID(ctx context.Context, id model.ID) (*model.Photo, error) {
	photo := &model.Photo{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+photoColumns+` FROM photos p WHERE p.id = $1`,
		id,
	).Scan(photoScanArgs(photo)...)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find photo by ID: %w", err)
	}
	return photo, nil
}

// ListByOwnerWithState は所有者の写真一覧を評価プール状態・評価件数付きで返す。
func (r *PostgresPhotoRepo) ListByOwnerWithState(ctx context.Context, ownerID model.ID) ([]model.PhotoWithState, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+photoColumns+`,
			EXISTS (
				SELECT 1 FROM evaluation_pool ep
				WHERE ep.user_id = p.user_id AND ep.photo_id = p.id
			) AS is_evaluated,
			(SELECT count(*) FROM ratings r WHERE r.photo_id = p.id) AS total_ratings
		 FROM photos p
		 WHERE p.user_id = $1
		 ORDER BY p.created_at DESC, p.id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos by owner: %w", err)
	}
	defer rows.Close()

	var photos []model.PhotoWithState
	for rows.Next() {
		var ps model.PhotoWithState
		args := append(photoScanArgs(&ps.Photo), &ps.IsEvaluated, &ps.TotalRatings)
		if err := rows.Scan(args...); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate photos: %w", err)
	}

	return photos, nil
}

// ReferencedFileNames はfileNamesのうち写真レコードから参照されているものを返す。
func (r *PostgresPhotoRepo) ReferencedFileNames(ctx context.Context, fileNames []string) (map[string]bool, error) {
	referenced := make(map[string]bool)
	if len(fileNames) == 0 {
		return referenced, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT file_name FROM photos WHERE file_name = ANY($1)`,
		pq.Array(fileNames),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query referenced files: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan file name: %w", err)
		}
		referenced[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate file names: %w", err)
	}

	return referenced, nil
}

// compile-time interface check
var _ PhotoRepository = (*PostgresPhotoRepo)(nil)
