package wallpapers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/aiwallpaper/internal/common"
	"github.com/dmitrijs2005/aiwallpaper/internal/dbx"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/models"
)

const wallpaperColumns = `id, user_id, prompt, size, style, status, image_ref, created_at, updated_at`

// PostgresRepository implements wallpaper storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallpaper(row rowScanner) (*models.Wallpaper, error) {
	w := &models.Wallpaper{}
	if err := row.Scan(&w.ID, &w.UserID, &w.Prompt, &w.Size, &w.Style, &w.Status, &w.ImageRef, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return w, nil
}

func (r *PostgresRepository) Create(ctx context.Context, w *models.Wallpaper) (*models.Wallpaper, error) {
	query := `
		INSERT INTO wallpapers (user_id, prompt, size, style, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	status := w.Status
	if status == "" {
		status = models.WallpaperPending
	}

	err := r.db.QueryRowContext(ctx, query, w.UserID, w.Prompt, w.Size, w.Style, string(status)).
		Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	w.Status = status

	return w, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Wallpaper, error) {
	query := `SELECT ` + wallpaperColumns + ` FROM wallpapers WHERE id = $1`

	w, err := scanWallpaper(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return w, nil
}

func (r *PostgresRepository) GetForUser(ctx context.Context, id, userID string) (*models.Wallpaper, error) {
	query := `SELECT ` + wallpaperColumns + ` FROM wallpapers WHERE id = $1 AND user_id = $2`

	w, err := scanWallpaper(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return w, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Wallpaper, error) {
	query := `SELECT ` + wallpaperColumns + ` FROM wallpapers
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Wallpaper, 0)
	for rows.Next() {
		w, err := scanWallpaper(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id, userID string) error {
	query := `DELETE FROM wallpapers WHERE id = $1 AND user_id = $2`

	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) MarkCompleted(ctx context.Context, id, imageRef string) (bool, error) {
	query := `
		UPDATE wallpapers SET status = 'completed', image_ref = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`
	return r.transition(ctx, query, id, imageRef)
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE wallpapers SET status = 'failed', image_ref = NULL, updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`
	return r.transition(ctx, query, id)
}

func (r *PostgresRepository) transition(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}
