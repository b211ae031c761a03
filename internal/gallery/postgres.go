package gallery

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const imageColumns = `id, user_id, image_url, image_key, title, sort_order, created_at`

// PostgresRepository implements Repository on a pgx connection pool.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgresRepository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanImage(row pgx.Row) (*Image, error) {
	img := &Image{}
	err := row.Scan(&img.ID, &img.UserID, &img.ImageURL, &img.ImageKey, &img.Title, &img.Order, &img.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return img, nil
}

// NextOrder computes the next free order value for the owner.
func (r *PostgresRepository) NextOrder(ctx context.Context, userID string) (int, error) {
	var next int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(sort_order) + 1, 0) FROM images WHERE user_id = $1`,
		userID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next order: %w", err)
	}
	return next, nil
}

// Insert stores a new image record and returns it with generated fields set.
func (r *PostgresRepository) Insert(ctx context.Context, img *Image) (*Image, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO images (user_id, image_url, image_key, title, sort_order)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+imageColumns,
		img.UserID, img.ImageURL, img.ImageKey, img.Title, img.Order,
	)
	created, err := scanImage(row)
	if err != nil {
		return nil, fmt.Errorf("insert image: %w", err)
	}
	return created, nil
}

// FindByOwner lists the owner's images in display order.
func (r *PostgresRepository) FindByOwner(ctx context.Context, userID string) ([]*Image, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+imageColumns+`
		 FROM images WHERE user_id = $1
		 ORDER BY sort_order ASC, created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("find images: %w", err)
	}
	defer rows.Close()

	images := []*Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	return images, nil
}

// FindOne fetches a single image owned by userID.
func (r *PostgresRepository) FindOne(ctx context.Context, id, userID string) (*Image, error) {
	return scanImage(r.db.QueryRow(ctx,
		`SELECT `+imageColumns+` FROM images WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
}

// UpdateTitle sets a new title and returns the updated record. The owner
// predicate makes a foreign id indistinguishable from a missing one.
func (r *PostgresRepository) UpdateTitle(ctx context.Context, id, userID, title string) (*Image, error) {
	return scanImage(r.db.QueryRow(
		ctx,
		`UPDATE images SET title = $3
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+imageColumns,
		id, userID, title,
	))
}

// UpdateOrder sets a new display order for one image.
func (r *PostgresRepository) UpdateOrder(ctx context.Context, id, userID string, order int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE images SET sort_order = $3 WHERE id = $1 AND user_id = $2`,
		id, userID, order,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the record atomically and returns it. Concurrent deletes of
// the same id race on the row: exactly one caller gets the record, the rest
// get ErrNotFound.
func (r *PostgresRepository) Delete(ctx context.Context, id, userID string) (*Image, error) {
	return scanImage(r.db.QueryRow(ctx,
		`DELETE FROM images WHERE id = $1 AND user_id = $2
		 RETURNING `+imageColumns,
		id, userID,
	))
}
