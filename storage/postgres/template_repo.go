package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridebook/pkg/logger"
	"ridebook/pkg/models"
	"ridebook/storage"
)

type templateRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewTemplateRepo(db *pgxpool.Pool, log logger.ILogger) storage.ITemplateStorage {
	return &templateRepo{db: db, log: log}
}

func scanTemplate(row pgx.Row) (*models.CleanerTemplate, error) {
	var (
		t    models.CleanerTemplate
		data []byte
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &data, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Data = data
	return &t, nil
}

func (r *templateRepo) Create(ctx context.Context, t *models.CleanerTemplate) (*models.CleanerTemplate, error) {
	out, err := scanTemplate(r.db.QueryRow(ctx, `
		INSERT INTO cleaner_templates (id, user_id, name, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id, user_id, name, data, created_at, updated_at`,
		t.ID, t.UserID, t.Name, []byte(t.Data), t.CreatedAt,
	))
	if err != nil {
		r.log.Error("failed to create template", logger.String("user_id", t.UserID), logger.Error(err))
		return nil, mapErr(err)
	}
	return out, nil
}

func (r *templateRepo) Get(ctx context.Context, id string) (*models.CleanerTemplate, error) {
	t, err := scanTemplate(r.db.QueryRow(ctx,
		"SELECT id, user_id, name, data, created_at, updated_at FROM cleaner_templates WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		r.log.Error("failed to get template", logger.String("id", id), logger.Error(err))
		return nil, err
	}
	return t, nil
}

func (r *templateRepo) List(ctx context.Context, userID string) ([]*models.CleanerTemplate, error) {
	rows, err := r.db.Query(ctx,
		"SELECT id, user_id, name, data, created_at, updated_at FROM cleaner_templates WHERE user_id = $1 ORDER BY created_at DESC",
		userID)
	if err != nil {
		r.log.Error("failed to list templates", logger.String("user_id", userID), logger.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []*models.CleanerTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *templateRepo) Update(ctx context.Context, t *models.CleanerTemplate) (*models.CleanerTemplate, error) {
	out, err := scanTemplate(r.db.QueryRow(ctx, `
		UPDATE cleaner_templates SET name = $3, data = $4, updated_at = $5
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, name, data, created_at, updated_at`,
		t.ID, t.UserID, t.Name, []byte(t.Data), t.UpdatedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		r.log.Error("failed to update template", logger.String("id", t.ID), logger.Error(err))
		return nil, err
	}
	return out, nil
}

func (r *templateRepo) Delete(ctx context.Context, id, userID string) error {
	res, err := r.db.Exec(ctx, "DELETE FROM cleaner_templates WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		r.log.Error("failed to delete template", logger.String("id", id), logger.Error(err))
		return err
	}
	if res.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
