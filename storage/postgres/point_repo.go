package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridebook/pkg/logger"
	"ridebook/pkg/models"
	"ridebook/storage"
)

type pointRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewPointRepo(db *pgxpool.Pool, log logger.ILogger) storage.IPointStorage {
	return &pointRepo{db: db, log: log}
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertPoint(ctx context.Context, db execer, e *models.PointEntry) error {
	_, err := db.Exec(ctx, `
		INSERT INTO point_history (id, user_id, order_id, description, point_type, user_type, point_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.UserID, e.OrderID, e.Description, string(e.PointType), string(e.UserType), e.PointAmount, e.CreatedAt,
	)
	return err
}

func (r *pointRepo) Add(ctx context.Context, entry *models.PointEntry) error {
	if err := insertPoint(ctx, r.db, entry); err != nil {
		r.log.Error("failed to add point entry", logger.String("user_id", entry.UserID), logger.Error(err))
		return mapErr(err)
	}
	return nil
}

// History lists entries newest first. Empty userID or pointType widen the
// filter.
func (r *pointRepo) History(ctx context.Context, userID string, pointType models.PointType) ([]*models.PointEntry, error) {
	query := `
		SELECT id, user_id, order_id, description, point_type, user_type, point_amount, created_at
		FROM point_history
		WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR point_type = $2)
		ORDER BY created_at DESC, id
	`
	rows, err := r.db.Query(ctx, query, userID, string(pointType))
	if err != nil {
		r.log.Error("failed to list point history", logger.String("user_id", userID), logger.Error(err))
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.PointEntry, error) {
		var (
			e         models.PointEntry
			pt, utype string
		)
		if err := row.Scan(&e.ID, &e.UserID, &e.OrderID, &e.Description, &pt, &utype, &e.PointAmount, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.PointType = models.PointType(pt)
		e.UserType = models.PointUserType(utype)
		return &e, nil
	})
}

func (r *pointRepo) Total(ctx context.Context, userID string, pointType models.PointType) (int, error) {
	var total int
	err := r.db.QueryRow(ctx,
		"SELECT COALESCE(SUM(point_amount), 0) FROM point_history WHERE user_id = $1 AND point_type = $2",
		userID, string(pointType),
	).Scan(&total)
	if err != nil {
		r.log.Error("failed to total points", logger.String("user_id", userID), logger.Error(err))
		return 0, err
	}
	return total, nil
}
