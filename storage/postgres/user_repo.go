package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridebook/pkg/logger"
	"ridebook/pkg/models"
	"ridebook/storage"
)

type userRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewUserRepo(db *pgxpool.Pool, log logger.ILogger) storage.IUserStorage {
	return &userRepo{db: db, log: log}
}

const userColumns = `id, name, email, phone, role, city, is_verified, verification_status,
	rejection_reason, push_chat_id, last_activity, created_at`

func scanUser(row pgx.Row, extra ...interface{}) (*models.User, error) {
	var (
		u            models.User
		role, status string
	)
	dest := []interface{}{
		&u.ID, &u.Name, &u.Email, &u.Phone, &role, &u.City, &u.IsVerified, &status,
		&u.RejectionReason, &u.PushChatID, &u.LastActivity, &u.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	u.VerificationStatus = models.VerificationStatus(status)
	return &u, nil
}

func (r *userRepo) Ensure(ctx context.Context, user *models.User, at time.Time) (*models.User, error) {
	query := `
		INSERT INTO users (id, name, role, city, last_activity, created_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = CASE WHEN EXCLUDED.name = '' THEN users.name ELSE EXCLUDED.name END,
			role = EXCLUDED.role,
			last_activity = EXCLUDED.last_activity
		RETURNING ` + userColumns
	u, err := scanUser(r.db.QueryRow(ctx, query, user.ID, user.Name, string(user.Role), user.City, at))
	if err != nil {
		r.log.Error("failed to ensure user", logger.String("id", user.ID), logger.Error(err))
		return nil, mapErr(err)
	}
	return u, nil
}

func (r *userRepo) UpdateProfile(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		UPDATE users
		SET name = $2, email = $3, phone = $4, city = $5
		WHERE id = $1
		RETURNING ` + userColumns
	u, err := scanUser(r.db.QueryRow(ctx, query, user.ID, user.Name, user.Email, user.Phone, user.City))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		r.log.Error("failed to update profile", logger.String("id", user.ID), logger.Error(err))
		return nil, err
	}
	return u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		r.log.Error("failed to get user by id", logger.String("id", id), logger.Error(err))
		return nil, err
	}
	return u, nil
}

func (r *userRepo) GetByPushChatID(ctx context.Context, chatID int64) (*models.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE push_chat_id = $1`, chatID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		r.log.Error("failed to get user by chat id", logger.Int64("chat_id", chatID), logger.Error(err))
		return nil, err
	}
	return u, nil
}

func (r *userRepo) SetPushChatID(ctx context.Context, id string, chatID *int64) error {
	res, err := r.db.Exec(ctx, "UPDATE users SET push_chat_id = $2 WHERE id = $1", id, chatID)
	if err != nil {
		r.log.Error("failed to set push chat id", logger.String("id", id), logger.Error(err))
		return mapErr(err)
	}
	if res.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *userRepo) SetVerification(ctx context.Context, id string, status models.VerificationStatus, reason string) (*models.User, error) {
	query := `
		UPDATE users
		SET verification_status = $2,
			is_verified = ($2 = 'verified'),
			rejection_reason = $3
		WHERE id = $1
		RETURNING ` + userColumns
	u, err := scanUser(r.db.QueryRow(ctx, query, id, string(status), reason))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		r.log.Error("failed to set verification", logger.String("id", id), logger.Error(err))
		return nil, err
	}
	return u, nil
}

func (r *userRepo) List(ctx context.Context) ([]*models.UserSummary, error) {
	query := `
		SELECT ` + prefixed("u", userColumns) + `, COUNT(o.id)
		FROM users u
		LEFT JOIN orders o ON o.customer_id = u.id
		GROUP BY u.id
		ORDER BY u.created_at DESC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.log.Error("failed to list users", logger.Error(err))
		return nil, err
	}
	defer rows.Close()

	var users []*models.UserSummary
	for rows.Next() {
		var count int
		u, err := scanUser(rows, &count)
		if err != nil {
			return nil, err
		}
		users = append(users, &models.UserSummary{User: *u, RequestCount: count})
	}
	return users, rows.Err()
}
