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

type providerRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewProviderRepo(db *pgxpool.Pool, log logger.ILogger) storage.IProviderStorage {
	return &providerRepo{db: db, log: log}
}

const providerColumns = `user_id, name, service, city, region, properties, client_types, status,
	submission_time, approval_time, reputation_points`

func scanProvider(row pgx.Row) (*models.Provider, error) {
	var (
		p               models.Provider
		service, status string
	)
	err := row.Scan(
		&p.UserID, &p.Name, &service, &p.Location.City, &p.Location.Region, &p.Location.Properties,
		&p.ClientTypes, &status, &p.SubmissionTime, &p.ApprovalTime, &p.ReputationPoints,
	)
	if err != nil {
		return nil, err
	}
	p.Service = models.ServiceType(service)
	p.Status = models.ProviderStatus(status)
	return &p, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Upsert files or refiles an application. A refiled application goes back
// to pending and keeps its reputation.
func (r *providerRepo) Upsert(ctx context.Context, p *models.Provider) (*models.Provider, error) {
	query := `
		INSERT INTO providers (user_id, name, service, city, region, properties, client_types, status, submission_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE
		SET name = EXCLUDED.name,
			service = EXCLUDED.service,
			city = EXCLUDED.city,
			region = EXCLUDED.region,
			properties = EXCLUDED.properties,
			client_types = EXCLUDED.client_types,
			status = EXCLUDED.status,
			submission_time = EXCLUDED.submission_time,
			approval_time = NULL
		RETURNING ` + providerColumns
	out, err := scanProvider(r.db.QueryRow(ctx, query,
		p.UserID, p.Name, string(p.Service), p.Location.City, p.Location.Region,
		orEmpty(p.Location.Properties), orEmpty(p.ClientTypes), string(p.Status), p.SubmissionTime,
	))
	if err != nil {
		r.log.Error("failed to upsert provider", logger.String("user_id", p.UserID), logger.Error(err))
		return nil, mapErr(err)
	}
	return out, nil
}

func (r *providerRepo) Get(ctx context.Context, userID string) (*models.Provider, error) {
	p, err := scanProvider(r.db.QueryRow(ctx, `SELECT `+providerColumns+` FROM providers WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		r.log.Error("failed to get provider", logger.String("user_id", userID), logger.Error(err))
		return nil, err
	}
	return p, nil
}

func (r *providerRepo) List(ctx context.Context, status models.ProviderStatus) ([]*models.Provider, error) {
	query := `SELECT ` + providerColumns + ` FROM providers WHERE ($1 = '' OR status = $1) ORDER BY submission_time DESC`
	rows, err := r.db.Query(ctx, query, string(status))
	if err != nil {
		r.log.Error("failed to list providers", logger.Error(err))
		return nil, err
	}
	return collectProviders(rows)
}

func (r *providerRepo) Search(ctx context.Context, f storage.ProviderFilter) ([]*models.Provider, error) {
	query := `
		SELECT ` + providerColumns + `
		FROM providers
		WHERE status = 'approved'
		  AND service = $1
		  AND city = $2
		  AND ($3 = '' OR region = $3)
		  AND ($4 = '' OR properties @> ARRAY[$4::text])
		ORDER BY reputation_points DESC, name ASC
	`
	rows, err := r.db.Query(ctx, query, string(f.Service), f.City, f.Region, f.Property)
	if err != nil {
		r.log.Error("failed to search providers",
			logger.String("service", string(f.Service)), logger.String("city", f.City), logger.Error(err))
		return nil, err
	}
	return collectProviders(rows)
}

func collectProviders(rows pgx.Rows) ([]*models.Provider, error) {
	defer rows.Close()

	var providers []*models.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

func (r *providerRepo) SetStatus(ctx context.Context, userID string, status models.ProviderStatus, at time.Time) (*models.Provider, error) {
	query := `
		UPDATE providers
		SET status = $2,
			approval_time = CASE WHEN $2 = 'approved' THEN $3 ELSE approval_time END
		WHERE user_id = $1
		RETURNING ` + providerColumns
	p, err := scanProvider(r.db.QueryRow(ctx, query, userID, string(status), at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		r.log.Error("failed to set provider status", logger.String("user_id", userID), logger.Error(err))
		return nil, err
	}
	return p, nil
}
