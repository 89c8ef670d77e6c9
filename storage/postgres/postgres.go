package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridebook/config"
	"ridebook/pkg/logger"
	"ridebook/storage"
)

type Store struct {
	pool *pgxpool.Pool
	log  logger.ILogger
}

func URL(cfg config.Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.PostgresUser,
		cfg.PostgresPassword,
		cfg.PostgresHost,
		cfg.PostgresPort,
		cfg.PostgresDB,
	)
}

func New(ctx context.Context, cfg config.Config, log logger.ILogger) (*Store, error) {
	url := URL(cfg)

	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		log.Error("error while parsing Postgres config", logger.Error(err))
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Error("failed to connect Postgres", logger.Error(err))
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Error("failed to ping Postgres", logger.Error(err))
		return nil, err
	}

	if err := Migrate(url, cfg.MigrationsPath, log); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("Postgres connected")

	return &Store{
		pool: pool,
		log:  log,
	}, nil
}

// Migrate applies every pending up migration found in dir.
func Migrate(url, dir string, log logger.ILogger) error {
	mPath := dir
	if !filepath.IsAbs(mPath) {
		cwd, _ := os.Getwd()
		mPath = filepath.Join(cwd, dir)
	}

	m, err := migrate.New("file://"+mPath, url)
	if err != nil {
		log.Error("migration init error", logger.String("path", mPath), logger.Error(err))
		return err
	}
	defer m.Close()

	if err = m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no migrations to apply")
			return nil
		}
		log.Error("migration up error", logger.Error(err))
		return err
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) GetPool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) User() storage.IUserStorage         { return NewUserRepo(s.pool, s.log) }
func (s *Store) Provider() storage.IProviderStorage { return NewProviderRepo(s.pool, s.log) }
func (s *Store) Order() storage.IOrderStorage       { return NewOrderRepo(s.pool, s.log) }
func (s *Store) Chat() storage.IChatStorage         { return NewChatRepo(s.pool, s.log) }
func (s *Store) Point() storage.IPointStorage       { return NewPointRepo(s.pool, s.log) }
func (s *Store) Template() storage.ITemplateStorage { return NewTemplateRepo(s.pool, s.log) }

// withTx runs fn in a transaction, committing on nil and rolling back on error.
func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const uniqueViolation = "23505"

// mapErr turns driver errors into storage sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if pgErr.ConstraintName == "uq_orders_active_customer" {
			return storage.ErrActiveOrder
		}
		return fmt.Errorf("%w: %s", storage.ErrConflict, pgErr.ConstraintName)
	}
	return err
}

// isExpected reports errors callers handle as outcomes rather than faults.
func isExpected(err error) bool {
	return errors.Is(err, storage.ErrNotFound) ||
		errors.Is(err, storage.ErrConflict) ||
		errors.Is(err, storage.ErrActiveOrder)
}
