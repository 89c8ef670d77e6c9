package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridebook/pkg/lifecycle"
	"ridebook/pkg/logger"
	"ridebook/pkg/models"
	"ridebook/pkg/orderid"
	"ridebook/storage"
)

type orderRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewOrderRepo(db *pgxpool.Pool, log logger.ILogger) storage.IOrderStorage {
	return &orderRepo{db: db, log: log}
}

const orderColumns = `id, customer_id, customer_name, provider_id, provider_name, service, city, region,
	details, price_details, status, chat_id, rejected_by, created_at,
	waiting_start_time, start_time, end_time, cancelled_at, waiting_duration, journey_duration,
	cancellation_reason, cancellation_fee, cancelled_by, user_review, notification_sent`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		o                   models.Order
		providerID, chatID  *string
		details, price, rev []byte
		service, status, by string
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.CustomerName, &providerID, &o.ProviderName, &service, &o.City, &o.Region,
		&details, &price, &status, &chatID, &o.RejectedBy, &o.CreatedAt,
		&o.WaitingStartTime, &o.StartTime, &o.EndTime, &o.CancelledAt, &o.WaitingDuration, &o.JourneyDuration,
		&o.CancellationReason, &o.CancellationFee, &by, &rev, &o.NotificationSent,
	)
	if err != nil {
		return nil, err
	}

	o.Service = models.ServiceType(service)
	o.Status = models.OrderStatus(status)
	o.CancelledBy = models.Party(by)
	if providerID != nil {
		o.ProviderID = *providerID
	}
	if chatID != nil {
		o.ChatID = *chatID
	}
	o.Details = json.RawMessage(details)
	if err := json.Unmarshal(price, &o.PriceDetails); err != nil {
		return nil, err
	}
	if rev != nil {
		var r models.Review
		if err := json.Unmarshal(rev, &r); err != nil {
			return nil, err
		}
		o.UserReview = &r
	}
	if o.RejectedBy == nil {
		o.RejectedBy = []string{}
	}
	return &o, nil
}

func (r *orderRepo) scanOrders(ctx context.Context, query string, args ...interface{}) ([]*models.Order, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func statusStrings(statuses []models.OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *orderRepo) NextCode(ctx context.Context) (string, error) {
	var n int64
	if err := r.db.QueryRow(ctx, "SELECT nextval('order_code_seq')").Scan(&n); err != nil {
		r.log.Error("failed to draw order code", logger.Error(err))
		return "", err
	}
	return orderid.Code(n), nil
}

func (r *orderRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	price, err := json.Marshal(order.PriceDetails)
	if err != nil {
		return nil, err
	}
	details := []byte(order.Details)
	if len(details) == 0 {
		details = []byte("{}")
	}
	if order.RejectedBy == nil {
		order.RejectedBy = []string{}
	}

	query := `
		INSERT INTO orders (id, customer_id, customer_name, provider_id, provider_name, service, city, region,
			details, price_details, status, rejected_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`
	err = r.db.QueryRow(ctx, query,
		order.ID,
		order.CustomerID,
		order.CustomerName,
		nullable(order.ProviderID),
		order.ProviderName,
		string(order.Service),
		order.City,
		order.Region,
		details,
		price,
		string(order.Status),
		order.RejectedBy,
	).Scan(&order.CreatedAt)

	if err != nil {
		err = mapErr(err)
		if !isExpected(err) {
			r.log.Error("failed to create order", logger.String("id", order.ID), logger.Error(err))
		}
		return nil, err
	}

	return order, nil
}

func (r *orderRepo) Get(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	o, err := scanOrder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		err = mapErr(err)
		if !isExpected(err) {
			r.log.Error("failed to get order by id", logger.String("id", id), logger.Error(err))
		}
		return nil, err
	}
	return o, nil
}

func (r *orderRepo) ListByCustomer(ctx context.Context, customerID string) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC`
	return r.scanOrders(ctx, query, customerID)
}

func (r *orderRepo) ListByProvider(ctx context.Context, providerID string, statuses []models.OrderStatus) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE provider_id = $1 AND status = ANY($2) ORDER BY created_at DESC`
	return r.scanOrders(ctx, query, providerID, statusStrings(statuses))
}

func (r *orderRepo) ListIncoming(ctx context.Context, providerID string, service models.ServiceType, city string) ([]*models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = 'waiting accept'
		  AND service = $2
		  AND city = $3
		  AND NOT ($1 = ANY(rejected_by))
		  AND (provider_id IS NULL OR provider_id = $1)
		  AND customer_id <> $1
		ORDER BY created_at ASC
	`
	return r.scanOrders(ctx, query, providerID, string(service), city)
}

func (r *orderRepo) ListReviewed(ctx context.Context) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_review IS NOT NULL ORDER BY end_time DESC`
	return r.scanOrders(ctx, query)
}

func (r *orderRepo) HasActive(ctx context.Context, customerID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM orders WHERE customer_id = $1 AND status = ANY($2))",
		customerID, statusStrings(models.ActiveStatuses),
	).Scan(&exists)
	return exists, err
}

// missOrConflict explains why a conditional write touched no row.
func missOrConflict(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, id string) error {
	var status string
	err := q.QueryRow(ctx, "SELECT status FROM orders WHERE id = $1", id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}
	return storage.ErrConflict
}

const transitionQuery = `
	UPDATE orders SET
		status              = $2,
		waiting_start_time  = COALESCE($3, waiting_start_time),
		start_time          = COALESCE($4, start_time),
		end_time            = COALESCE($5, end_time),
		cancelled_at        = COALESCE($6, cancelled_at),
		waiting_duration    = COALESCE($7, waiting_duration),
		journey_duration    = COALESCE($8, journey_duration),
		cancellation_reason = CASE WHEN $9::text = '' THEN cancellation_reason ELSE $9::text END,
		cancellation_fee    = COALESCE($10, cancellation_fee),
		cancelled_by        = CASE WHEN $11::text = '' THEN cancelled_by ELSE $11::text END
	WHERE id = $1 AND status = $12
	RETURNING ` + orderColumns

func transitionArgs(id string, p lifecycle.Patch) []interface{} {
	return []interface{}{
		id,
		string(p.Status),
		p.WaitingStartTime,
		p.StartTime,
		p.EndTime,
		p.CancelledAt,
		p.WaitingDuration,
		p.JourneyDuration,
		p.CancellationReason,
		p.CancellationFee,
		string(p.CancelledBy),
		string(p.Expected),
	}
}

func (r *orderRepo) Transition(ctx context.Context, id string, patch lifecycle.Patch) (*models.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, transitionQuery, transitionArgs(id, patch)...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, missOrConflict(ctx, r.db, id)
	}
	if err != nil {
		r.log.Error("failed to transition order", logger.String("id", id), logger.String("to", string(patch.Status)), logger.Error(err))
		return nil, err
	}
	return o, nil
}

func insertChat(ctx context.Context, tx pgx.Tx, chat *models.Chat) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO chats (id, order_id, user_id, provider_id, user_name, provider_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		chat.ID, chat.OrderID, chat.UserID, chat.ProviderID, chat.UserName, chat.ProviderName, chat.CreatedAt,
	)
	return mapErr(err)
}

func (r *orderRepo) Confirm(ctx context.Context, id string, patch lifecycle.Patch, chat *models.Chat) (*models.Order, error) {
	var out *models.Order
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		o, err := scanOrder(tx.QueryRow(ctx, transitionQuery, transitionArgs(id, patch)...))
		if errors.Is(err, pgx.ErrNoRows) {
			return missOrConflict(ctx, tx, id)
		}
		if err != nil {
			return err
		}
		if chat != nil && o.ChatID == "" {
			if err := insertChat(ctx, tx, chat); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, "UPDATE orders SET chat_id = $2 WHERE id = $1", id, chat.ID); err != nil {
				return err
			}
			o.ChatID = chat.ID
		}
		out = o
		return nil
	})
	if err != nil {
		err = mapErr(err)
		if !isExpected(err) {
			r.log.Error("failed to confirm order", logger.String("id", id), logger.Error(err))
		}
		return nil, err
	}
	return out, nil
}

func (r *orderRepo) Accept(ctx context.Context, id string, patch lifecycle.Patch, a storage.Assignment, chat *models.Chat) (*models.Order, error) {
	var out *models.Order
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		var (
			status     string
			providerID *string
			chatID     *string
			rejected   []string
		)
		err := tx.QueryRow(ctx,
			"SELECT status, provider_id, chat_id, rejected_by FROM orders WHERE id = $1 FOR UPDATE", id,
		).Scan(&status, &providerID, &chatID, &rejected)
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		if status != string(patch.Expected) {
			return storage.ErrConflict
		}
		if providerID != nil && *providerID != a.ProviderID {
			return storage.ErrConflict
		}
		for _, p := range rejected {
			if p == a.ProviderID {
				return storage.ErrConflict
			}
		}

		chatRef := chatID
		if chatRef == nil && chat != nil {
			if err := insertChat(ctx, tx, chat); err != nil {
				return err
			}
			chatRef = &chat.ID
		}

		o, err := scanOrder(tx.QueryRow(ctx, `
			UPDATE orders SET status = $2, provider_id = $3, provider_name = $4, chat_id = $5
			WHERE id = $1 AND status = $6
			RETURNING `+orderColumns,
			id, string(patch.Status), a.ProviderID, a.ProviderName, chatRef, string(patch.Expected),
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.ErrConflict
		}
		if err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		err = mapErr(err)
		if !isExpected(err) {
			r.log.Error("failed to accept order", logger.String("id", id), logger.String("provider_id", a.ProviderID), logger.Error(err))
		}
		return nil, err
	}
	return out, nil
}

func (r *orderRepo) Reject(ctx context.Context, id, providerID string) (*models.Order, error) {
	var out *models.Order
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		var (
			status   string
			reserved *string
		)
		err := tx.QueryRow(ctx,
			"SELECT status, provider_id FROM orders WHERE id = $1 FOR UPDATE", id,
		).Scan(&status, &reserved)
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		if status != string(models.StatusWaitingAccept) || (reserved != nil && *reserved != providerID) {
			return storage.ErrConflict
		}

		// A reserved order rejected by its provider goes back to the open
		// pool, without the chat opened for the reservation.
		release := reserved != nil
		if release {
			if _, err := tx.Exec(ctx, "DELETE FROM chats WHERE order_id = $1", id); err != nil {
				return err
			}
		}

		o, err := scanOrder(tx.QueryRow(ctx, `
			UPDATE orders SET
				rejected_by   = CASE WHEN $2 = ANY(rejected_by) THEN rejected_by ELSE array_append(rejected_by, $2) END,
				provider_id   = CASE WHEN $3::boolean THEN NULL ELSE provider_id END,
				provider_name = CASE WHEN $3::boolean THEN '' ELSE provider_name END,
				chat_id       = CASE WHEN $3::boolean THEN NULL ELSE chat_id END
			WHERE id = $1
			RETURNING `+orderColumns, id, providerID, release))
		if err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		err = mapErr(err)
		if !isExpected(err) {
			r.log.Error("failed to reject order", logger.String("id", id), logger.String("provider_id", providerID), logger.Error(err))
		}
		return nil, err
	}
	return out, nil
}

func (r *orderRepo) AttachReview(ctx context.Context, id string, review models.Review, grants []models.PointEntry, reputationFor string) (*models.Order, error) {
	body, err := json.Marshal(review)
	if err != nil {
		return nil, err
	}

	var out *models.Order
	err = withTx(ctx, r.db, func(tx pgx.Tx) error {
		o, err := scanOrder(tx.QueryRow(ctx, `
			UPDATE orders SET user_review = $2
			WHERE id = $1 AND status = 'completed' AND user_review IS NULL
			RETURNING `+orderColumns, id, body))
		if errors.Is(err, pgx.ErrNoRows) {
			return missOrConflict(ctx, tx, id)
		}
		if err != nil {
			return err
		}

		for i := range grants {
			if err := insertPoint(ctx, tx, &grants[i]); err != nil {
				return err
			}
		}
		if reputationFor != "" {
			if _, err := tx.Exec(ctx,
				"UPDATE providers SET reputation_points = reputation_points + 1 WHERE user_id = $1",
				reputationFor,
			); err != nil {
				return err
			}
		}
		out = o
		return nil
	})
	if err != nil {
		err = mapErr(err)
		if !isExpected(err) {
			r.log.Error("failed to attach review", logger.String("id", id), logger.Error(err))
		}
		return nil, err
	}
	return out, nil
}

func (r *orderRepo) FanOut(ctx context.Context, order *models.Order) ([]string, error) {
	query := `
		INSERT INTO provider_orders (order_id, provider_id)
		SELECT $1, p.user_id
		FROM providers p
		WHERE p.status = 'approved'
		  AND p.service = $2
		  AND p.city = $3
		  AND ($4::text = '' OR p.user_id = $4::text)
		  AND p.user_id <> $5
		ON CONFLICT DO NOTHING
		RETURNING provider_id
	`
	rows, err := r.db.Query(ctx, query, order.ID, string(order.Service), order.City, order.ProviderID, order.CustomerID)
	if err != nil {
		r.log.Error("failed to fan out order", logger.String("id", order.ID), logger.Error(err))
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		r.log.Error("failed to fan out order", logger.String("id", order.ID), logger.Error(err))
		return nil, err
	}
	return ids, nil
}

func (r *orderRepo) MarkNotified(ctx context.Context, orderID, providerID string) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			"UPDATE provider_orders SET notification_sent = TRUE WHERE order_id = $1 AND provider_id = $2",
			orderID, providerID,
		); err != nil {
			return err
		}
		res, err := tx.Exec(ctx, "UPDATE orders SET notification_sent = TRUE WHERE id = $1", orderID)
		if err != nil {
			return err
		}
		if res.RowsAffected() == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
}
