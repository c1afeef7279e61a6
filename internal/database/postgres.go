package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"go.uber.org/zap"

	"github.com/TemirB/ecommerce-orders/internal/domain"
)

const orderColumns = `id, user_id, product_id, quantity, payment_method, status, created_at, updated_at, processed_at`

// ordersTable must match the table created by migrations/000001.
const ordersTable = "orders"

type Repo struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Connect builds a pool with SQL tracing routed to logger and pings it.
func Connect(ctx context.Context, dsn string, logger *zap.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.ConnConfig.Tracer = &tracelog.TraceLog{
		Logger:   newZapTracer(logger),
		LogLevel: tracelog.LogLevelInfo,
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

func (r *Repo) Add(ctx context.Context, o *domain.Order) error {
	_, err := r.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, ordersTable, orderColumns),
		o.ID(), o.UserID(), o.ProductID(), o.Quantity(), o.PaymentMethod().String(),
		o.Status().String(), o.CreatedAt(), o.UpdatedAt(), o.ProcessedAt(),
	)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", o.ID(), err)
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM %s WHERE id=$1
	`, orderColumns, ordersTable), id)

	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select order %s: %w", id, err)
	}
	return o, nil
}

// GetByUserID returns the user's orders newest first.
func (r *Repo) GetByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE user_id=$1
		ORDER BY created_at DESC
	`, orderColumns, ordersTable), userID)
	if err != nil {
		return nil, fmt.Errorf("select orders of %s: %w", userID, err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *Repo) Update(ctx context.Context, o *domain.Order) error {
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET
		  user_id=$2, product_id=$3, quantity=$4, payment_method=$5,
		  status=$6, updated_at=$7, processed_at=$8
		WHERE id=$1
	`, ordersTable),
		o.ID(), o.UserID(), o.ProductID(), o.Quantity(), o.PaymentMethod().String(),
		o.Status().String(), o.UpdatedAt(), o.ProcessedAt(),
	)
	if err != nil {
		return fmt.Errorf("update order %s: %w", o.ID(), err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RecentUserIDs lists the distinct owners of the latest orders, used to warm
// the read cache on startup.
func (r *Repo) RecentUserIDs(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT user_id FROM %s
		GROUP BY user_id
		ORDER BY MAX(created_at) DESC
		LIMIT $1
	`, ordersTable), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		id                uuid.UUID
		userID, productID string
		quantity          int
		method, status    string
		createdAt         time.Time
		updatedAt         *time.Time
		processedAt       *time.Time
	)
	if err := row.Scan(&id, &userID, &productID, &quantity, &method, &status, &createdAt, &updatedAt, &processedAt); err != nil {
		return nil, err
	}
	pm, err := domain.ParsePaymentMethod(method)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", id, err)
	}
	st, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", id, err)
	}
	return domain.RestoreOrder(id, userID, productID, quantity, pm, st, createdAt, updatedAt, processedAt), nil
}
