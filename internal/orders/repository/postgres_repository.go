package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/firstcodebyte/artvista-canvas-commerce/internal/orders/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"
)

const orderColumns = `id, correlation_id, buyer_id, amount, currency,
	contact_name, contact_email, contact_phone,
	ship_street, ship_city, ship_state, ship_postal_code,
	payment_method, items, status, payment_id, payment_signature,
	error_code, error_description, error_source, error_step, error_reason,
	stale_at, created_at, updated_at`

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) InsertOrder(ctx context.Context, order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}

	now := time.Now().UTC()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.CreatedAt = now
	order.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO orders (id, correlation_id, buyer_id, amount, currency,
	              contact_name, contact_email, contact_phone,
	              ship_street, ship_city, ship_state, ship_postal_code,
	              payment_method, items, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)`

	_, insertErr := tx.ExecContext(ctx, query,
		order.ID,
		order.CorrelationID,
		order.BuyerID,
		order.Amount,
		order.Currency,
		order.Contact.Name,
		order.Contact.Email,
		order.Contact.Phone,
		order.Shipping.Street,
		order.Shipping.City,
		order.Shipping.State,
		order.Shipping.PostalCode,
		order.PaymentMethod,
		itemsJSON,
		order.Status,
		now)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateCorrelation
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}

	if err := r.writeOutbox(ctx, tx, order); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert order: %w", err)
	}
	return nil
}

func (r *Repository) UpdateOrder(ctx context.Context, id uuid.UUID, patch Patch) (*domain.Order, error) {
	var (
		code, description, source, step, reason *string
	)
	if f := patch.Failure; f != nil {
		code, description, source, step, reason = &f.Code, &f.Description, &f.Source, &f.Step, &f.Reason
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE orders SET
	              status = $2,
	              payment_id = COALESCE($3, payment_id),
	              payment_signature = COALESCE($4, payment_signature),
	              error_code = COALESCE($5, error_code),
	              error_description = COALESCE($6, error_description),
	              error_source = COALESCE($7, error_source),
	              error_step = COALESCE($8, error_step),
	              error_reason = COALESCE($9, error_reason),
	              updated_at = NOW()
	          WHERE id = $1 AND ($10::text = '' OR status = $10::text)
	          RETURNING ` + orderColumns

	order, err := scanOrder(tx.QueryRowContext(ctx, query,
		id,
		patch.Status,
		patch.PaymentID,
		patch.PaymentSignature,
		code, description, source, step, reason,
		string(patch.ExpectStatus)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.missOrConflict(ctx, tx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	if err := r.writeOutbox(ctx, tx, order); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update order: %w", err)
	}
	return order, nil
}

func (r *Repository) missOrConflict(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check order exists: %w", err)
	}
	if !exists {
		return ErrOrderNotFound
	}
	return ErrStatusConflict
}

func (r *Repository) writeOutbox(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	payload, err := eventPayload(order)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO order_outbox (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`,
		order.CorrelationID, eventTypeFor(order.Status), payload)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (r *Repository) FindByCorrelationID(ctx context.Context, correlationID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE correlation_id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, correlationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by correlation id: %w", err)
	}
	return order, nil
}

// QueryOrders returns one page of the buyer's orders, newest first, with the buyer's total order count.
func (r *Repository) QueryOrders(ctx context.Context, buyerID string, offset, limit int) ([]*domain.Order, int, error) {
	var (
		total  int
		orders []*domain.Order
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := r.db.QueryRowContext(gctx, `SELECT COUNT(*) FROM orders WHERE buyer_id = $1`, buyerID).Scan(&total)
		if err != nil {
			return fmt.Errorf("count orders: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		query := `SELECT ` + orderColumns + ` FROM orders
		          WHERE buyer_id = $1
		          ORDER BY created_at DESC, id
		          LIMIT $2 OFFSET $3`

		rows, err := r.db.QueryContext(gctx, query, buyerID, limit, offset)
		if err != nil {
			return fmt.Errorf("query orders by buyer id: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			order, err := scanOrder(rows)
			if err != nil {
				return fmt.Errorf("scan order row: %w", err)
			}
			orders = append(orders, order)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("row iteration error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *Repository) MarkStale(ctx context.Context, olderThan time.Time) ([]*domain.Order, error) {
	query := `UPDATE orders SET stale_at = NOW()
	          WHERE status = 'created' AND stale_at IS NULL AND created_at < $1
	          RETURNING ` + orderColumns

	rows, err := r.db.QueryContext(ctx, query, olderThan)
	if err != nil {
		return nil, fmt.Errorf("mark stale orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stale order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, aggregate_id, event_type, payload, created_at
		 FROM order_outbox WHERE processed_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var ev OutboxEvent
		if err := rows.Scan(&ev.ID, &ev.AggregateId, &ev.EventType, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE order_outbox SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event %d processed: %w", id, err)
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(s rowScanner) (*domain.Order, error) {
	var (
		order                                   domain.Order
		itemsJSON                               []byte
		paymentID, paymentSignature             sql.NullString
		code, description, source, step, reason sql.NullString
		staleAt                                 sql.NullTime
	)
	err := s.Scan(
		&order.ID,
		&order.CorrelationID,
		&order.BuyerID,
		&order.Amount,
		&order.Currency,
		&order.Contact.Name,
		&order.Contact.Email,
		&order.Contact.Phone,
		&order.Shipping.Street,
		&order.Shipping.City,
		&order.Shipping.State,
		&order.Shipping.PostalCode,
		&order.PaymentMethod,
		&itemsJSON,
		&order.Status,
		&paymentID,
		&paymentSignature,
		&code, &description, &source, &step, &reason,
		&staleAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if paymentID.Valid {
		order.PaymentID = &paymentID.String
	}
	if paymentSignature.Valid {
		order.PaymentSignature = &paymentSignature.String
	}
	if code.Valid {
		order.Failure = &domain.FailureDetails{
			Code:        code.String,
			Description: description.String,
			Source:      source.String,
			Step:        step.String,
			Reason:      reason.String,
		}
	}
	if staleAt.Valid {
		order.StaleAt = &staleAt.Time
	}
	return &order, nil
}
