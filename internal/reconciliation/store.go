package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

func (c *Credentials) url(scheme string) string {
	u := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

type Case struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
	Entry
	RecordedAt time.Time `json:"recorded_at"`
}

// Store records reconciliation cases for manual follow-up. It never touches orders.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, cred *Credentials) (*Store, error) {
	pool, err := pgxpool.New(ctx, cred.url("postgres"))
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) RunMigrations(cred *Credentials) error {
	m, err := migrate.New(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		cred.url("pgx5")+"&x-migrations-table=reconciliation_schema_migrations",
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	defer m.Close()

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}
	return nil
}

// Record stores e once per correlation id. It reports whether a new case was opened.
func (s *Store) Record(ctx context.Context, e Entry) (bool, error) {
	tag, err := s.pool.Exec(ctx, `INSERT INTO reconciliation_cases
		(order_id, correlation_id, buyer_id, payment_id, signature, amount, currency, cause, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (correlation_id) DO NOTHING`,
		e.OrderID, e.CorrelationID, e.BuyerID, e.PaymentID, e.Signature, e.Amount, e.Currency, e.Cause, e.OccurredAt)
	if err != nil {
		return false, fmt.Errorf("insert reconciliation case %s: %w", e.CorrelationID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListOpen(ctx context.Context, limit int) ([]Case, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, status, order_id, correlation_id, buyer_id, payment_id,
			signature, amount, currency, cause, occurred_at, recorded_at
		FROM reconciliation_cases WHERE status = 'open' ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query reconciliation cases: %w", err)
	}
	defer rows.Close()

	cases := []Case{}
	for rows.Next() {
		var c Case
		if err := rows.Scan(&c.ID, &c.Status, &c.OrderID, &c.CorrelationID, &c.BuyerID, &c.PaymentID,
			&c.Signature, &c.Amount, &c.Currency, &c.Cause, &c.OccurredAt, &c.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan reconciliation case: %w", err)
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

func (s *Store) Close() {
	s.pool.Close()
}
