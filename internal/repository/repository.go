// Package repository provides the decision audit log persistence.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/parametric-rail/railpledge/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveDecision stores a decision record.
func (r *SQLRepository) SaveDecision(ctx context.Context, d *domain.Decision) error {
	if d == nil || d.ID == "" {
		return fmt.Errorf("%w: decision ID is required", ErrInvalidInput)
	}

	var payouts []byte
	if d.Payouts != nil {
		payouts, _ = json.Marshal(d.Payouts)
	}

	query := `
		INSERT INTO decisions (
			id, kind, fingerprint, tier, status,
			probability, payout, payouts, delay_minutes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		d.ID, string(d.Kind), d.Fingerprint, string(d.Tier), int(d.Status),
		d.Probability, d.Payout, string(payouts), d.DelayMinutes, d.CreatedAt,
	)
	return err
}

// GetDecision retrieves a decision by ID.
func (r *SQLRepository) GetDecision(ctx context.Context, id string) (*domain.Decision, error) {
	query := `
		SELECT id, kind, fingerprint, tier, status,
			   probability, payout, payouts, delay_minutes, created_at
		FROM decisions
		WHERE id = ?
	`

	d, err := r.scanDecision(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListDecisions returns the most recent decisions, newest first.
func (r *SQLRepository) ListDecisions(ctx context.Context, limit int) ([]*domain.Decision, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, kind, fingerprint, tier, status,
			   probability, payout, payouts, delay_minutes, created_at
		FROM decisions
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*domain.Decision
	for rows.Next() {
		d, err := r.scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLRepository) scanDecision(row rowScanner) (*domain.Decision, error) {
	var d domain.Decision
	var kind, tier, payouts string
	var status int

	err := row.Scan(
		&d.ID, &kind, &d.Fingerprint, &tier, &status,
		&d.Probability, &d.Payout, &payouts, &d.DelayMinutes, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Kind = domain.DecisionKind(kind)
	d.Tier = domain.Tier(tier)
	d.Status = domain.Status(status)
	if payouts != "" {
		if err := json.Unmarshal([]byte(payouts), &d.Payouts); err != nil {
			return nil, fmt.Errorf("decode payouts for decision %s: %w", d.ID, err)
		}
	}
	return &d, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, ... for postgres.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
