package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/launcher-backend/internal/config"
	"github.com/launcher-backend/internal/domain"
)

// Repository is the durable archive behind the Redis document store:
// periodic account snapshots and the launcher event log.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS account_archive (
			email VARCHAR(255) PRIMARY KEY,
			account_id VARCHAR(64) NOT NULL,
			username VARCHAR(255) NOT NULL,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			wave INT NOT NULL DEFAULT 5,
			owns_game BOOLEAN NOT NULL DEFAULT FALSE,
			document JSONB NOT NULL,
			created_at TIMESTAMP NOT NULL,
			archived_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS launcher_events (
			id BIGSERIAL PRIMARY KEY,
			event_type VARCHAR(64) NOT NULL,
			email VARCHAR(255),
			channel VARCHAR(255),
			metadata JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_account_archive_username ON account_archive(username)`,
		`CREATE INDEX IF NOT EXISTS idx_launcher_events_type ON launcher_events(event_type, created_at DESC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// UpsertAccount stores an account snapshot, replacing any prior one
// for the same email.
func (r *Repository) UpsertAccount(ctx context.Context, account domain.Account) error {
	document, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("marshaling account document: %w", err)
	}

	query := `
		INSERT INTO account_archive (email, account_id, username, is_admin, wave, owns_game, document, created_at, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (email)
		DO UPDATE SET username = $3, is_admin = $4, wave = $5, owns_game = $6, document = $7, archived_at = $9
	`
	_, err = r.pool.Exec(ctx, query,
		account.Email,
		account.ID,
		account.Username,
		account.IsAdmin,
		account.Wave,
		account.OwnsGame,
		document,
		account.CreatedAt,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("upserting account snapshot: %w", err)
	}
	return nil
}

// BatchUpsertAccounts stores multiple account snapshots efficiently
func (r *Repository) BatchUpsertAccounts(ctx context.Context, accounts []domain.Account) error {
	if len(accounts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO account_archive (email, account_id, username, is_admin, wave, owns_game, document, created_at, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (email)
		DO UPDATE SET username = $3, is_admin = $4, wave = $5, owns_game = $6, document = $7, archived_at = $9
	`
	now := time.Now()

	for _, account := range accounts {
		document, err := json.Marshal(account)
		if err != nil {
			return fmt.Errorf("marshaling account document: %w", err)
		}
		batch.Queue(query,
			account.Email,
			account.ID,
			account.Username,
			account.IsAdmin,
			account.Wave,
			account.OwnsGame,
			document,
			account.CreatedAt,
			now,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range accounts {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch upserting accounts: %w", err)
		}
	}
	return nil
}

// ListAccounts returns every archived account document
func (r *Repository) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	query := `SELECT document FROM account_archive ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing archived accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("scanning account snapshot: %w", err)
		}
		var account domain.Account
		if err := json.Unmarshal(document, &account); err != nil {
			return nil, fmt.Errorf("decoding account snapshot: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// CountAccounts returns the number of archived accounts
func (r *Repository) CountAccounts(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM account_archive`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting archived accounts: %w", err)
	}
	return count, nil
}

// RecordEvent appends a launcher event to the durable log
func (r *Repository) RecordEvent(ctx context.Context, event domain.Event) error {
	var metadataJSON []byte
	var err error
	if event.Metadata != nil {
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata: %w", err)
		}
	}

	query := `
		INSERT INTO launcher_events (event_type, email, channel, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.pool.Exec(ctx, query,
		event.Type,
		event.Email,
		event.Channel,
		metadataJSON,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("recording event: %w", err)
	}
	return nil
}
