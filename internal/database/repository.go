package database

import (
	"context"
	"fmt"
	"time"

	"hirefire-scraper/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS candidates (
	id                TEXT PRIMARY KEY,
	account           TEXT NOT NULL,
	vacancy_name      TEXT NOT NULL,
	name              TEXT,
	phone             TEXT,
	age               TEXT,
	rank              TEXT,
	combat_experience TEXT,
	awol              TEXT,
	military_training TEXT,
	created_at        TEXT,
	source            TEXT,
	notified_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const insertCandidate = `
INSERT INTO candidates (id, account, vacancy_name, name, phone, age, rank,
	combat_experience, awol, military_training, created_at, source)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO NOTHING`

// Repository archives notified candidates in Postgres.
type Repository struct {
	db *pgxpool.Pool
}

func ConnectDB(ctx context.Context, connString string) (*Repository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour

	// Transaction-mode poolers do not keep prepared statements.
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	return &Repository{db: pool}, nil
}

func (r *Repository) Close() {
	if r.db != nil {
		r.db.Close()
	}
}

// EnsureSchema creates the candidates table when it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create candidates table: %w", err)
	}
	return nil
}

// SaveCandidates inserts candidates in one batch. Rows already present are
// left as they are. It returns the number of rows inserted.
func (r *Repository) SaveCandidates(ctx context.Context, candidates []models.Candidate) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, c := range candidates {
		batch.Queue(insertCandidate,
			c.ID, c.Account, c.VacancyName, c.Name, c.Phone, c.Age, c.Rank,
			c.CombatExperience, c.AWOL, c.MilitaryTraining, c.CreatedAt, c.Source)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range candidates {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("failed to save candidate: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// CountCandidates returns the number of archived candidates.
func (r *Repository) CountCandidates(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, "SELECT count(*) FROM candidates").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count candidates: %w", err)
	}
	return n, nil
}
