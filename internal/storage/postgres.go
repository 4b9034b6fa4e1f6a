package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS image_analyses (
	id           TEXT PRIMARY KEY,
	image_name   TEXT NOT NULL,
	image_hash   TEXT NOT NULL DEFAULT '',
	total_people INTEGER NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS persons (
	analysis_id TEXT NOT NULL REFERENCES image_analyses(id) ON DELETE CASCADE,
	person_id   TEXT NOT NULL,
	description TEXT NOT NULL,
	position    INTEGER NOT NULL,
	PRIMARY KEY (analysis_id, person_id)
);
CREATE TABLE IF NOT EXISTS person_equipment (
	analysis_id TEXT NOT NULL,
	person_id   TEXT NOT NULL,
	equipment   TEXT NOT NULL,
	worn        BOOLEAN NOT NULL,
	probability DOUBLE PRECISION NOT NULL,
	color       TEXT NOT NULL,
	box_left    DOUBLE PRECISION,
	box_top     DOUBLE PRECISION,
	box_width   DOUBLE PRECISION,
	box_height  DOUBLE PRECISION,
	PRIMARY KEY (analysis_id, person_id, equipment),
	FOREIGN KEY (analysis_id, person_id) REFERENCES persons(analysis_id, person_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_image_analyses_created_at ON image_analyses (created_at DESC);
`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connectionString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Save(ctx context.Context, analysis *models.Analysis) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO image_analyses (id, image_name, image_hash, total_people, created_at) VALUES ($1, $2, $3, $4, $5)`,
		analysis.ID, analysis.ImageName, analysis.ImageHash, analysis.TotalPeople, analysis.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}

	batch := &pgx.Batch{}
	for i, person := range analysis.People {
		batch.Queue(`INSERT INTO persons (analysis_id, person_id, description, position) VALUES ($1, $2, $3, $4)`,
			analysis.ID, person.ID, person.Description, i)
		for _, row := range flattenEquipment(person) {
			left, top, width, height := boxColumns(row.Box)
			batch.Queue(`INSERT INTO person_equipment
				(analysis_id, person_id, equipment, worn, probability, color, box_left, box_top, box_width, box_height)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				analysis.ID, row.PersonID, row.Equipment, row.Worn, row.Probability, row.Color, left, top, width, height)
		}
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert people: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit analysis: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*models.Analysis, error) {
	var a models.Analysis
	err := p.pool.QueryRow(ctx,
		`SELECT id, image_name, image_hash, total_people, created_at FROM image_analyses WHERE id = $1`, id).
		Scan(&a.ID, &a.ImageName, &a.ImageHash, &a.TotalPeople, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis: %w", err)
	}

	if err := p.loadPeople(ctx, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (p *PostgresStore) List(ctx context.Context, limit int) ([]models.Analysis, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, image_name, image_hash, total_people, created_at FROM image_analyses
		 ORDER BY created_at DESC, id DESC LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}

	var analyses []models.Analysis
	for rows.Next() {
		var a models.Analysis
		if err := rows.Scan(&a.ID, &a.ImageName, &a.ImageHash, &a.TotalPeople, &a.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		analyses = append(analyses, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}

	for i := range analyses {
		if err := p.loadPeople(ctx, &analyses[i]); err != nil {
			return nil, err
		}
	}
	return analyses, nil
}

func (p *PostgresStore) loadPeople(ctx context.Context, a *models.Analysis) error {
	rows, err := p.pool.Query(ctx,
		`SELECT person_id, description FROM persons WHERE analysis_id = $1 ORDER BY position`, a.ID)
	if err != nil {
		return fmt.Errorf("failed to query people: %w", err)
	}
	a.People = []models.PersonRecord{}
	for rows.Next() {
		var person models.PersonRecord
		if err := rows.Scan(&person.ID, &person.Description); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan person: %w", err)
		}
		a.People = append(a.People, person)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to query people: %w", err)
	}

	rows, err = p.pool.Query(ctx,
		`SELECT person_id, equipment, worn, probability, color, box_left, box_top, box_width, box_height
		 FROM person_equipment WHERE analysis_id = $1`, a.ID)
	if err != nil {
		return fmt.Errorf("failed to query equipment: %w", err)
	}
	defer rows.Close()

	var equipment []equipmentRow
	for rows.Next() {
		var row equipmentRow
		var left, top, width, height *float64
		if err := rows.Scan(&row.PersonID, &row.Equipment, &row.Worn, &row.Probability, &row.Color,
			&left, &top, &width, &height); err != nil {
			return fmt.Errorf("failed to scan equipment: %w", err)
		}
		row.Box = boxFromColumns(left, top, width, height)
		equipment = append(equipment, row)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to query equipment: %w", err)
	}

	attachEquipment(a.People, equipment)
	return nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
