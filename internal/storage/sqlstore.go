package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
)

// Dialect selects the database/sql driver used by SQLStore.
type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite3"
)

// created_at is stored as unix microseconds so both drivers scan it the same way.
var sqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS image_analyses (
		id           VARCHAR(64) NOT NULL PRIMARY KEY,
		image_name   VARCHAR(255) NOT NULL,
		image_hash   VARCHAR(64) NOT NULL DEFAULT '',
		total_people INTEGER NOT NULL,
		created_at   BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS persons (
		analysis_id VARCHAR(64) NOT NULL,
		person_id   VARCHAR(32) NOT NULL,
		description VARCHAR(255) NOT NULL,
		position    INTEGER NOT NULL,
		PRIMARY KEY (analysis_id, person_id)
	)`,
	`CREATE TABLE IF NOT EXISTS person_equipment (
		analysis_id VARCHAR(64) NOT NULL,
		person_id   VARCHAR(32) NOT NULL,
		equipment   VARCHAR(32) NOT NULL,
		worn        BOOLEAN NOT NULL,
		probability DOUBLE NOT NULL,
		color       VARCHAR(32) NOT NULL,
		box_left    DOUBLE NULL,
		box_top     DOUBLE NULL,
		box_width   DOUBLE NULL,
		box_height  DOUBLE NULL,
		PRIMARY KEY (analysis_id, person_id, equipment)
	)`,
}

// SQLStore is the database/sql adapter shared by MySQL and SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLStore(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dialect, err)
	}

	// One connection keeps an in-memory sqlite database alive and serialises writers.
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", dialect, err)
	}

	for _, stmt := range sqlSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &SQLStore{db: db, dialect: dialect}, nil
}

func (s *SQLStore) Save(ctx context.Context, analysis *models.Analysis) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO image_analyses (id, image_name, image_hash, total_people, created_at) VALUES (?, ?, ?, ?, ?)`,
		analysis.ID, analysis.ImageName, analysis.ImageHash, analysis.TotalPeople, analysis.CreatedAt.UnixMicro())
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}

	for i, person := range analysis.People {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO persons (analysis_id, person_id, description, position) VALUES (?, ?, ?, ?)`,
			analysis.ID, person.ID, person.Description, i)
		if err != nil {
			return fmt.Errorf("failed to insert person %s: %w", person.ID, err)
		}

		for _, row := range flattenEquipment(person) {
			left, top, width, height := boxColumns(row.Box)
			_, err = tx.ExecContext(ctx,
				`INSERT INTO person_equipment
				(analysis_id, person_id, equipment, worn, probability, color, box_left, box_top, box_width, box_height)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				analysis.ID, row.PersonID, row.Equipment, row.Worn, row.Probability, row.Color, left, top, width, height)
			if err != nil {
				return fmt.Errorf("failed to insert %s for person %s: %w", row.Equipment, person.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit analysis: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*models.Analysis, error) {
	var a models.Analysis
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, image_name, image_hash, total_people, created_at FROM image_analyses WHERE id = ?`, id).
		Scan(&a.ID, &a.ImageName, &a.ImageHash, &a.TotalPeople, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis: %w", err)
	}
	a.CreatedAt = time.UnixMicro(created).UTC()

	if err := s.loadPeople(ctx, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *SQLStore) List(ctx context.Context, limit int) ([]models.Analysis, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, image_name, image_hash, total_people, created_at FROM image_analyses
		 ORDER BY created_at DESC, id DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}

	var analyses []models.Analysis
	for rows.Next() {
		var a models.Analysis
		var created int64
		if err := rows.Scan(&a.ID, &a.ImageName, &a.ImageHash, &a.TotalPeople, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		a.CreatedAt = time.UnixMicro(created).UTC()
		analyses = append(analyses, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}

	for i := range analyses {
		if err := s.loadPeople(ctx, &analyses[i]); err != nil {
			return nil, err
		}
	}
	return analyses, nil
}

func (s *SQLStore) loadPeople(ctx context.Context, a *models.Analysis) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT person_id, description FROM persons WHERE analysis_id = ? ORDER BY position`, a.ID)
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

	rows, err = s.db.QueryContext(ctx,
		`SELECT person_id, equipment, worn, probability, color, box_left, box_top, box_width, box_height
		 FROM person_equipment WHERE analysis_id = ?`, a.ID)
	if err != nil {
		return fmt.Errorf("failed to query equipment: %w", err)
	}
	defer rows.Close()

	var equipment []equipmentRow
	for rows.Next() {
		var row equipmentRow
		var left, top, width, height sql.NullFloat64
		if err := rows.Scan(&row.PersonID, &row.Equipment, &row.Worn, &row.Probability, &row.Color,
			&left, &top, &width, &height); err != nil {
			return fmt.Errorf("failed to scan equipment: %w", err)
		}
		row.Box = boxFromColumns(nullable(left), nullable(top), nullable(width), nullable(height))
		equipment = append(equipment, row)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to query equipment: %w", err)
	}

	attachEquipment(a.People, equipment)
	return nil
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
