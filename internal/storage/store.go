// Package storage persists analysis reports. Every adapter keeps the
// analysis, its people and their equipment verdicts together, and writes
// them atomically.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
)

type Store interface {
	Save(ctx context.Context, analysis *models.Analysis) error
	Get(ctx context.Context, id string) (*models.Analysis, error)
	// List returns the newest analyses first.
	List(ctx context.Context, limit int) ([]models.Analysis, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	ErrNotFound           = errors.New("analysis not found")
	ErrUnsupportedAdapter = errors.New("unsupported store adapter")
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// NewStore opens the adapter named by adapterType.
func NewStore(ctx context.Context, adapterType, connectionString, database string) (Store, error) {
	switch adapterType {
	case "", "memory":
		return NewMemoryStore(), nil
	case "postgres", "postgresql":
		return NewPostgresStore(ctx, connectionString)
	case "mysql":
		return NewSQLStore(ctx, DialectMySQL, connectionString)
	case "sqlite", "sqlite3":
		return NewSQLStore(ctx, DialectSQLite, connectionString)
	case "mongodb", "mongo":
		return NewMongoStore(ctx, connectionString, database)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAdapter, adapterType)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// equipmentRow is one verdict flattened for relational storage.
type equipmentRow struct {
	PersonID    string
	Equipment   string
	Worn        bool
	Probability float64
	Color       string
	Box         *models.BoundingBox
}

// flattenEquipment returns the verdicts of a person in class name order.
func flattenEquipment(person models.PersonRecord) []equipmentRow {
	names := make([]string, 0, len(person.Equipment))
	for name := range person.Equipment {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]equipmentRow, 0, len(names))
	for _, name := range names {
		v := person.Equipment[name]
		rows = append(rows, equipmentRow{
			PersonID:    person.ID,
			Equipment:   name,
			Worn:        v.Worn,
			Probability: v.Probability,
			Color:       v.Color,
			Box:         v.BoundingBox,
		})
	}
	return rows
}

// attachEquipment folds rows back into the people they belong to.
func attachEquipment(people []models.PersonRecord, rows []equipmentRow) {
	index := make(map[string]int, len(people))
	for i := range people {
		index[people[i].ID] = i
		if people[i].Equipment == nil {
			people[i].Equipment = make(map[string]models.EquipmentVerdict)
		}
	}

	for _, row := range rows {
		i, ok := index[row.PersonID]
		if !ok {
			continue
		}
		people[i].Equipment[row.Equipment] = models.EquipmentVerdict{
			Worn:        row.Worn,
			Probability: row.Probability,
			BoundingBox: row.Box,
			Color:       row.Color,
		}
	}
}

func boxFromColumns(left, top, width, height *float64) *models.BoundingBox {
	if left == nil || top == nil || width == nil || height == nil {
		return nil
	}
	return &models.BoundingBox{Left: *left, Top: *top, Width: *width, Height: *height}
}

func boxColumns(box *models.BoundingBox) (left, top, width, height *float64) {
	if box == nil {
		return nil, nil, nil, nil
	}
	return &box.Left, &box.Top, &box.Width, &box.Height
}
