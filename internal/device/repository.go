package device

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/ruuvi-bridge/internal/ruuvi"
)

// MappingRepository defines the interface for name mapping persistence.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type MappingRepository interface {
	// List retrieves all stored mappings ordered by name.
	List(ctx context.Context) ([]Mapping, error)

	// Create inserts a new mapping.
	// Returns ErrDuplicateMapping if the address or name is already stored.
	Create(ctx context.Context, m *Mapping) error
}

// SQLiteMappingRepository implements MappingRepository using SQLite.
type SQLiteMappingRepository struct {
	db *sql.DB
}

// NewSQLiteMappingRepository creates a new SQLite-backed mapping repository.
// The db parameter should be an open, migrated SQLite connection.
func NewSQLiteMappingRepository(db *sql.DB) *SQLiteMappingRepository {
	return &SQLiteMappingRepository{db: db}
}

// List retrieves all stored mappings ordered by name.
func (r *SQLiteMappingRepository) List(ctx context.Context) ([]Mapping, error) {
	query := `
		SELECT address, name, created_at
		FROM name_mappings
		ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying name mappings: %w", err)
	}
	defer rows.Close()

	var mappings []Mapping
	for rows.Next() {
		var (
			addressText string
			createdAt   string
			m           Mapping
		)
		if err := rows.Scan(&addressText, &m.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning name mapping: %w", err)
		}

		m.Address, err = ruuvi.ParseAddress(addressText)
		if err != nil {
			return nil, fmt.Errorf("stored mapping %q: %w", m.Name, err)
		}
		if m.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at for %q: %w", m.Name, err)
		}

		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating name mappings: %w", err)
	}

	return mappings, nil
}

// Create inserts a new mapping. CreatedAt is set when zero.
func (r *SQLiteMappingRepository) Create(ctx context.Context, m *Mapping) error {
	name := strings.TrimSpace(m.Name)
	if name == "" {
		return fmt.Errorf("%w: empty label for %s", ErrInvalidMapping, m.Address)
	}
	m.Name = name

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO name_mappings (address, name, created_at)
		VALUES (?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		m.Address.String(),
		m.Name,
		m.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s or %q already stored", ErrDuplicateMapping, m.Address, m.Name)
		}
		return fmt.Errorf("inserting name mapping: %w", err)
	}

	return nil
}

// LoadMappings adds every stored mapping to the name table.
//
// A mapping the table rejects is logged and skipped; loading continues with
// the rest. Mappings identical to one already in the table are skipped
// silently, since the same entry often lives in both config and database.
//
// Returns the number of mappings added.
func LoadMappings(ctx context.Context, repo MappingRepository, names *NameTable, logger Logger) (int, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	mappings, err := repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading name mappings: %w", err)
	}

	added := 0
	for _, m := range mappings {
		if label, ok := names.Label(m.Address); ok && label == m.Name {
			continue
		}
		if err := names.Add(m.Address, m.Name); err != nil {
			logger.Warn("stored name mapping rejected", "address", m.Address.String(), "name", m.Name, "error", err)
			continue
		}
		added++
	}
	return added, nil
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
