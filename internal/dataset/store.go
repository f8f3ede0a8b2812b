package dataset

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a listing id does not exist.
var ErrNotFound = errors.New("listing not found")

// Store serves listings from SQLite. Oracle-generated SELECT statements run
// against it directly; everything else goes through gorm.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the listing database at path.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open listing database: %w", err)
	}
	if err := db.AutoMigrate(&Listing{}); err != nil {
		return nil, fmt.Errorf("migrate listings: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenMemory opens an in-memory store, used by tests and the ingest dry run.
func OpenMemory() (*Store, error) {
	return Open(":memory:")
}

// Insert stores listings in batch.
func (s *Store) Insert(ctx context.Context, listings []Listing) error {
	if len(listings) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&listings).Error; err != nil {
		return fmt.Errorf("insert listings: %w", err)
	}
	return nil
}

// All returns every listing ordered by id.
func (s *Store) All(ctx context.Context) ([]Listing, error) {
	var listings []Listing
	if err := s.db.WithContext(ctx).Order("id").Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("load listings: %w", err)
	}
	return listings, nil
}

// ByID returns one listing.
func (s *Store) ByID(ctx context.Context, id int64) (*Listing, error) {
	var listing Listing
	err := s.db.WithContext(ctx).First(&listing, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load listing %d: %w", id, err)
	}
	return &listing, nil
}

// Count returns the number of stored listings.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Listing{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return n, nil
}

// Query executes an oracle-generated SELECT statement. Malformed statements
// degrade to an empty set rather than failing the turn; only SELECTs are
// accepted.
func (s *Store) Query(ctx context.Context, sql string) *ResultSet {
	sql = StripSQLFences(sql)
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sql)), "SELECT") {
		log.Printf("[dataset] rejecting non-SELECT statement: %s", truncate(sql, 120))
		return &ResultSet{}
	}

	var listings []Listing
	if err := s.db.WithContext(ctx).Raw(sql).Scan(&listings).Error; err != nil {
		log.Printf("[dataset] query failed: %v (sql: %s)", err, truncate(sql, 120))
		return &ResultSet{}
	}

	rows := make([]Row, len(listings))
	for i, li := range listings {
		rows[i] = Row{Listing: li}
	}
	return &ResultSet{Rows: rows}
}

// UniqueCategoryValues collects the distinct values of the categorical
// columns for prompt construction.
func (s *Store) UniqueCategoryValues(ctx context.Context) (CategoryValues, error) {
	var cv CategoryValues
	if err := s.db.WithContext(ctx).Model(&Listing{}).
		Distinct().Order("location").Pluck("location", &cv.Locations).Error; err != nil {
		return cv, fmt.Errorf("distinct locations: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&Listing{}).
		Distinct().Order("property_type").Pluck("property_type", &cv.PropertyTypes).Error; err != nil {
		return cv, fmt.Errorf("distinct property types: %w", err)
	}
	return cv, nil
}

// Ping checks the underlying connection, used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// StripSQLFences removes markdown code fences the query oracle sometimes
// wraps around its statement.
func StripSQLFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```sql")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
