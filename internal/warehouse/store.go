package warehouse

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ironsheep/meme-etl/internal/table"
)

// Document is one warehouse row. Body holds the processed record as a JSON
// object.
type Document struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	LoadID    string    `gorm:"size:36;index;not null" json:"load_id"`
	ImagePath string    `gorm:"size:1024" json:"image_path"`
	Body      string    `gorm:"type:jsonb;not null" json:"-"`
}

// Store persists documents into named collections.
type Store interface {
	// Prepare creates the collection if it does not exist.
	Prepare(ctx context.Context, collection string) error

	// InsertBatch inserts docs atomically: all of them or none.
	InsertBatch(ctx context.Context, collection string, docs []Document) error

	// EnsureIndex creates an index on a body field if it does not exist.
	EnsureIndex(ctx context.Context, collection, field string) error
}

// Querier reads documents back out of a collection.
type Querier interface {
	Find(ctx context.Context, collection, field, value string, limit int) ([]Document, error)
	Counts(ctx context.Context, collection, field string) ([]table.Count, error)
	Ping(ctx context.Context) error
}

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidateCollection reports whether name can be used as a collection or
// indexed field name.
func ValidateCollection(name string) error {
	if len(name) > 63 || !identifier.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	}
	return nil
}

// maxFieldLength bounds body field names accepted by ValidateField.
const maxFieldLength = 255

// ValidateField reports whether name can be used as a body field in Find and
// Counts. Field names come from label headers, so any trimmed, printable
// text is accepted; the name only ever reaches Postgres as a bind parameter.
func ValidateField(name string) error {
	if name == "" || len(name) > maxFieldLength || name != strings.TrimSpace(name) || !utf8.ValidString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidField, name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: %q", ErrInvalidField, name)
		}
	}
	return nil
}

// GormStore is the Postgres Store and Querier. Each collection is a table of
// Documents with a JSONB body.
type GormStore struct {
	db *gorm.DB
}

// Open connects to the Postgres database at dsn.
func Open(dsn string) (*GormStore, error) {
	if dsn == "" {
		return nil, ErrMissingDSN
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect postgres database: %w", err)
	}
	return &GormStore{db: db}, nil
}

// NewGormStore wraps an existing connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Prepare(ctx context.Context, collection string) error {
	if err := ValidateCollection(collection); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Table(collection).AutoMigrate(&Document{}); err != nil {
		return fmt.Errorf("failed to migrate %s: %w", collection, err)
	}
	return nil
}

func (s *GormStore) InsertBatch(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Table(collection).Create(&docs).Error
	})
}

func (s *GormStore) EnsureIndex(ctx context.Context, collection, field string) error {
	if err := ValidateCollection(collection); err != nil {
		return err
	}
	if err := ValidateCollection(field); err != nil {
		return err
	}
	stmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s ((body->>'%s'))`, collection, field, collection, field)
	return s.db.WithContext(ctx).Exec(stmt).Error
}

// Find returns up to limit documents whose body field equals value, oldest
// first.
func (s *GormStore) Find(ctx context.Context, collection, field, value string, limit int) ([]Document, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Table(collection)
	if field != "" {
		if err := ValidateField(field); err != nil {
			return nil, err
		}
		q = q.Where("body->>? = ?", field, value)
	}
	var docs []Document
	if err := q.Order("id").Limit(limit).Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// Counts returns the frequency of each non-null value of a body field,
// most frequent first.
func (s *GormStore) Counts(ctx context.Context, collection, field string) ([]table.Count, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}
	if err := ValidateField(field); err != nil {
		return nil, err
	}
	var counts []table.Count
	err := s.db.WithContext(ctx).Table(collection).
		Select("body->>? AS value, count(*) AS count", field).
		Where("body->>? IS NOT NULL", field).
		Group("value").
		Order("count DESC, value").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}
