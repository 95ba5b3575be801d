package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Record is the single table the SQL backends keep documents in.
type Record struct {
	Collection string         `gorm:"primaryKey;size:64"`
	ID         string         `gorm:"primaryKey;size:128"`
	Data       datatypes.JSON `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Record) TableName() string {
	return "kb_records"
}

// GormBackend stores documents in a relational database through gorm.
type GormBackend struct {
	db *gorm.DB
}

// OpenGorm connects to postgres or sqlite and migrates the record table.
// For sqlite the dsn is a file path or ":memory:".
func OpenGorm(driver, dsn string) (*GormBackend, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if driver == "sqlite" {
		// one connection keeps ":memory:" databases shared and serializes writers
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return NewGormBackend(db)
}

func NewGormBackend(db *gorm.DB) (*GormBackend, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", Record{}.TableName(), err)
	}
	slog.Info("Connected to database", "dialect", db.Dialector.Name())
	return &GormBackend{db: db}, nil
}

func mapGormErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrExists
	}
	return err
}

func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

func (g *GormBackend) Get(ctx context.Context, collection, id string) ([]byte, error) {
	var rec Record
	err := g.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		First(&rec).Error
	if err != nil {
		return nil, mapGormErr(err)
	}
	return []byte(rec.Data), nil
}

func (g *GormBackend) Scan(ctx context.Context, collection, prefix string) ([][]byte, error) {
	var recs []Record
	query := g.db.WithContext(ctx).Where("collection = ?", collection)
	if prefix != "" {
		query = query.Where(`id LIKE ? ESCAPE '\'`, likePrefix(prefix))
	}
	if err := query.Order("id asc").Find(&recs).Error; err != nil {
		return nil, mapGormErr(err)
	}
	out := make([][]byte, 0, len(recs))
	for _, rec := range recs {
		out = append(out, []byte(rec.Data))
	}
	return out, nil
}

func (g *GormBackend) Put(ctx context.Context, collection, id string, data []byte) error {
	rec := Record{Collection: collection, ID: id, Data: datatypes.JSON(copyBytes(data))}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&rec).Error
	return mapGormErr(err)
}

func (g *GormBackend) Insert(ctx context.Context, collection, id string, data []byte) error {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&Record{}).
			Where("collection = ? AND id = ?", collection, id).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrExists
		}
		return tx.Create(&Record{Collection: collection, ID: id, Data: datatypes.JSON(copyBytes(data))}).Error
	})
	return mapGormErr(err)
}

func (g *GormBackend) Delete(ctx context.Context, collection, id string) error {
	res := g.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Delete(&Record{})
	if res.Error != nil {
		return mapGormErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *GormBackend) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
