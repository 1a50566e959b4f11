// Package timescaledb stores segmented nights in TimescaleDB (PostgreSQL) through GORM.
package timescaledb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chrissnell/nocturne/internal/nights"
)

// Store holds the connection to a TimescaleDB night store
type Store struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// We declare the Tabler interface for purposes of customizing the table name in the DB
type Tabler interface {
	TableName() string
}

var (
	_ Tabler = nightRecord{}
	_ Tabler = fixRecord{}
)

// nightRecord is a row of the nights table
type nightRecord struct {
	ID          string      `gorm:"type:uuid;primaryKey"`
	Track       string      `gorm:"not null;uniqueIndex:idx_nights_track_boundary_start"`
	BoundaryKey time.Time   `gorm:"type:timestamptz;not null;uniqueIndex:idx_nights_track_boundary_start"`
	FirstFixAt  time.Time   `gorm:"type:timestamptz;not null;default:'epoch';uniqueIndex:idx_nights_track_boundary_start"`
	UTCOffset   int         `gorm:"not null"`
	FixCount    int         `gorm:"not null"`
	CreatedAt   time.Time   `gorm:"type:timestamptz"`
	Fixes       []fixRecord `gorm:"foreignKey:NightID;constraint:OnDelete:CASCADE"`
}

func (nightRecord) TableName() string {
	return "nights"
}

// fixRecord is a row of the night_fixes table. PostgreSQL keeps instants, not offsets,
// so the offset of every timestamp is stored beside it.
type fixRecord struct {
	NightID         string    `gorm:"type:uuid;primaryKey"`
	Seq             int       `gorm:"primaryKey"`
	Timestamp       time.Time `gorm:"type:timestamptz;not null;index"`
	UTCOffset       int       `gorm:"not null"`
	Latitude        float64   `gorm:"not null"`
	Longitude       float64   `gorm:"not null"`
	IsBeforeSunrise bool
	IsDaytime       bool
	IsAfterSunset   bool
}

func (fixRecord) TableName() string {
	return "night_fixes"
}

// New connects to TimescaleDB and creates the night tables
func New(ctx context.Context, connectionString string, zapLogger *zap.Logger) (*Store, error) {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	sugar := zapLogger.Sugar()

	// Create a logger for gorm
	dbLogger := logger.New(
		zap.NewStdLog(zapLogger),
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logger.Warn, // Log level
			IgnoreRecordNotFoundError: true,        // Ignore ErrRecordNotFound error for logger
			Colorful:                  false,
		},
	)

	sugar.Info("connecting to TimescaleDB...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("unable to create a TimescaleDB connection: %w", err)
	}

	sugar.Info("creating night tables...")
	if err := db.WithContext(ctx).AutoMigrate(&nightRecord{}, &fixRecord{}); err != nil {
		return nil, fmt.Errorf("could not create night tables: %w", err)
	}
	// earlier schemas keyed nights on track and boundary key alone
	if db.Migrator().HasIndex(&nightRecord{}, "idx_nights_track_boundary") {
		err := db.WithContext(ctx).Exec(`UPDATE nights SET first_fix_at = f.timestamp
			FROM night_fixes f WHERE f.night_id = nights.id AND f.seq = 0`).Error
		if err != nil {
			return nil, fmt.Errorf("could not backfill night start times: %w", err)
		}
		if err := db.Migrator().DropIndex(&nightRecord{}, "idx_nights_track_boundary"); err != nil {
			return nil, fmt.Errorf("could not drop the old night index: %w", err)
		}
	}

	return &Store{db: db, logger: sugar}, nil
}

// SaveNights stores nights under track in one transaction and returns their IDs.
// A night already stored for the same track, boundary key and first fix is replaced.
func (s *Store) SaveNights(ctx context.Context, track string, ns []nights.Night) ([]string, error) {
	if track == "" {
		return nil, nights.ErrEmptyTrack
	}

	ids := make([]string, 0, len(ns))
	now := time.Now().UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, n := range ns {
			rec := toRecord(uuid.NewString(), track, n, now)

			err := tx.Where("track = ? AND boundary_key = ? AND first_fix_at = ?", track, rec.BoundaryKey, rec.FirstFixAt).
				Delete(&nightRecord{}).Error
			if err != nil {
				return fmt.Errorf("could not replace night %s: %w", n.BoundaryKey.Format(time.RFC3339), err)
			}
			if err := tx.Create(&rec).Error; err != nil {
				return fmt.Errorf("could not store night %s: %w", n.BoundaryKey.Format(time.RFC3339), err)
			}
			ids = append(ids, rec.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debugf("saved %d nights for track %s", len(ids), track)
	return ids, nil
}

// ListNights returns the nights stored for track ordered by boundary key, then first fix
func (s *Store) ListNights(ctx context.Context, track string) ([]nights.StoredNight, error) {
	var recs []nightRecord
	err := s.db.WithContext(ctx).
		Preload("Fixes", func(db *gorm.DB) *gorm.DB { return db.Order("seq") }).
		Where("track = ?", track).
		Order("boundary_key, first_fix_at").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("error querying nights for track %s: %w", track, err)
	}

	stored := make([]nights.StoredNight, 0, len(recs))
	for _, rec := range recs {
		stored = append(stored, fromRecord(rec))
	}
	return stored, nil
}

// Ping checks that the database answers queries
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database connection: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func offsetOf(t time.Time) int {
	_, offset := t.Zone()
	return offset
}

func inOffset(t time.Time, offset int) time.Time {
	if offset == 0 {
		return t.UTC()
	}
	return t.In(time.FixedZone("", offset))
}

func toRecord(id, track string, n nights.Night, created time.Time) nightRecord {
	rec := nightRecord{
		ID:          id,
		Track:       track,
		BoundaryKey: n.BoundaryKey,
		FirstFixAt:  firstFixAt(n),
		UTCOffset:   offsetOf(n.BoundaryKey),
		FixCount:    len(n.Fixes),
		CreatedAt:   created,
		Fixes:       make([]fixRecord, 0, len(n.Fixes)),
	}
	for seq, f := range n.Fixes {
		rec.Fixes = append(rec.Fixes, fixRecord{
			NightID:         id,
			Seq:             seq,
			Timestamp:       f.Timestamp,
			UTCOffset:       offsetOf(f.Timestamp),
			Latitude:        f.Latitude,
			Longitude:       f.Longitude,
			IsBeforeSunrise: f.IsBeforeSunrise,
			IsDaytime:       f.IsDaytime,
			IsAfterSunset:   f.IsAfterSunset,
		})
	}
	return rec
}

// firstFixAt is the night's first fix, or the Unix epoch (the column default) for an empty night
func firstFixAt(n nights.Night) time.Time {
	start := n.Start()
	if start.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return start
}

func fromRecord(rec nightRecord) nights.StoredNight {
	key := inOffset(rec.BoundaryKey, rec.UTCOffset)
	sn := nights.StoredNight{
		ID:        rec.ID,
		Track:     rec.Track,
		CreatedAt: rec.CreatedAt,
		Night: nights.Night{
			BoundaryKey: key,
			Fixes:       make([]nights.ClassifiedFix, 0, len(rec.Fixes)),
		},
	}
	for _, f := range rec.Fixes {
		sn.Fixes = append(sn.Fixes, nights.ClassifiedFix{
			GeoFix: nights.GeoFix{
				Timestamp: inOffset(f.Timestamp, f.UTCOffset),
				Latitude:  f.Latitude,
				Longitude: f.Longitude,
			},
			IsBeforeSunrise: f.IsBeforeSunrise,
			IsDaytime:       f.IsDaytime,
			IsAfterSunset:   f.IsAfterSunset,
			BoundaryKey:     key,
		})
	}
	return sn
}
