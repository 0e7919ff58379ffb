//go:build !js && !wasm
// +build !js,!wasm

package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "beatlab.sqlite3"

var ErrNotFound = errors.New("beat not found")

// Store persists metadata for analyzed beats. The analysis core itself never
// touches it; only the server wires results through here.
type Store struct {
	DB *gorm.DB
	db *sql.DB
}

// Beat is one analyzed upload.
type Beat struct {
	ID                  string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title               string  `gorm:"index:idx_beat_title" json:"title"`
	Uploader            string  `gorm:"index:idx_beat_uploader" json:"uploader"`
	Filename            string  `json:"filename"`
	MimeType            string  `json:"mime_type"`
	SizeBytes           int64   `json:"size_bytes"`
	CompressedSizeBytes int64   `json:"compressed_size_bytes"`
	BPM                 int     `json:"bpm"`
	Key                 string  `json:"key"`
	Confidence          float64 `json:"confidence"`
	DurationSec         float64 `json:"duration_sec"`
	CreatedAt           time.Time
}

func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Beat{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &Store{DB: db, db: sqlDB}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveBeat registers an analyzed beat and returns its ID.
func (s *Store) SaveBeat(beat *Beat) (string, error) {
	if s == nil || s.DB == nil {
		return "", errors.New("catalog store is nil")
	}
	if beat.ID == "" {
		beat.ID = uuid.NewString()
	}
	if err := s.DB.Create(beat).Error; err != nil {
		return "", fmt.Errorf("creating beat: %w", err)
	}
	return beat.ID, nil
}

func (s *Store) GetBeatByID(id string) (*Beat, error) {
	var beat Beat
	err := s.DB.Where("id = ?", id).First(&beat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying beat: %w", err)
	}
	return &beat, nil
}

// ListBeats returns beats newest-first.
func (s *Store) ListBeats() ([]Beat, error) {
	var beats []Beat
	if err := s.DB.Order("created_at DESC").Find(&beats).Error; err != nil {
		return nil, fmt.Errorf("listing beats: %w", err)
	}
	return beats, nil
}

func (s *Store) DeleteBeatByID(id string) error {
	res := s.DB.Where("id = ?", id).Delete(&Beat{})
	if res.Error != nil {
		return fmt.Errorf("deleting beat: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Count() (int64, error) {
	var n int64
	if err := s.DB.Model(&Beat{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting beats: %w", err)
	}
	return n, nil
}
