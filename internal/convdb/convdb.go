// Package convdb persists conformance-run history for the scenarios named
// in spec.md §8 (SPEC_FULL.md §4.11): a pure-Go sqlite connection via
// glebarez/sqlite (no cgo, matching the teacher's own preference over
// mattn/go-sqlite3) storing one Run per invocation and one Case per scenario
// result within that run. Grounded on db/sqlite.go's Connect/Migrate pair and
// models.Session's gorm-model shape; this package is deliberately outside
// the CORE (spec.md §1 names "the conformance test driver" as an external
// collaborator) and only imports core packages the same way any embedder
// would.
package convdb

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Run is one invocation of the conformance driver.
type Run struct {
	ID        uint `gorm:"primaryKey"`
	StartedAt time.Time
	Total     int
	Passed    int
	Failed    int
}

// Case is the pass/fail outcome of one named scenario within a Run.
type Case struct {
	ID       uint `gorm:"primaryKey"`
	RunID    uint `gorm:"index"`
	Name     string `gorm:"type:varchar(255);index"`
	Passed   bool
	Message  string         `gorm:"type:text"`
	Detail   datatypes.JSON `gorm:"type:jsonb"`
	Duration time.Duration
}

// DB wraps the underlying gorm connection with the two operations
// cmd/xpconform needs: recording a run and querying history.
type DB struct {
	gormDB *gorm.DB
}

// Connect opens (creating if absent) the sqlite database at path and runs
// migrations, mirroring db/sqlite.go's Connect contract adapted to the
// glebarez pure-Go driver.
func Connect(path string, debug bool) (*DB, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("convdb: create directory: %w", err)
			}
		}
	}

	cfg := &gorm.Config{}
	if debug {
		cfg.Logger = logger.Default.LogMode(logger.Info)
	}

	gdb, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("convdb: connect: %w", err)
	}
	if err := gdb.AutoMigrate(&Run{}, &Case{}); err != nil {
		return nil, fmt.Errorf("convdb: migrate: %w", err)
	}
	return &DB{gormDB: gdb}, nil
}

// Close releases the underlying sql.DB connection.
func (db *DB) Close() error {
	sqlDB, err := db.gormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordRun persists one conformance run and its per-scenario cases inside a
// single transaction, so a crash mid-run never leaves a half-written Run.
func (db *DB) RecordRun(startedAt time.Time, cases []Case) (*Run, error) {
	run := &Run{StartedAt: startedAt}
	for _, c := range cases {
		run.Total++
		if c.Passed {
			run.Passed++
		} else {
			run.Failed++
		}
	}

	err := db.gormDB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return err
		}
		for i := range cases {
			cases[i].RunID = run.ID
		}
		if len(cases) > 0 {
			if err := tx.Create(&cases).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("convdb: record run: %w", err)
	}
	return run, nil
}

// History returns the most recent runs, most recent first, bounded to limit.
func (db *DB) History(limit int) ([]Run, error) {
	var runs []Run
	if err := db.gormDB.Order("id desc").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("convdb: history: %w", err)
	}
	return runs, nil
}

// CasesForRun returns every recorded Case belonging to runID.
func (db *DB) CasesForRun(runID uint) ([]Case, error) {
	var cases []Case
	if err := db.gormDB.Where("run_id = ?", runID).Find(&cases).Error; err != nil {
		return nil, fmt.Errorf("convdb: cases for run: %w", err)
	}
	return cases, nil
}
