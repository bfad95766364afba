// Package storage provides the run registry of the credit-risk pipeline.
// It uses BoltDB as the underlying storage engine to record training runs
// and the evaluations performed against them.
//
// Exactly one run is active at a time: the run whose models currently sit
// in the models directory.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"credit-risk/internal/common"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const (
	runsBucket        = "runs"        // Bucket name for training runs keyed by run ID
	evaluationsBucket = "evaluations" // Bucket name for evaluations keyed by "runID_timestamp"
)

var ErrRunNotFound = errors.New("run not found")

// ModelResult is the score of one classifier within a training run.
type ModelResult struct {
	Name     string  `json:"name"`
	Kind     string  `json:"kind"`
	Accuracy float64 `json:"accuracy"`
	Path     string  `json:"path"`
}

// Run records one training pass over a cleaned dataset.
type Run struct {
	ID           string        `json:"id"`
	CreatedAt    time.Time     `json:"created_at"`
	Dataset      string        `json:"dataset"`
	Rows         int           `json:"rows"`
	TestSize     float64       `json:"test_size"`
	Seed         int64         `json:"seed"`
	Models       []ModelResult `json:"models"`
	BestModel    string        `json:"best_model"`
	BestAccuracy float64       `json:"best_accuracy"`
	Duration     time.Duration `json:"duration"`
	Active       bool          `json:"active"`
}

// Store provides persistent storage for pipeline runs using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New opens (or creates) the registry database inside dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}
	dbPath := filepath.Join(dir, common.RegistryFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(evaluationsBucket)); err != nil {
			return fmt.Errorf("create evaluations bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// SaveRun stores run, assigning an ID and creation time when missing.
// The stored copy is returned.
func (s *Store) SaveRun(run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return putRun(tx.Bucket([]byte(runsBucket)), run)
	})
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

func (s *Store) GetRun(id string) (Run, error) {
	var run Run
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(runsBucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return json.Unmarshal(data, &run)
	})
	return run, err
}

// ListRuns returns every run, newest first.
func (s *Store) ListRuns() ([]Run, error) {
	var runs []Run

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).ForEach(func(k, v []byte) error {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return nil // Skip malformed records
			}
			runs = append(runs, run)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

// ActivateRun marks id as the active run and deactivates every other run.
func (s *Store) ActivateRun(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}

		var runs []Run
		err := b.ForEach(func(k, v []byte) error {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("unmarshal run %s: %w", k, err)
			}
			runs = append(runs, run)
			return nil
		})
		if err != nil {
			return err
		}

		// puts happen after the scan; bbolt forbids mutating during ForEach
		for _, run := range runs {
			active := run.ID == id
			if run.Active == active {
				continue
			}
			run.Active = active
			if err := putRun(b, run); err != nil {
				return err
			}
		}
		return nil
	})
}

// ActiveRun returns the active run, or ErrRunNotFound when none is active.
func (s *Store) ActiveRun() (Run, error) {
	runs, err := s.ListRuns()
	if err != nil {
		return Run{}, err
	}
	for _, run := range runs {
		if run.Active {
			return run, nil
		}
	}
	return Run{}, fmt.Errorf("%w: no active run", ErrRunNotFound)
}

func putRun(b *bbolt.Bucket, run Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	return b.Put([]byte(run.ID), data)
}
