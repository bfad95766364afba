package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// ModelScore is one row of an evaluation. AUC is nil when the model exposes
// no probabilities.
type ModelScore struct {
	Model    string   `json:"model"`
	Accuracy float64  `json:"accuracy"`
	AUC      *float64 `json:"auc,omitempty"`
}

// Evaluation records one comparison pass over the persisted models.
type Evaluation struct {
	RunID         string       `json:"run_id"`
	EvaluatedAt   time.Time    `json:"evaluated_at"`
	PositiveClass string       `json:"positive_class"`
	Scores        []ModelScore `json:"scores"`
}

// UnassignedRun groups evaluations made while no run was active.
const UnassignedRun = "unassigned"

// SaveEvaluation stores eval under "runID_timestamp" so that evaluations of
// one run are contiguous and time ordered.
func (s *Store) SaveEvaluation(eval Evaluation) error {
	if eval.RunID == "" {
		eval.RunID = UnassignedRun
	}
	if eval.EvaluatedAt.IsZero() {
		eval.EvaluatedAt = time.Now().UTC()
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(evaluationsBucket))

		data, err := json.Marshal(eval)
		if err != nil {
			return fmt.Errorf("marshal evaluation: %w", err)
		}

		key := fmt.Sprintf("%s_%020d", eval.RunID, eval.EvaluatedAt.UnixNano())
		return b.Put([]byte(key), data)
	})
}

// GetEvaluations returns the evaluations of runID, oldest first.
func (s *Store) GetEvaluations(runID string) ([]Evaluation, error) {
	if runID == "" {
		runID = UnassignedRun
	}
	var evals []Evaluation

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(evaluationsBucket)).Cursor()
		prefix := []byte(runID + "_")

		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var eval Evaluation
			if err := json.Unmarshal(v, &eval); err != nil {
				continue // Skip malformed records
			}
			evals = append(evals, eval)
		}
		return nil
	})

	return evals, err
}
