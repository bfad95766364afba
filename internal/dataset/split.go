package dataset

import (
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
)

// Split is a persisted train/test partition of an encoded dataset.
type Split struct {
	Columns  []string
	TestSize float64
	Seed     int64
	TrainX   [][]float64
	TrainY   []int
	TestX    [][]float64
	TestY    []int
}

// TrainTestSplit shuffles rows with a seeded source. The first
// ceil(n*testSize) permuted rows form the test set.
func TrainTestSplit(m *Matrix, testSize float64, seed int64) (*Split, error) {
	n := len(m.X)
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 rows to split, got %d", n)
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, fmt.Errorf("test size must be in (0, 1), got %f", testSize)
	}

	nTest := int(math.Ceil(float64(n) * testSize))
	if nTest >= n {
		nTest = n - 1
	}

	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)

	s := &Split{
		Columns:  append([]string(nil), m.Columns...),
		TestSize: testSize,
		Seed:     seed,
		TrainX:   make([][]float64, 0, n-nTest),
		TrainY:   make([]int, 0, n-nTest),
		TestX:    make([][]float64, 0, nTest),
		TestY:    make([]int, 0, nTest),
	}
	for i, idx := range perm {
		if i < nTest {
			s.TestX = append(s.TestX, m.X[idx])
			s.TestY = append(s.TestY, m.Y[idx])
		} else {
			s.TrainX = append(s.TrainX, m.X[idx])
			s.TrainY = append(s.TrainY, m.Y[idx])
		}
	}

	return s, nil
}

func (s *Split) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create split file: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(s); err != nil {
		return fmt.Errorf("failed to encode split: %w", err)
	}
	return f.Close()
}

func LoadSplit(path string) (*Split, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open split file: %w", err)
	}
	defer f.Close()

	var s Split
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode split: %w", err)
	}
	return &s, nil
}
