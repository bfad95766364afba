package dataset

import (
	"fmt"

	"credit-risk/internal/common"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Matrix is a fully numeric view of the cleaned dataset.
type Matrix struct {
	Columns  []string
	X        [][]float64
	Y        []int
	Encoders EncoderSet
	Target   *LabelEncoder
}

// LoadMatrix reads a cleaned dataset and encodes it for training.
func LoadMatrix(path string) (*Matrix, error) {
	df, err := ReadFrame(path)
	if err != nil {
		return nil, err
	}
	return Encode(df)
}

// Encode splits off the target column and label-encodes every string column.
// Encoders are fit on the full column.
func Encode(df dataframe.DataFrame) (*Matrix, error) {
	names := df.Names()

	targetIdx := -1
	for i, n := range names {
		if n == common.TargetColumn {
			targetIdx = i
			break
		}
	}
	if targetIdx < 0 {
		return nil, fmt.Errorf("%w: %s", common.ErrMissingColumns, common.TargetColumn)
	}

	rows := df.Nrow()
	m := &Matrix{
		X:        make([][]float64, rows),
		Encoders: make(EncoderSet),
	}
	for i := range m.X {
		m.X[i] = make([]float64, 0, len(names)-1)
	}

	for _, name := range names {
		if name == common.TargetColumn {
			continue
		}
		col := df.Col(name)
		m.Columns = append(m.Columns, name)

		if col.Type() == series.String {
			records := col.Records()
			enc := FitLabelEncoder(records)
			m.Encoders[name] = enc
			for i, r := range records {
				code, _ := enc.Index(r)
				m.X[i] = append(m.X[i], float64(code))
			}
			continue
		}

		for i, v := range col.Float() {
			m.X[i] = append(m.X[i], v)
		}
	}

	target := df.Col(common.TargetColumn).Records()
	m.Target = FitLabelEncoder(target)
	m.Y = make([]int, rows)
	for i, label := range target {
		m.Y[i], _ = m.Target.Index(label)
	}

	return m, nil
}
