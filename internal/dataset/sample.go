package dataset

import (
	"fmt"
	"io"
	"math"
	"math/rand"

	"credit-risk/internal/common"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// SentinelRate is the fraction of rows that carry the sentinel in each
// imputed column of a generated sample.
const SentinelRate = 0.1

var (
	maritalLevels   = []string{"Married", "Single"}
	educationLevels = []string{"12TH", "GRADUATE", "OTHERS", "POST-GRADUATE", "PROFESSIONAL", "SSC", "UNDER GRADUATE"}
	genderLevels    = []string{"F", "M"}
)

// GenerateSample writes n rows of a synthetic raw bureau export to w. The
// output is a pure function of n and seed.
func GenerateSample(w io.Writer, n int, seed int64) error {
	if n < 1 {
		return fmt.Errorf("sample size must be positive, got %d", n)
	}

	rng := rand.New(rand.NewSource(seed))

	var (
		prospect    = make([]int, n)
		income      = make([]int, n)
		age         = make([]int, n)
		tenure      = make([]int, n)
		ccUtil      = make([]float64, n)
		plUtil      = make([]float64, n)
		enqL6m      = make([]int, n)
		totEnq      = make([]int, n)
		deliq       = make([]int, n)
		maxDeliq    = make([]int, n)
		numStd      = make([]int, n)
		ccFlag      = make([]int, n)
		plFlag      = make([]int, n)
		marital     = make([]string, n)
		education   = make([]string, n)
		gender      = make([]string, n)
		creditScore = make([]int, n)
		totalTL     = make([]int, n)
		target      = make([]string, n)
	)

	for i := 0; i < n; i++ {
		prospect[i] = i + 1
		age[i] = 21 + rng.Intn(45)
		income[i] = int(math.Round(math.Exp(9.6+0.6*rng.NormFloat64())/100) * 100)
		tenure[i] = rng.Intn(12 * (age[i] - 18))
		ccFlag[i] = boolInt(rng.Float64() < 0.4)
		plFlag[i] = boolInt(rng.Float64() < 0.3)
		ccUtil[i] = math.Round(rng.Float64()*1000) / 1000
		plUtil[i] = math.Round(rng.Float64()*1000) / 1000
		enqL6m[i] = rng.Intn(8)
		totEnq[i] = enqL6m[i] + rng.Intn(20)
		deliq[i] = poisson(rng, 0.4)
		maxDeliq[i] = 0
		if deliq[i] > 0 {
			maxDeliq[i] = 30 * (1 + rng.Intn(20))
		}
		numStd[i] = rng.Intn(60)
		marital[i] = maritalLevels[rng.Intn(len(maritalLevels))]
		education[i] = educationLevels[rng.Intn(len(educationLevels))]
		gender[i] = genderLevels[rng.Intn(len(genderLevels))]
		totalTL[i] = 1 + rng.Intn(30)

		risk := 0.9*float64(deliq[i]) +
			0.25*float64(enqL6m[i]) +
			1.2*ccUtil[i] +
			0.8*plUtil[i] -
			0.02*float64(numStd[i]) -
			0.3*math.Log10(float64(income[i])) +
			0.4*rng.NormFloat64()

		score := 720 - 45*risk
		creditScore[i] = int(math.Max(469, math.Min(811, math.Round(score+8*rng.NormFloat64()))))
		target[i] = tierForScore(creditScore[i])

		if rng.Float64() < SentinelRate {
			ccUtil[i] = common.SentinelValue
		}
		if rng.Float64() < SentinelRate {
			plUtil[i] = common.SentinelValue
		}
		if rng.Float64() < SentinelRate {
			enqL6m[i] = common.SentinelValue
		}
		if rng.Float64() < SentinelRate {
			totEnq[i] = common.SentinelValue
		}
		if rng.Float64() < SentinelRate {
			maxDeliq[i] = common.SentinelValue
		}
	}

	df := dataframe.New(
		series.New(prospect, series.Int, "PROSPECTID"),
		series.New(income, series.Int, common.ColNetMonthlyIncome),
		series.New(age, series.Int, " "+common.ColAge+" "),
		series.New(tenure, series.Int, common.ColTimeWithCurrEmpr),
		series.New(ccUtil, series.Float, common.ColCCUtilization),
		series.New(plUtil, series.Float, common.ColPLUtilization),
		series.New(enqL6m, series.Int, common.ColEnqL6m),
		series.New(totEnq, series.Int, common.ColTotEnq),
		series.New(totalTL, series.Int, "Total_TL"),
		series.New(deliq, series.Int, common.ColNumDeliq12mts),
		series.New(maxDeliq, series.Int, common.ColMaxDelinquencyLevel),
		series.New(numStd, series.Int, common.ColNumStd),
		series.New(ccFlag, series.Int, common.ColCCFlag),
		series.New(plFlag, series.Int, common.ColPLFlag),
		series.New(marital, series.String, common.ColMaritalStatus),
		series.New(education, series.String, common.ColEducation),
		series.New(gender, series.String, " "+common.ColGender),
		series.New(creditScore, series.Int, common.ColCreditScore),
		series.New(target, series.String, common.TargetColumn),
	)
	if df.Err != nil {
		return fmt.Errorf("failed to build sample frame: %w", df.Err)
	}

	if err := df.WriteCSV(w); err != nil {
		return fmt.Errorf("failed to write sample: %w", err)
	}
	return nil
}

func tierForScore(score int) string {
	switch {
	case score >= 700:
		return common.ClassLabels[0]
	case score >= 670:
		return common.ClassLabels[1]
	case score >= 650:
		return common.ClassLabels[2]
	default:
		return common.ClassLabels[3]
	}
}

func poisson(rng *rand.Rand, lambda float64) int {
	l := math.Exp(-lambda)
	k, p := 0, 1.0
	for {
		p *= rng.Float64()
		if p <= l {
			return k
		}
		k++
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
