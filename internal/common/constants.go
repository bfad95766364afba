package common

// Dataset columns
const (
	ColNetMonthlyIncome    = "NETMONTHLYINCOME"
	ColAge                 = "AGE"
	ColTimeWithCurrEmpr    = "Time_With_Curr_Empr"
	ColCCUtilization       = "CC_utilization"
	ColPLUtilization       = "PL_utilization"
	ColEnqL6m              = "enq_L6m"
	ColTotEnq              = "tot_enq"
	ColNumDeliq12mts       = "num_deliq_12mts"
	ColMaxDelinquencyLevel = "max_delinquency_level"
	ColNumStd              = "num_std"
	ColCCFlag              = "CC_Flag"
	ColPLFlag              = "PL_Flag"
	ColMaritalStatus       = "MARITALSTATUS"
	ColEducation           = "EDUCATION"
	ColGender              = "GENDER"
	ColCreditScore         = "Credit_Score"

	TargetColumn = "Approved_Flag"
)

// SentinelValue marks "data not available" in the raw bureau export.
const SentinelValue = -99999

// FeatureColumns is the fixed 16-feature layout, in training order.
var FeatureColumns = []string{
	ColNetMonthlyIncome, ColAge, ColTimeWithCurrEmpr, ColCCUtilization, ColPLUtilization,
	ColEnqL6m, ColTotEnq, ColNumDeliq12mts, ColMaxDelinquencyLevel, ColNumStd,
	ColCCFlag, ColPLFlag, ColMaritalStatus, ColEducation, ColGender, ColCreditScore,
}

// NumericColumns are coerced to float at inference.
var NumericColumns = []string{
	ColNetMonthlyIncome, ColAge, ColTimeWithCurrEmpr, ColCCUtilization,
	ColPLUtilization, ColEnqL6m, ColTotEnq, ColNumDeliq12mts,
	ColMaxDelinquencyLevel, ColNumStd, ColCCFlag, ColPLFlag, ColCreditScore,
}

// CategoricalColumns are label encoded for training and one-hot encoded at inference.
var CategoricalColumns = []string{ColMaritalStatus, ColEducation, ColGender}

// SentinelColumns have SentinelValue replaced by the column median during cleaning.
var SentinelColumns = []string{
	ColCCUtilization, ColPLUtilization, ColEnqL6m, ColTotEnq, ColMaxDelinquencyLevel,
}

// ClassLabels maps class index to creditworthiness tier.
var ClassLabels = []string{"P1", "P2", "P3", "P4"}

// UnknownLabel is emitted for a class index outside ClassLabels.
const UnknownLabel = "Unknown"

// LabelForClass maps a predicted class index to its tier label.
func LabelForClass(class int) string {
	if class < 0 || class >= len(ClassLabels) {
		return UnknownLabel
	}
	return ClassLabels[class]
}

// AllowedColumns returns the cleaner's allow-list: features followed by the target.
func AllowedColumns() []string {
	cols := make([]string, 0, len(FeatureColumns)+1)
	cols = append(cols, FeatureColumns...)
	return append(cols, TargetColumn)
}

// IsCategorical reports whether col is one of CategoricalColumns.
func IsCategorical(col string) bool {
	for _, c := range CategoricalColumns {
		if c == col {
			return true
		}
	}
	return false
}

// Directory layout under the base directory
const (
	DataDir    = "data"
	ModelsDir  = "models"
	OutputsDir = "outputs"
	UtilsDir   = "utils"
)

// Artifact file names
const (
	RawDatasetFile     = "External_Cibil_Dataset.csv"
	CleanedDatasetFile = "cleaned_model_dataset.csv"
	BestModelFile      = "best_model.gob"
	ModelFileExt       = ".gob"
	LabelEncodersFile  = "label_encoders.json"
	TargetEncoderFile  = "target_encoder.json"
	SplitFile          = "train_test_split.gob"
	RegistryFile       = "registry.db"
	ComparisonCSVFile  = "model_comparison_results.csv"
	AccuracyChartFile  = "model_accuracy_comparison.png"
	ROCChartFile       = "roc_curve_comparison.png"
)

// Environment variable keys
const (
	EnvConfigFile        = "CONFIG_FILE"
	EnvHome              = "CREDITRISK_HOME"
	EnvLogLevel          = "LOG_LEVEL"
	EnvTestSize          = "TEST_SIZE"
	EnvRandomSeed        = "RANDOM_SEED"
	EnvWorkers           = "TRAIN_WORKERS"
	EnvIncludeTree       = "INCLUDE_DECISION_TREE"
	EnvPositiveClass     = "POSITIVE_CLASS"
	EnvServerPort        = "SERVER_PORT"
	EnvPredictTimeout    = "PREDICT_TIMEOUT"
	EnvPredictorCommand  = "PREDICTOR_COMMAND"
	EnvGeminiAPIKey      = "GEMINI_API_KEY"
	EnvRecommendModel    = "RECOMMEND_MODEL"
	EnvRecommendBaseURL  = "RECOMMEND_BASE_URL"
	EnvRecommendTimeout  = "RECOMMEND_TIMEOUT"
	EnvRecommendCacheTTL = "RECOMMEND_CACHE_TTL"
)

// Configuration defaults
const (
	DefaultTestSize          = 0.2
	DefaultRandomSeed        = 42
	DefaultPositiveClass     = 1
	DefaultServerPort        = 5000
	DefaultRecommendModel    = "gemini-2.0-flash"
	DefaultRecommendBaseURL  = "https://generativelanguage.googleapis.com"
	DefaultPredictTimeoutSec = 10
	DefaultRecommendTimeout  = 30
	DefaultCacheSize         = 512
)

// Validation constants
const (
	MinTestSize   = 0.05
	MaxTestSize   = 0.5
	MinServerPort = 1024
	MaxServerPort = 65535
	MaxWorkers    = 256
)
