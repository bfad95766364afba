package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"credit-risk/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPipelineCommands(t *testing.T) {
	if testing.Short() {
		t.Skip("trains every classifier")
	}
	t.Setenv(common.EnvConfigFile, "")
	t.Setenv(common.EnvTestSize, "0.25")
	home := t.TempDir()

	out, err := execute(t, "", "--home", home, "--log-level", "error", "sample", "--rows", "400", "--seed", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 400 rows")

	out, err = execute(t, "", "--home", home, "--log-level", "error", "clean")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleaned 400 rows")
	assert.FileExists(t, filepath.Join(home, common.DataDir, common.CleanedDatasetFile))

	out, err = execute(t, "", "--home", home, "--log-level", "error", "train", "--progress=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Best Model:")
	assert.FileExists(t, filepath.Join(home, common.ModelsDir, common.BestModelFile))

	out, err = execute(t, "", "--home", home, "--log-level", "error", "evaluate")
	require.NoError(t, err)
	assert.Contains(t, out, "Accuracy")
	assert.FileExists(t, filepath.Join(home, common.OutputsDir, common.ComparisonCSVFile))

	_, err = execute(t, "", "--home", home, "--log-level", "error", "importance")
	require.NoError(t, err)

	record := `{"NETMONTHLYINCOME": 18000, "AGE": 38, "Time_With_Curr_Empr": 4, "CC_utilization": 95,
		"PL_utilization": 88, "enq_L6m": 6, "tot_enq": 9, "num_deliq_12mts": 4, "max_delinquency_level": 4,
		"num_std": 5, "CC_Flag": 0, "PL_Flag": 0, "MARITALSTATUS": "Single", "EDUCATION": "SSC",
		"GENDER": "M", "Credit_Score": 570}`

	first, err := execute(t, record, "--home", home, "--log-level", "error", "predict")
	require.NoError(t, err)
	assert.Regexp(t, `^P[1-4]\n$`, first)

	second, err := execute(t, record, "--home", home, "--log-level", "error", "predict")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	out, err = execute(t, "", "--home", home, "--log-level", "error", "predict", "--sample")
	require.NoError(t, err)
	assert.Regexp(t, `^P[1-4]\n$`, out)

	out, err = execute(t, `{"AGE": `, "--home", home, "--log-level", "error", "predict", "--sample=false")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMalformedInput)
	assert.Empty(t, out)

	out, err = execute(t, "", "--home", home, "--log-level", "error", "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "BEST MODEL")
	assert.Contains(t, out, "*")
}

func TestPredictWithoutModel(t *testing.T) {
	t.Setenv(common.EnvConfigFile, "")
	home := t.TempDir()

	out, err := execute(t, `{"AGE": 38}`, "--home", home, "--log-level", "error", "predict", "--sample=false")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrModelNotFound)
	assert.Empty(t, out)
}

func TestPredictorCommand(t *testing.T) {
	cmd, err := predictorCommand("  python3   predict.py ")
	require.NoError(t, err)
	assert.Equal(t, []string{"python3", "predict.py"}, cmd)

	cmd, err = predictorCommand("")
	require.NoError(t, err)
	require.Len(t, cmd, 2)
	self, err := os.Executable()
	require.NoError(t, err)
	assert.Equal(t, self, cmd[0])
	assert.Equal(t, "predict", cmd[1])
}

func TestSetupLogging(t *testing.T) {
	testCases := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{name: "console", level: "info", format: "console"},
		{name: "json", level: "debug", format: "json"},
		{name: "upper case level", level: "WARN", format: ""},
		{name: "bad level", level: "loud", format: "console", wantErr: true},
		{name: "bad format", level: "info", format: "xml", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := setupLogging(tc.level, tc.format)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
