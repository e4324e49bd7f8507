package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visaboard/visaboard/internal/aggregate"
	"github.com/visaboard/visaboard/pkg/types"
)

type staticProvider struct{ ds *types.Dataset }

func (p staticProvider) Load(ctx context.Context) (*types.Dataset, error) { return p.ds, nil }

func testEngine() *aggregate.Engine {
	recs := []types.VisaRecord{
		{Employer: "A", SumApproval: 100, SumDenial: 5, Zip: "27601"},
		{Employer: "A", SumApproval: 50, Zip: "27601"},
		{Employer: "B", SumApproval: 70, SumDenial: 10, Zip: "27705"},
	}
	ds := types.NewDataset([]string{"Employer", "Sum Approval", "Sum Denial", "Zip"}, recs,
		types.DatasetInfo{Source: "h1b.csv"})
	return aggregate.NewEngine(staticProvider{ds: ds})
}

func TestSummarize(t *testing.T) {
	var out bytes.Buffer
	err := summarize(context.Background(), &out, testEngine(), aggregate.MetricApproval, 60, 0)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "h1b.csv: 3 records, 2 employers, 2 zip codes")
	assert.Contains(t, text, "Sum Approval >= 60: 2 rows from 2 employers")

	lines := strings.Split(strings.TrimSpace(text), "\n")
	last := lines[len(lines)-2:]
	assert.Equal(t, []string{"A", "100", "1", "2"}, strings.Fields(last[0]))
	assert.Equal(t, []string{"B", "70", "1", "1"}, strings.Fields(last[1]))
}

func TestSummarize_OneLinePerEmployer(t *testing.T) {
	var out bytes.Buffer
	err := summarize(context.Background(), &out, testEngine(), aggregate.MetricApproval, 0, 0)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "3 rows from 2 employers")

	employerLines := 0
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 4 && fields[0] == "A" {
			employerLines++
			assert.Equal(t, []string{"A", "150", "2", "2"}, fields)
		}
	}
	assert.Equal(t, 1, employerLines)
}

func TestSummarize_TopCountsEmployers(t *testing.T) {
	var out bytes.Buffer
	err := summarize(context.Background(), &out, testEngine(), aggregate.MetricApproval, 0, 1)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "... 1 more employers")
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 {
			assert.NotEqual(t, "B", fields[0], "employer B should be cut by --top 1")
		}
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visaboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dataset:\n  path: from-file.csv\nlog:\n  level: warn\n"), 0644))

	configFile, datasetPath, logLevel = path, "", ""
	defer func() { configFile, datasetPath, logLevel = "", "", "" }()

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-file.csv", cfg.Dataset.Path)
	assert.Equal(t, "warn", cfg.Log.Level)

	datasetPath = "from-flag.csv"
	cfg, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-flag.csv", cfg.Dataset.Path)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, out.String(), "visaboard version dev")
}
