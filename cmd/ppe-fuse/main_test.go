package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/analysis"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/engine"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/fusion"
	grpcserver "github.com/EricMurray-e-m-dev/SafetyMonkey/internal/grpc"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/logging"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/storage"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRun_PrintsReport(t *testing.T) {
	dir := t.TempDir()
	generic := writeFile(t, dir, "generic.json", `{
		"objects": [{"label": "person", "confidence": 0.97}, {"label": "person", "confidence": 0.91}],
		"tags": ["Hard Hat", "outdoor"],
		"dominantColors": ["Blue", "Grey"]
	}`)
	classifier := writeFile(t, dir, "classifier.json", `{
		"predictions": [
			{"className": "helmet", "probability": 0.3},
			{"className": "helmet", "probability": 0.995, "boundingBox": {"left": 0.4, "top": 0.1, "width": 0.1, "height": 0.1}}
		]
	}`)

	var out bytes.Buffer
	require.NoError(t, run([]string{"ppe-fuse", "-g", generic, "-c", classifier, "--compact"}, &out))

	var report models.ImageAnalysisReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 2, report.TotalPeople)
	helmet := report.People[1].Equipment["helmet"]
	assert.True(t, helmet.Worn)
	assert.Equal(t, 0.995, helmet.Probability)
	assert.Equal(t, "blue", helmet.Color)
	require.NotNil(t, helmet.BoundingBox)
	assert.Equal(t, 0.4, helmet.BoundingBox.Left)
}

func TestRun_ThresholdOverride(t *testing.T) {
	dir := t.TempDir()
	generic := writeFile(t, dir, "g.json", `{"objects": [{"label": "person", "confidence": 0.9}]}`)
	classifier := writeFile(t, dir, "c.json", `{"predictions": [{"className": "boots", "probability": 0.5}]}`)

	var out bytes.Buffer
	require.NoError(t, run([]string{"ppe-fuse", "-g", generic, "-c", classifier, "--worn", "0.4"}, &out))

	var report models.ImageAnalysisReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.True(t, report.People[0].Equipment["boots"].Worn)
}

func TestRun_MissingProbability(t *testing.T) {
	dir := t.TempDir()
	generic := writeFile(t, dir, "g.json", `{"objects": []}`)
	classifier := writeFile(t, dir, "c.json", `{"predictions": [{"className": "gloves"}]}`)

	err := run([]string{"ppe-fuse", "-g", generic, "-c", classifier}, &bytes.Buffer{})

	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestRun_RequiresInputs(t *testing.T) {
	err := run([]string{"ppe-fuse"}, &bytes.Buffer{})

	assert.Error(t, err)
}

func TestRun_Remote(t *testing.T) {
	rules, err := fusion.DefaultRuleset(fusion.DefaultThresholds())
	require.NoError(t, err)
	store := storage.NewMemoryStore()
	svc := analysis.NewService(engine.NewEngine(rules, logging.Nop()), store, logging.Nop())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpcserver.NewServer(svc, logging.Nop())
	go srv.Serve(lis)
	defer srv.GracefulStop()

	dir := t.TempDir()
	generic := writeFile(t, dir, "gate.json", `{"objects": [{"label": "person", "confidence": 0.9}]}`)
	classifier := writeFile(t, dir, "c.json", `{"predictions": [{"className": "vest", "probability": 0.999}]}`)

	var out bytes.Buffer
	require.NoError(t, run([]string{"ppe-fuse", "-g", generic, "-c", classifier, "-r", lis.Addr().String()}, &out))

	var got models.Analysis
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "gate.json", got.ImageName)
	assert.Equal(t, 1, got.TotalPeople)
	assert.True(t, got.People[0].Equipment["vest"].Worn)

	stored, err := store.Get(context.Background(), got.ID)
	require.NoError(t, err)
	assert.Equal(t, got.ImageAnalysisReport, stored.ImageAnalysisReport)
}

func TestRun_RemoteUnreachable(t *testing.T) {
	dir := t.TempDir()
	generic := writeFile(t, dir, "g.json", `{"objects": []}`)
	classifier := writeFile(t, dir, "c.json", `{"predictions": []}`)

	err := run([]string{"ppe-fuse", "-g", generic, "-c", classifier, "-r", "127.0.0.1:1", "--timeout", "1"}, &bytes.Buffer{})

	assert.Error(t, err)
}
