package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmreport/services/report-svc/internal/domain"
)

const fixtures = "../internal/repository/testdata/fixtures.yaml"

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("FARMREPORT_METRICS_ENABLED", "false")
	t.Setenv("FARMREPORT_AUDIT_ENABLED", "false")
	t.Setenv("FARMREPORT_REPORT_TEMP_DIR", t.TempDir())
	t.Setenv("FARMREPORT_REPORT_LOCALE_TIMEZONE", "UTC")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--db-driver", "memory", "--fixtures", fixtures, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func TestExportCommand_WritesFile(t *testing.T) {
	setupEnv(t)
	outDir := t.TempDir()

	out, err := run(t, "export", "herd", "--format", "csv", "--out", outDir)
	require.NoError(t, err)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	name := entries[0].Name()
	assert.True(t, strings.HasSuffix(name, ".csv"))
	assert.Contains(t, out, filepath.Join(outDir, name))
	assert.Contains(t, out, "registros")

	data, err := os.ReadFile(filepath.Join(outDir, name))
	require.NoError(t, err)
	assert.Contains(t, string(data), ";")
}

func TestExportCommand_UnknownType(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "export", "crops", "--out", t.TempDir())
	assert.Error(t, err)
}

func TestExportCommand_InvalidFilter(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "export", "herd", "--filter", "semvalor", "--out", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key=value")
}

func TestExportFlags_Request(t *testing.T) {
	ef := &exportFlags{
		format:  "xlsx",
		groupBy: "especie",
		search:  "luzia",
		filters: []string{"municipio=Sobral", " uf =CE"},
	}

	req, err := ef.request()
	require.NoError(t, err)

	assert.Equal(t, domain.FormatSpreadsheet, req.Format)
	assert.Equal(t, "especie", req.GroupBy)
	assert.Equal(t, "luzia", req.Filters[domain.FilterSearch])
	assert.Equal(t, "Sobral", req.Filters["municipio"])
	assert.Equal(t, "CE", req.Filters["uf"])
}

func TestExportFlags_DefaultFormat(t *testing.T) {
	req, err := (&exportFlags{}).request()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultFormat, req.Format)
	assert.Empty(t, req.Filters)
}

func TestCacheCommand_UnknownModule(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "cache", "forget", "nada")
	assert.Error(t, err)
}

func TestCacheCommand_Flush(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "cache", "flush")
	require.NoError(t, err)
	assert.Contains(t, out, "chaves removidas")
}

func TestGlobalFlags_Overrides(t *testing.T) {
	f := &globalFlags{logLevel: "debug", dbDriver: "memory"}
	got := f.overrides()

	assert.Equal(t, "debug", got["log.level"])
	assert.Equal(t, "memory", got["database.driver"])
	_, ok := got["database.fixture_path"]
	assert.False(t, ok)
}
