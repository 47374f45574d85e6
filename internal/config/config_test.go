package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTable struct {
	ok       bool
	category string
	low      int
	high     int
	calls    int
}

func (f *fakeTable) SetSkipRange(category string, low, high int) bool {
	f.calls++
	f.category, f.low, f.high = category, low, high
	return f.ok
}

func writeProps(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "program.properties")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.properties"))
	require.NoError(t, err)
	assert.Equal(t, "data", cfg.DatabaseDir)
	assert.Equal(t, "Submissions", cfg.OutputDir)
	assert.Equal(t, "ptid", cfg.RangeCategory)
	assert.Empty(t, cfg.Range)
}

func TestLoadFromFile(t *testing.T) {
	path := writeProps(t, "databaseDir = /srv/deid\noutputDir = /srv/out\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/deid", cfg.DatabaseDir)
	assert.Equal(t, "/srv/out", cfg.OutputDir)
}

func TestParseRange(t *testing.T) {
	low, high, err := ParseRange(" 10-15 ")
	require.NoError(t, err)
	assert.Equal(t, 10, low)
	assert.Equal(t, 15, high)

	low, high, err = ParseRange("20, 5")
	require.NoError(t, err)
	assert.Equal(t, 20, low)
	assert.Equal(t, 5, high)

	for _, bad := range []string{"10", "a-b", "1-2-3", "1;2", ""} {
		_, _, err := ParseRange(bad)
		assert.ErrorIs(t, err, ErrInvalidRange, "ParseRange(%q)", bad)
	}
}

func TestInstallIntegerRangeRemovesProperty(t *testing.T) {
	path := writeProps(t, "range = 10-15\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	tbl := &fakeTable{ok: true}
	require.NoError(t, cfg.InstallIntegerRange(tbl, zerolog.Nop()))
	assert.Equal(t, 1, tbl.calls)
	assert.Equal(t, "ptid", tbl.category)
	assert.Equal(t, 10, tbl.low)
	assert.Equal(t, 15, tbl.high)

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Range, "an applied range is not applied again")

	require.NoError(t, reloaded.InstallIntegerRange(tbl, zerolog.Nop()))
	assert.Equal(t, 1, tbl.calls)
}

func TestInstallIntegerRangeKeepsMalformedProperty(t *testing.T) {
	path := writeProps(t, "range = ten-fifteen\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	tbl := &fakeTable{ok: true}
	err = cfg.InstallIntegerRange(tbl, zerolog.Nop())
	assert.ErrorIs(t, err, ErrInvalidRange)
	assert.Zero(t, tbl.calls)

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ten-fifteen", reloaded.Range)
}

func TestInstallIntegerRangeKeepsRefusedProperty(t *testing.T) {
	path := writeProps(t, "range = 1,2\nrangeCategory = accession\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	tbl := &fakeTable{ok: false}
	assert.Error(t, cfg.InstallIntegerRange(tbl, zerolog.Nop()))
	assert.Equal(t, "accession", tbl.category)

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1,2", reloaded.Range)
}

func TestInstallIntegerRangeIgnoresEnvironment(t *testing.T) {
	t.Setenv("DEID_RANGE", "1-3")
	path := filepath.Join(t.TempDir(), "program.properties")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1-3", cfg.Range)

	tbl := &fakeTable{ok: true}
	require.NoError(t, cfg.InstallIntegerRange(tbl, zerolog.Nop()))
	assert.Zero(t, tbl.calls, "a range that cannot be removed must not be applied")
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "nothing is written when no range was applied")
}

func TestStoreWritesOnlyFileProperties(t *testing.T) {
	t.Setenv("DEID_DATABASEDIR", "/env/db")
	path := writeProps(t, "range = 10-15\noutputDir = /srv/out\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/env/db", cfg.DatabaseDir)

	require.NoError(t, cfg.InstallIntegerRange(&fakeTable{ok: true}, zerolog.Nop()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := strings.ToLower(string(data))
	assert.Contains(t, text, "/srv/out")
	assert.NotContains(t, text, "/env/db")
	assert.NotContains(t, text, "databasedir")
	assert.NotContains(t, text, "rangecategory")

	t.Setenv("DEID_DATABASEDIR", "")
	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/out", reloaded.OutputDir)
	assert.Empty(t, reloaded.Range)
}
