package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("SQLITE_DB_PATH", filepath.Join(t.TempDir(), "budget.db"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("AMQP_URL", "")
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
	t.Setenv("CONFIG_FILE", "")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bank.csv")
	csv := "date,description,amount,type,category\n" +
		"2024-03-01,Rent March,950.00,expense,Rent\n" +
		"2024-03-09,Books,30,expense,Hobbies\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o600))
	return path
}

func TestImportCommand(t *testing.T) {
	out, err := run(t, "import", writeCSV(t))
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 transactions")
	assert.Contains(t, out, "created categories: Hobbies")
}

func TestImportMissingFile(t *testing.T) {
	_, err := run(t, "import", filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestReportRejectsBadPeriod(t *testing.T) {
	_, err := run(t, "report", "2024-13")
	assert.Error(t, err)
}

func TestReportWritesPDF(t *testing.T) {
	pdf := filepath.Join(t.TempDir(), "march.pdf")
	out, err := run(t, "report", "2024-03", "--pdf", pdf)
	require.NoError(t, err)
	assert.Contains(t, out, "2024-03 income 0.00 expense 0.00 balance 0.00")

	b, err := os.ReadFile(pdf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("%PDF")))
}

func TestSeedAndDuplicates(t *testing.T) {
	out, err := run(t, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "admin admin@example.com")

	out, err = run(t, "duplicates")
	require.NoError(t, err)
	assert.Equal(t, "no duplicates\n", out)
}

func TestExportEmptyLedger(t *testing.T) {
	out, err := run(t, "export")
	require.NoError(t, err)
	assert.Equal(t, "date,description,amount,category,type,tags\n", out)
}
