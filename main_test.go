package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fjacquet/ledgerflow/cmd/root"
	"fjacquet/ledgerflow/internal/parsererror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cliConfig = `
metadata:
  period: "2024-06"
sources:
  - name: checking
    provider: bank
    paths: [checking.csv]
model:
  provider: ollama
  name: test-model
  endpoint: %s
  retry_delay_ms: 0
categories: [Salary, Dining]
log:
  level: warn
`

const cliExport = `Date,Payee,Memo,Amount,Status,Type
2024-06-01,ACME Corp,Salary,1000.00,completed,credit
2024-06-02,Noodle Bar,Lunch,-40.00,completed,card
2024-06-03,Bookshop,Order,-35.00,pending,card
`

func writeCLIFixture(t *testing.T, endpoint string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "checking.csv"), []byte(cliExport), 0600))
	path := filepath.Join(dir, "config.yaml")
	content := strings.Replace(cliConfig, "%s", endpoint, 1)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestCLI_NormalizeAnnotateReport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		category := "Dining"
		if strings.Contains(req.Prompt, "ACME") {
			category = "Salary"
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"response": `{"category":"` + category + `"}`})
	}))
	defer server.Close()

	cfgPath := writeCLIFixture(t, server.URL)
	dir := filepath.Dir(cfgPath)

	for _, stage := range []string{"normalize", "annotate", "report"} {
		root.Cmd.SetArgs([]string{stage, "--config", cfgPath})
		require.NoError(t, root.Cmd.Execute(), stage)
	}

	ledger, err := os.ReadFile(filepath.Join(dir, "2024-06-transactions.csv"))
	require.NoError(t, err)
	assert.Equal(t, "timestamp,source,counterparty,direction,amount,raw_description,category\n"+
		"2024-06-01 00:00:00,checking,ACME Corp,income,1000.00,Salary,Salary\n"+
		"2024-06-02 00:00:00,checking,Noodle Bar,expense,40.00,Lunch,Dining\n", string(ledger))
	assert.FileExists(t, filepath.Join(dir, "2024-06-transactions.annotations.yaml"))

	doc, err := os.ReadFile(filepath.Join(dir, "2024-06-report.md"))
	require.NoError(t, err)
	assert.Contains(t, string(doc), "| Dining | ¥40.00 | 1 | 100.0% |")
}

func TestCLI_MissingConfigFails(t *testing.T) {
	root.Cmd.SetArgs([]string{"normalize", "--config", filepath.Join(t.TempDir(), "absent.yaml")})
	err := root.Cmd.Execute()

	var cfgErr *parsererror.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "config", cfgErr.Field)
}

func TestCLI_ReportWithoutModelCredentials(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	cfgPath := writeCLIFixture(t, "")
	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	content := strings.Replace(string(data), "provider: ollama", "provider: gemini", 1)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0600))
	dir := filepath.Dir(cfgPath)

	for _, stage := range []string{"normalize", "report"} {
		root.Cmd.SetArgs([]string{stage, "--config", cfgPath})
		require.NoError(t, root.Cmd.Execute(), stage)
	}
	assert.FileExists(t, filepath.Join(dir, "2024-06-report.md"))

	root.Cmd.SetArgs([]string{"annotate", "--config", cfgPath})
	err = root.Cmd.Execute()
	var cfgErr *parsererror.ConfigError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.Equal(t, "model.api_key", cfgErr.Field)
}
