package client

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/logsage/internal/domain"
)

// runCmd executes sub under a root carrying the persistent flags the real
// binary defines.
func runCmd(t *testing.T, sub *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "logsage", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().String("api-url", "", "")
	root.PersistentFlags().BoolP("output", "o", false, "")
	root.AddCommand(sub)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestLogsListCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ERROR", r.URL.Query().Get("level"))
		writeData(t, w, http.StatusOK, []domain.LogRecord{{ID: "abc", Level: "ERROR", Message: "db down"}})
	}))
	defer srv.Close()

	out, err := runCmd(t, LogsCmd(), "", "logs", "list", "--api-url", srv.URL, "--level", "ERROR")
	require.NoError(t, err)
	assert.Contains(t, out, "abc")
	assert.Contains(t, out, "db down")
	assert.Contains(t, out, "1 records")
}

func TestLogsDeleteCmd_Args(t *testing.T) {
	_, err := runCmd(t, LogsCmd(), "", "logs", "delete")
	assert.ErrorContains(t, err, "requires exactly 1 argument")

	_, err = runCmd(t, LogsCmd(), "", "logs", "delete", "abc", "--all")
	assert.ErrorContains(t, err, "cannot be combined")
}

func TestLogsDeleteCmd_ByLevel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "DEBUG", r.URL.Query().Get("level"))
		writeData(t, w, http.StatusOK, map[string]int{"deleted": 3})
	}))
	defer srv.Close()

	out, err := runCmd(t, LogsCmd(), "", "logs", "delete", "--level", "DEBUG", "--api-url", srv.URL, "-o")
	require.NoError(t, err)
	assert.JSONEq(t, `{"deleted":3}`, out)
}

func TestIngestCmd_NDJSONFromStdin(t *testing.T) {
	var batches int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var payload struct {
			Batch []json.RawMessage `json:"batch"`
		}
		require.NoError(t, json.Unmarshal(body, &payload))
		batches++
		writeData(t, w, http.StatusCreated, AppendResult{Status: "stored", Count: len(payload.Batch)})
	}))
	defer srv.Close()

	input := `{"level":"ERROR","message":"a"}
{"level":"INFO","message":"b"}

{"level":"WARN","message":"c"}
`
	out, err := runCmd(t, IngestCmd(), input, "ingest", "--ndjson", "--chunk-size", "2", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 2, batches)
	assert.Contains(t, out, "Stored 3 record(s).")
}

func TestChunkNDJSON(t *testing.T) {
	payloads, err := chunkNDJSON(strings.NewReader("{\"a\":1}\n{\"a\":2}\n{\"a\":3}\n"), 2)
	require.NoError(t, err)
	require.Len(t, payloads, 2)
	assert.JSONEq(t, `{"batch":[{"a":1},{"a":2}]}`, string(payloads[0]))
	assert.JSONEq(t, `{"batch":[{"a":3}]}`, string(payloads[1]))
}

func TestChunkNDJSON_Errors(t *testing.T) {
	_, err := chunkNDJSON(strings.NewReader("{\"a\":1}\nnot json\n"), 10)
	assert.ErrorContains(t, err, "line 2")

	_, err = chunkNDJSON(strings.NewReader("[1,2]\n"), 10)
	assert.ErrorContains(t, err, "expected a JSON object")

	_, err = chunkNDJSON(strings.NewReader("\n\n"), 10)
	assert.ErrorContains(t, err, "no records")
}

func TestAnalysesGetCmd_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyses/log-1", r.URL.Path)
		writeData(t, w, http.StatusOK, domain.AnalysisResult{
			LogID:     "log-1",
			Message:   "boom",
			RiskLevel: domain.RiskUnknown,
			Status:    domain.AnalysisStatusProviderError,
			RawText:   "AI service unavailable",
		})
	}))
	defer srv.Close()

	out, err := runCmd(t, AnalysesCmd(), "", "analyses", "get", "log-1", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "PROVIDER_ERROR")
	assert.Contains(t, out, "AI service unavailable")
}

func TestStatusCmd_Degraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"degraded","feed":{"cycles":9,"consecutive_failures":6}}`))
	}))
	defer srv.Close()

	out, err := runCmd(t, StatusCmd(), "", "status", "--api-url", srv.URL)
	require.Error(t, err)
	assert.Contains(t, out, "Status: degraded")
	assert.Contains(t, out, "6 consecutive failures")
}

func TestConfigCmd_SetURLAndShow(t *testing.T) {
	useTempConfig(t)
	t.Setenv(envAPIURL, "")

	_, err := runCmd(t, ConfigCmd(), "", "config", "set-url", "not-a-url")
	require.Error(t, err)

	out, err := runCmd(t, ConfigCmd(), "", "config", "set-url", "https://logs.example.com/")
	require.NoError(t, err)
	assert.Contains(t, out, "https://logs.example.com")

	out, err = runCmd(t, ConfigCmd(), "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "https://logs.example.com (global_config)")
}
