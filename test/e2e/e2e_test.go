//go:build e2e

package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/logsage/internal/domain"
	"github.com/cloo-solutions/logsage/internal/service"
)

type appendData struct {
	Count int      `json:"count"`
	IDs   []string `json:"ids"`
}

func TestE2E_ErrorIsAnalyzedStoredAndArchived(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	resp, err := env.Post("/logs", map[string]any{"batch": []map[string]any{
		{"level": "INFO", "message": "user logged in", "app": "shop"},
		{"level": "ERROR", "message": "connection pool exhausted", "app": "shop", "orderId": 42},
	}})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.Status)

	var appended appendData
	require.NoError(t, json.Unmarshal(resp.Data, &appended))
	require.Equal(t, 2, appended.Count)
	errorID := appended.IDs[1]

	var analysis domain.AnalysisResult
	require.Eventually(t, func() bool {
		r, err := env.Get("/analyses/" + errorID)
		if err != nil || r.Status != http.StatusOK {
			return false
		}
		return json.Unmarshal(r.Data, &analysis) == nil
	}, 15*time.Second, 200*time.Millisecond)

	assert.Equal(t, domain.AnalysisStatusOK, analysis.Status)
	assert.Equal(t, domain.RiskHigh, analysis.RiskLevel)
	assert.Equal(t, "Database connection pool exhausted", analysis.Issue)
	assert.Equal(t, "connection pool exhausted", analysis.Message)

	body, err := env.S3Client.GetObject(env.Ctx, service.ArchiveKey(analysis))
	require.NoError(t, err)
	defer body.Close()
	archived, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(archived), errorID)

	// The INFO record never reaches the provider, and later polls do not
	// re-analyze the error.
	time.Sleep(time.Second)
	assert.Equal(t, int64(1), env.ProviderCalls.Load())
	assert.Equal(t, uint64(2), env.Feed.Stats().Emitted)
}

func TestE2E_ListFiltersAndNDJSON(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	resp, err := env.Post("/logs", []map[string]any{
		{"level": "WARN", "msg": "slow query", "app": "billing"},
		{"level": "INFO", "message": "ok", "app": "shop"},
		{"level": "WARN", "message": "retrying", "app": "shop"},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.Status)

	resp, err = env.Get("/logs?level=warn&app=shop")
	require.NoError(t, err)
	var records []domain.LogRecord
	require.NoError(t, json.Unmarshal(resp.Data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "retrying", records[0].Message)

	req, err := http.NewRequest(http.MethodGet, env.ServerURL+"/logs?format=ndjson", nil)
	require.NoError(t, err)
	raw, err := env.HTTPClient.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, "application/x-ndjson", raw.Header.Get("Content-Type"))
	lines, err := io.ReadAll(raw.Body)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(lines)), "\n"), 3)
}

func TestE2E_DeleteRemovesAnalyses(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	resp, err := env.Post("/logs", []map[string]any{{"level": "ERROR", "message": "disk full"}})
	require.NoError(t, err)
	var appended appendData
	require.NoError(t, json.Unmarshal(resp.Data, &appended))
	id := appended.IDs[0]

	require.Eventually(t, func() bool {
		r, err := env.Get("/analyses/" + id)
		return err == nil && r.Status == http.StatusOK
	}, 15*time.Second, 200*time.Millisecond)

	resp, err = env.Delete("/logs?level=ERROR")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)

	resp, err = env.Get("/logs/" + id)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status)

	resp, err = env.Get("/analyses/" + id)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status)
}

func TestE2E_AskAndHealth(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	resp, err := env.Post("/ask", map[string]string{"question": "why is checkout failing?"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status)
	var answer struct {
		Answer string `json:"answer"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &answer))
	assert.Contains(t, answer.Answer, "connection pool")

	health, err := env.HTTPClient.Get(env.ServerURL + "/health")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestE2E_CLIWorkflow(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.BuildCLI()

	input := `{"level":"ERROR","message":"kafka broker unreachable","app":"events"}
{"level":"INFO","message":"consumer started","app":"events"}
`
	out, err := env.RunCLI(input, "ingest", "--ndjson", "--zstd")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Stored 2 record(s).")

	out, err = env.RunCLI("", "logs", "list", "--level", "ERROR")
	require.NoError(t, err, out)
	assert.Contains(t, out, "kafka broker unreachable")

	require.Eventually(t, func() bool {
		out, err := env.RunCLI("", "analyses", "list", "--risk", "HIGH")
		return err == nil && strings.Contains(out, "kafka broker unreachable")
	}, 15*time.Second, 500*time.Millisecond)

	out, err = env.RunCLI("", "status", "-o")
	require.NoError(t, err, out)
	assert.Contains(t, out, `"status": "ok"`)
}
