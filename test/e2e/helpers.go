//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/logsage/internal/api/handlers"
	"github.com/cloo-solutions/logsage/internal/jobs"
	"github.com/cloo-solutions/logsage/internal/logger"
	"github.com/cloo-solutions/logsage/internal/openai"
	"github.com/cloo-solutions/logsage/internal/repository"
	"github.com/cloo-solutions/logsage/internal/retrieval"
	"github.com/cloo-solutions/logsage/internal/server"
	"github.com/cloo-solutions/logsage/internal/service"
	"github.com/cloo-solutions/logsage/internal/storage"
	"github.com/cloo-solutions/logsage/internal/testutil"
)

const providerAnswer = `Issue: Database connection pool exhausted
Possible Reason: Too many concurrent checkout requests hold connections
Risk Level: HIGH
Recommended Fix: Raise the pool size and add request timeouts`

// E2ETestEnv is a store, pipeline and HTTP server wired the way logsaged
// serve wires them, with a fake OpenAI-compatible provider.
type E2ETestEnv struct {
	T         *testing.T
	Ctx       context.Context
	PostgresC *testutil.PostgresContainer
	RustFSC   *testutil.RustFSContainer
	Pool      *pgxpool.Pool
	S3Client  *storage.S3Client

	ServerURL    string
	ServerCloser func()

	Provider      *httptest.Server
	ProviderCalls *atomic.Int64

	Feed       *service.ChangeFeed
	Index      *retrieval.Index
	pollWorker *jobs.Worker
	pool       *jobs.AnalysisPool
	cancel     context.CancelFunc

	BinaryDir  string
	HTTPClient *http.Client
}

func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC)

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.RustFSAccessKey,
		SecretAccessKey: testutil.RustFSSecretKey,
		Bucket:          "logsage-e2e",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	env := &E2ETestEnv{
		T:             t,
		Ctx:           ctx,
		PostgresC:     pgC,
		RustFSC:       s3C,
		Pool:          pool,
		S3Client:      s3Client,
		ProviderCalls: &atomic.Int64{},
		HTTPClient:    &http.Client{Timeout: 30 * time.Second},
	}
	env.Provider = newFakeProvider(env.ProviderCalls)
	env.start()
	return env
}

// newFakeProvider answers every chat completion with providerAnswer.
func newFakeProvider(calls *atomic.Int64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-e2e",
			"object": "chat.completion",
			"model":  "e2e",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": providerAnswer},
			}},
		})
	}))
}

func (e *E2ETestEnv) start() {
	log := logger.Nop()

	logRepo := repository.NewLogRepository(e.Pool)
	analysisRepo := repository.NewAnalysisRepository(e.Pool)
	logSvc := service.NewLogService(logRepo, analysisRepo, repository.NewTxRunner(e.Pool), service.DefaultUUIDGenerator{})

	e.Index = retrieval.NewIndex([]string{
		"connection pool exhausted while serving checkout",
		"disk full on /var/lib/postgresql",
	})
	provider := openai.NewClientWithConfig(openai.Config{APIKey: "e2e", BaseURL: e.Provider.URL, Model: "e2e"})
	engine, err := service.NewEngine(e.Index, provider, service.EngineConfig{TopK: 1, ProviderTimeout: 5 * time.Second, CacheSize: 100}, log)
	if err != nil {
		e.T.Fatalf("failed to create engine: %v", err)
	}

	sinks := service.MultiSink{
		service.NewLogSink(log),
		service.NewRepositorySink(analysisRepo),
		service.NewArchiveSink(e.S3Client),
	}

	e.Feed = service.NewChangeFeed(logSvc, service.FeedConfig{PageSize: 100, FetchTimeout: 5 * time.Second, UnhealthyAfter: 3}, log)
	e.pool = jobs.NewAnalysisPool(engine, sinks, 16, 2, log)
	e.pollWorker = jobs.NewWorker("poll", jobs.NewFeedProcessor(e.Feed, e.pool, log), 200*time.Millisecond, log)

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.pool.Start(ctx)
	go e.pollWorker.Start(ctx)

	router := server.NewRouter(server.RouterConfig{
		Logger:          log,
		HealthHandler:   handlers.NewHealthHandler(e.Feed, e.Index),
		LogHandler:      handlers.NewLogHandler(logSvc),
		AnalysisHandler: handlers.NewAnalysisHandler(logSvc, engine),
	})

	port, err := getFreePort()
	if err != nil {
		e.T.Fatalf("failed to get free port: %v", err)
	}
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.T.Logf("server error: %v", err)
		}
	}()

	e.ServerURL = fmt.Sprintf("http://localhost:%d", port)
	waitForServer(e.T, e.ServerURL, 10*time.Second)
	e.ServerCloser = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func (e *E2ETestEnv) Cleanup() {
	if e.pollWorker != nil {
		e.pollWorker.Stop()
	}
	if e.pool != nil {
		e.pool.Close()
	}
	if e.cancel != nil {
		e.cancel()
	}
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Provider != nil {
		e.Provider.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		_ = e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		_ = e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		_ = os.RemoveAll(e.BinaryDir)
	}
}

// BuildCLI builds the logsage binary into a temp dir.
func (e *E2ETestEnv) BuildCLI() {
	tmpDir, err := os.MkdirTemp("", "logsage-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "logsage"), "./cmd/logsage")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build logsage: %v\n%s", err, out)
	}
}

// RunCLI runs the logsage binary against the test server.
func (e *E2ETestEnv) RunCLI(input string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "logsage"), args...)
	cmd.Stdin = bytes.NewReader([]byte(input))
	cmd.Env = append(os.Environ(), fmt.Sprintf("LOGSAGE_API_URL=%s", e.ServerURL))
	out, err := cmd.CombinedOutput()
	return string(out), err
}

type APIResponse struct {
	Status int
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil)
}

func (e *E2ETestEnv) Post(path string, body any) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body)
}

func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodDelete, path, nil)
}

func (e *E2ETestEnv) doRequest(method, path string, body any) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(e.Ctx, method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response (status %d): %s", resp.StatusCode, string(respBody))
	}
	apiResp.Status = resp.StatusCode
	return &apiResp, nil
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
