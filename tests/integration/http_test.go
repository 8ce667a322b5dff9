package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adaptershttp "github.com/iho/txengine/internal/adapter/http"
	"github.com/iho/txengine/internal/adapter/http/dto"
	"github.com/iho/txengine/internal/adapter/http/handler"
	redisrepo "github.com/iho/txengine/internal/adapter/repository/redis"
	"github.com/iho/txengine/internal/infrastructure/idgen"
	"github.com/iho/txengine/internal/infrastructure/metrics"
	infraredis "github.com/iho/txengine/internal/infrastructure/redis"
	"github.com/iho/txengine/internal/usecase"
)

func itoa(n int) string {
	return strconv.Itoa(n)
}

// newServer wires the full HTTP stack against an in-process Redis.
func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient, err := infraredis.NewClient(context.Background(), "redis://"+mr.Addr(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { redisClient.Close() })

	m := metrics.New(prometheus.NewRegistry())
	ledger := newLedger(usecase.WithMetrics(m))
	ingest := usecase.NewIngestUseCase(ledger, idgen.NewULIDGenerator(), m, zerolog.Nop())
	reports := redisrepo.NewReportStore(redisClient, m)

	router := adaptershttp.NewRouter(adaptershttp.RouterConfig{
		TransactionHandler: handler.NewTransactionHandler(handler.TransactionHandlerConfig{
			Ingest:  ingest,
			Ledger:  ingest,
			Reports: reports,
			Logger:  zerolog.Nop(),
		}),
		AccountHandler:   handler.NewAccountHandler(ledger),
		HealthHandler:    handler.NewHealthHandler(redisClient),
		BatchHandler:     handler.NewBatchHandler(reports),
		IdempotencyStore: redisrepo.NewIdempotencyStore(redisClient, m),
		Metrics:          m,
		Logger:           zerolog.Nop(),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func upload(t *testing.T, srv *httptest.Server, body []byte, key string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/transactions/", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/csv")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getBody(t *testing.T, url string) (int, []byte) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, buf.Bytes()
}

func TestHTTP_UploadReplayAndReport(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	srv := newServer(t)

	input, err := os.ReadFile(filepath.Join("testdata", "mixed.csv"))
	require.NoError(t, err)
	expected, err := os.ReadFile(filepath.Join("testdata", "mixed.expected.csv"))
	require.NoError(t, err)

	first := upload(t, srv, input, "batch-key-1")
	require.Equal(t, http.StatusOK, first.StatusCode)

	var report dto.IngestResponse
	require.NoError(t, json.NewDecoder(first.Body).Decode(&report))
	assert.Equal(t, 14, report.Read)
	assert.Equal(t, 1, report.Malformed)
	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, 2, report.Ignored)
	assert.Equal(t, 10, report.Applied)

	// A retried upload with the same key replays the first report and applies
	// nothing.
	second := upload(t, srv, input, "batch-key-1")
	require.Equal(t, http.StatusOK, second.StatusCode)
	assert.Equal(t, "true", second.Header.Get("X-Idempotency-Replay"))
	assert.Equal(t, first.Header.Get("Location"), second.Header.Get("Location"))
	assert.Equal(t, "application/json", second.Header.Get("Content-Type"))

	var replayed dto.IngestResponse
	require.NoError(t, json.NewDecoder(second.Body).Decode(&replayed))
	assert.Equal(t, report.BatchID, replayed.BatchID)

	status, body := getBody(t, srv.URL+"/api/v1/accounts/?format=csv")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(expected), string(body))

	status, body = getBody(t, srv.URL+first.Header.Get("Location"))
	require.Equal(t, http.StatusOK, status)
	var stored dto.IngestResponse
	require.NoError(t, json.Unmarshal(body, &stored))
	assert.Equal(t, report.BatchID, stored.BatchID)
	assert.Equal(t, report.Applied, stored.Applied)

	status, body = getBody(t, srv.URL+"/api/v1/disputes")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"open":[]}`, string(body))

	status, _ = getBody(t, srv.URL+"/ready")
	assert.Equal(t, http.StatusOK, status)
}

func TestHTTP_ConcurrentSubmissions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	srv := newServer(t)

	const workers = 20
	const perWorker = 25

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				tx := w*perWorker + i + 1
				body := fmt.Sprintf(`{"type":"deposit","client":%d,"tx":%d,"amount":"0.5"}`, w%4+1, tx)
				resp, err := http.Post(srv.URL+"/api/v1/transactions/single", "application/json", bytes.NewBufferString(body))
				if err != nil {
					errs <- err
					continue
				}
				resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					errs <- fmt.Errorf("tx %d: status %d", tx, resp.StatusCode)
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}

	status, body := getBody(t, srv.URL+"/api/v1/accounts/")
	require.Equal(t, http.StatusOK, status)

	var accounts []dto.AccountResponse
	require.NoError(t, json.Unmarshal(body, &accounts))
	require.Len(t, accounts, 4)
	for i, acc := range accounts {
		assert.Equal(t, uint16(i+1), acc.Client)
		assert.Equal(t, "62.5000", acc.Total, "client %d", acc.Client)
	}
}
