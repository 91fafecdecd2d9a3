package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hirefire-scraper/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// blockingRunner waits on release before returning its report.
type blockingRunner struct {
	started chan struct{}
	release chan struct{}
	report  models.Report
	err     error
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}, 4), release: make(chan struct{})}
}

func (b *blockingRunner) Run(ctx context.Context) (models.Report, error) {
	b.started <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
		return models.Report{}, ctx.Err()
	}
	return b.report, b.err
}

func do(t *testing.T, h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(TokenHeader, token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := New(newBlockingRunner(), "", time.Second, nil)
	rec := do(t, s.Router(), http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestRun_ConflictWhileRunning(t *testing.T) {
	runner := newBlockingRunner()
	runner.report = models.Report{New: 3, Sent: 6}
	s := New(runner, "", time.Minute, nil)
	h := s.Router()

	rec := do(t, h, http.MethodPost, "/run", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	<-runner.started

	rec = do(t, h, http.MethodPost, "/run", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, "/status", "")
	assert.Contains(t, rec.Body.String(), `"running":true`)

	close(runner.release)
	s.Wait()

	rec = do(t, h, http.MethodGet, "/status", "")
	var body struct {
		Running    bool           `json:"running"`
		LastReport *models.Report `json:"last_report"`
		LastError  string         `json:"last_error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Running)
	require.NotNil(t, body.LastReport)
	assert.Equal(t, 3, body.LastReport.New)
	assert.Empty(t, body.LastError)

	rec = do(t, h, http.MethodPost, "/run", "")
	assert.Equal(t, http.StatusAccepted, rec.Code, "a new run may start once the previous finished")
	<-runner.started
	s.Wait()
}

func TestRun_Token(t *testing.T) {
	runner := newBlockingRunner()
	close(runner.release)
	s := New(runner, "s3cret", time.Minute, nil)
	h := s.Router()

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/run", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/run", "wrong").Code)
	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/run", "s3cret").Code)
	s.Wait()
}

func TestRun_ErrorIsReported(t *testing.T) {
	runner := newBlockingRunner()
	runner.err = errors.New("seen file corrupt")
	close(runner.release)
	s := New(runner, "", time.Minute, nil)
	h := s.Router()

	require.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/run", "").Code)
	s.Wait()

	rec := do(t, h, http.MethodGet, "/status", "")
	assert.Contains(t, rec.Body.String(), "seen file corrupt")
}
