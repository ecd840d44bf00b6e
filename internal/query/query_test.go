package query

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ikretus/asr/internal/config"
	"github.com/ikretus/asr/internal/models"
	"github.com/ikretus/asr/internal/store"
)

func newTestServer(t *testing.T, fetchMany int) (*httptest.Server, *store.Fake) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{FetchMany: fetchMany}
	st := store.NewFake()

	r := gin.New()
	New(st, cfg).Register(r)
	return httptest.NewServer(r), st
}

func TestOneUnknownAUIDIs404(t *testing.T) {
	srv, _ := newTestServer(t, 10)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOneLoadedStatus(t *testing.T) {
	srv, st := newTestServer(t, 10)
	defer srv.Close()
	require.NoError(t, st.Create(context.Background(), "a1", models.LangEN, models.ModelLev0))

	resp, err := http.Get(srv.URL + "/a1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "loaded", out["status"])
	_, hasResult := out["result"]
	assert.False(t, hasResult)
}

func TestOneFailedIncludesLog(t *testing.T) {
	srv, st := newTestServer(t, 10)
	defer srv.Close()
	require.NoError(t, st.Create(context.Background(), "a1", models.LangEN, models.ModelLev0))
	require.NoError(t, st.MarkFailed(context.Background(), "a1", "error:whisper"))

	resp, err := http.Get(srv.URL + "/a1")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "failed", out["status"])
	assert.Equal(t, "error:whisper", out["log"])
}

func TestOneSuccessIncludesResult(t *testing.T) {
	srv, st := newTestServer(t, 10)
	defer srv.Close()
	require.NoError(t, st.Create(context.Background(), "a1", models.LangEN, models.ModelLev0))
	require.NoError(t, st.MarkSuccess(context.Background(), "a1", []byte(`[{"text":"hi"}]`)))

	resp, err := http.Get(srv.URL + "/a1")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out struct {
		Status string        `json:"status"`
		Result []interface{} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "success", out.Status)
	require.Len(t, out.Result, 1)
}

func TestRecentAscendingOrder(t *testing.T) {
	srv, st := newTestServer(t, 10)
	defer srv.Close()

	base := time.Now().Add(-time.Hour)
	for i, auid := range []string{"a", "b", "c"} {
		require.NoError(t, st.Create(context.Background(), auid, models.LangEN, models.ModelLev0))
		j, err := st.Get(context.Background(), auid)
		require.NoError(t, err)
		j.Loaded = base.Add(time.Duration(i) * time.Minute)
		st.Seed(*j)
	}

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out []map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0]["auid"])
	assert.Equal(t, "c", out[2]["auid"])
}

func TestRecentRespectsFetchMany(t *testing.T) {
	srv, st := newTestServer(t, 2)
	defer srv.Close()

	for _, auid := range []string{"a", "b", "c"} {
		require.NoError(t, st.Create(context.Background(), auid, models.LangEN, models.ModelLev0))
	}

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out []map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Len(t, out, 2)
}
