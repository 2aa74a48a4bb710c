package debug

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterUpdatesBreakpointsOverHTTP(t *testing.T) {
	cache := NewCache(10)
	router := Router(cache)

	body, err := json.Marshal(map[string]interface{}{
		"breakpoints": []Location{{Source: "main.lua", Line: 5}},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/debug/breakpoints", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, cache.MightBreakAt("main.lua", 5))
}

func TestRouterRegistersAndListsWatchExpressions(t *testing.T) {
	cache := NewCache(10)
	router := Router(cache)

	body, err := json.Marshal(map[string]string{"expression": "x.y"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/debug/watch", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/debug/watch", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "x.y")
}

func TestRouterReturnsNotFoundForUncachedVariable(t *testing.T) {
	cache := NewCache(10)
	router := Router(cache)

	req := httptest.NewRequest(http.MethodGet, "/debug/variables?name=missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterStreamPushesWatchResultOnGenerationChange(t *testing.T) {
	cache := NewCache(10)
	srv := httptest.NewServer(Router(cache))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/debug/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	cache.InvalidateVariableCache() // bumps generation so the poll loop sees a change
	cache.CacheWatchResult("x.y", "42", cache.Generation())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Contains(t, msg, "generation")
}
