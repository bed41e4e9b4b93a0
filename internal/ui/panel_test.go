package ui

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanelRendersVersion(t *testing.T) {
	rec := httptest.NewRecorder()
	Panel{Version: "1.2.3"}.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "v1.2.3")
	assert.Contains(t, rec.Body.String(), "/api/hooks/enable")
}

func TestURL(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:18090/", URL(18090, ""))
	assert.Equal(t, "http://127.0.0.1:18090/?token=a+b%26c", URL(18090, "a b&c"))
}
