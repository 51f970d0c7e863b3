package route

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barcodescanner/internal/config"
	"barcodescanner/internal/logger"
	"barcodescanner/internal/service/metrics"
)

func newRouter(cfg *config.Config) http.Handler {
	return SetupRoutes(Dependencies{
		Config:  cfg,
		Logger:  logger.NewNop(),
		Metrics: metrics.New(),
	})
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestPages_ShippedViewer(t *testing.T) {
	h := newRouter(&config.Config{StaticDirectory: filepath.Join("..", "..", "static")})

	for _, page := range []string{"/", "/history", "/login", "/static/app.js"} {
		t.Run(page, func(t *testing.T) {
			rec := get(h, page)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.NotEmpty(t, rec.Body.String())
		})
	}

	assert.Contains(t, get(h, "/").Body.String(), "/static/app.js")
	assert.Contains(t, get(h, "/static/app.js").Body.String(), "/api/view")
}

func TestPages_DirectoryFromConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>home</p>"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	h := newRouter(&config.Config{StaticDirectory: dir})

	rec := get(h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "home"))

	assert.Equal(t, http.StatusNotFound, get(h, "/settings").Code)
	assert.Equal(t, http.StatusNotFound, get(h, "/sub").Code)
}

func TestPages_LoginRequiredWhenPasswordSet(t *testing.T) {
	h := newRouter(&config.Config{StaticDirectory: filepath.Join("..", "..", "static"), Password: "secret"})

	assert.Equal(t, http.StatusUnauthorized, get(h, "/").Code)
	assert.Equal(t, http.StatusOK, get(h, "/login").Code)
	assert.Equal(t, http.StatusOK, get(h, "/static/style.css").Code)
}
