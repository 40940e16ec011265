package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/homeworkhero/internal/config"
)

func newMux() *http.ServeMux {
	cat := config.DefaultCatalog()
	cat.DataSources = []config.Option{{ID: "ww3", Name: "Wordly Wise 3"}, {ID: "ww4", Name: "Ww4"}}
	mux := http.NewServeMux()
	New(cat).RegisterRoutes(mux)
	return mux
}

func get(mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestIndexRendersCatalog(t *testing.T) {
	rec := get(newMux(), "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "<title>KPop Vocab Hunters</title>")
	assert.Contains(t, body, "Hunt Vocabulary. Defeat Demons.")
	assert.Contains(t, body, `<option value="ww3">Wordly Wise 3</option>`)
	assert.Contains(t, body, `<option value="gpt-4o">gpt-4o (High Cost)</option>`)
	assert.Contains(t, body, `<option value="15">`)
	assert.Contains(t, body, `<option value="Z">Z</option>`)
	assert.Contains(t, body, `name="theme" value="kpop"`)
}

func TestIndexThemeSwitch(t *testing.T) {
	body := get(newMux(), "/?theme=wof").Body.String()
	assert.Contains(t, body, `<body class="theme-wof">`)
	assert.Contains(t, body, "Dragon Vocab Scrolls")
	assert.Contains(t, body, `name="theme" value="wof"`)

	body = get(newMux(), "/?theme=unknown").Body.String()
	assert.Contains(t, body, "KPop Vocab Hunters")
}

func TestAbout(t *testing.T) {
	rec := get(newMux(), "/about?theme=wof")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "About Dragon Vocab Scrolls")
	assert.Contains(t, rec.Body.String(), "<li>Wordly Wise 3</li>")
}

func TestUnknownPathAndMethod(t *testing.T) {
	mux := newMux()
	assert.Equal(t, http.StatusNotFound, get(mux, "/nope").Code)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
