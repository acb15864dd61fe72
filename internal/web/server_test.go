package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/opticfit/internal/auth"
	"github.com/JonMunkholm/opticfit/internal/catalog"
	"github.com/JonMunkholm/opticfit/internal/config"
	"github.com/JonMunkholm/opticfit/internal/core"
	_ "github.com/JonMunkholm/opticfit/internal/core/tables"
	"github.com/JonMunkholm/opticfit/internal/ratelimit"
	"github.com/JonMunkholm/opticfit/internal/storage"
	"github.com/JonMunkholm/opticfit/internal/store"
)

const testPassword = "correct horse battery staple"

type testEnv struct {
	srv *Server
	mem *store.Memory
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Auth.CookieName = "admin_auth"
	cfg.Auth.SessionTTL = time.Hour
	cfg.Import.MaxFileSize = 1 << 20
	cfg.Security.EnableCSP = true
	cfg.Rate.RequestsPerMinute = 120
	return cfg
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()

	mem := store.NewMemory()
	mem.Unique(catalog.TableMakes, "name")
	svc, err := core.NewService(mem, core.Options{})
	require.NoError(t, err)

	sessions := auth.NewSessionManager("0123456789abcdef0123456789abcdef", cfg.Auth.SessionTTL)
	login, err := auth.NewLoginService(auth.LoginConfig{PlainPassword: testPassword, MaxAttempts: 5, Window: time.Minute}, sessions, ratelimit.NewMemoryLimiter())
	require.NoError(t, err)

	dir := t.TempDir()
	local, err := storage.NewLocalStorage(dir, "/uploads")
	require.NoError(t, err)

	srv := NewServer(cfg, Deps{
		Service:    svc,
		Login:      login,
		Images:     storage.NewImages(local, 1024),
		Limiter:    ratelimit.NewMemoryLimiter(),
		UploadsDir: dir,
	})
	return &testEnv{srv: srv, mem: mem}
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	ins := func(table string, row store.Row) {
		_, err := e.mem.Insert(t.Context(), table, row)
		require.NoError(t, err)
	}
	ins(catalog.TableMakes, store.Row{"name": "Glock"})
	ins(catalog.TableMakes, store.Row{"name": "Smith & Wesson"})
	ins(catalog.TableFootprints, store.Row{"name": "RMR"})
	ins(catalog.TableModels, store.Row{"name": "G19", "make_id": int64(1), "fit_type": "single"})
	ins(catalog.TableModelFootprints, store.Row{"model_id": int64(1), "footprint_id": int64(1)})
	ins(catalog.TableOpticMakes, store.Row{"name": "Trijicon"})
	ins(catalog.TableOptics, store.Row{"name": "RMR Type 2", "optic_make_id": int64(1), "mount_type": "standard"})
	ins(catalog.TableOpticFootprints, store.Row{"optic_id": int64(1), "footprint_id": int64(1)})
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

// login signs in through the API and returns the session cookie.
func (e *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/admin/api/login", strings.NewReader(`{"password":"`+testPassword+`"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := e.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == "admin_auth" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func (e *testEnv) admin(t *testing.T, cookie *http.Cookie, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.AddCookie(cookie)
	return e.do(req)
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, testConfig())
	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'self'")
}

func TestHomePage_EscapesNames(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.seed(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Smith &amp; Wesson")
	assert.NotContains(t, rec.Body.String(), "Smith & Wesson")
}

func TestPublicAPI(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.seed(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/makes", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	makes := decode[[]catalog.Make](t, rec)
	assert.Equal(t, "Glock", makes[0].Name)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/makes/1/models", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	models := decode[[]catalog.Model](t, rec)
	require.Len(t, models, 1)
	assert.Equal(t, "G19", models[0].Name)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/models/abc/resolve", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolve_IssuesSessionCookie(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.seed(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/models/1/resolve", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[core.Resolution](t, rec)
	require.Len(t, res.FootprintGroups, 1)
	assert.Equal(t, "RMR", res.FootprintGroups[0].Footprint.Name)
	assert.Equal(t, "RMR Type 2", res.FootprintGroups[0].Optics[0].Name)
	assert.Empty(t, res.PlateGroups)

	var sid *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			sid = c
		}
	}
	require.NotNil(t, sid)
	assert.True(t, sid.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/models/1/resolve", nil)
	req.AddCookie(sid)
	rec = env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies(), "existing session is reused")

	latest, _, ok := env.srv.service.Tracker().Latest(sid.Value)
	require.True(t, ok)
	assert.Equal(t, "G19", latest.Model.Name)
}

func TestResolve_UnknownModelIsEmpty(t *testing.T) {
	env := newTestEnv(t, testConfig())
	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/models/99/resolve", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"footprint_groups":[],"plate_groups":[],"direct_optics":[]}`, rec.Body.String())
}

func TestAdmin_RequiresSession(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/login", rec.Header().Get("Location"))

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/admin/api/makes"},
		{http.MethodPost, "/admin/api/makes"},
		{http.MethodDelete, "/admin/api/makes/1"},
		{http.MethodPost, "/admin/api/import/makes"},
		{http.MethodGet, "/admin/api/audit"},
	} {
		rec := env.do(httptest.NewRequest(tc.method, tc.path, strings.NewReader(`{"name":"x"}`)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
	}
	assert.Equal(t, 0, env.mem.Len(catalog.TableMakes), "nothing reached the store")

	rec = env.do(httptest.NewRequest(http.MethodGet, "/admin/login", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="password"`)
}

func TestLogin_JSON(t *testing.T) {
	env := newTestEnv(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/admin/api/login", strings.NewReader(`{"password":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTH001", decode[ErrorResponse](t, rec).Code)

	cookie := env.login(t)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	rec = env.admin(t, cookie, http.MethodGet, "/admin", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Import CSV")

	rec = env.admin(t, cookie, http.MethodDelete, "/admin/api/login", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)
}

func TestLogin_Form(t *testing.T) {
	env := newTestEnv(t, testConfig())
	post := func(password string) *httptest.ResponseRecorder {
		form := url.Values{"password": {password}}
		req := httptest.NewRequest(http.MethodPost, "/admin/api/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return env.do(req)
	}

	rec := post("wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `class="alert"`)

	rec = post(testPassword)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))
}

func TestLogin_RateLimited(t *testing.T) {
	env := newTestEnv(t, testConfig())
	attempt := func(password string) int {
		req := httptest.NewRequest(http.MethodPost, "/admin/api/login", strings.NewReader(`{"password":"`+password+`"}`))
		req.Header.Set("Content-Type", "application/json")
		return env.do(req).Code
	}

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusUnauthorized, attempt("guess"))
	}
	assert.Equal(t, http.StatusTooManyRequests, attempt(testPassword))
}

func TestAdmin_GenericEditor(t *testing.T) {
	env := newTestEnv(t, testConfig())
	cookie := env.login(t)

	rec := env.admin(t, cookie, http.MethodPost, "/admin/api/makes", strings.NewReader(`{"name":"Colt"}`), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, created["id"])

	rec = env.admin(t, cookie, http.MethodPost, "/admin/api/makes", strings.NewReader(`{"name":"Colt"}`), "application/json")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DB001", decode[ErrorResponse](t, rec).Code)

	rec = env.admin(t, cookie, http.MethodPatch, "/admin/api/makes/1", strings.NewReader(`{"name":"Colt's"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.admin(t, cookie, http.MethodGet, "/admin/api/makes", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Colt's")

	rec = env.admin(t, cookie, http.MethodPost, "/admin/api/model_footprints", strings.NewReader(`{"model_id":1}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "IMP003", decode[ErrorResponse](t, rec).Code)

	rec = env.admin(t, cookie, http.MethodPatch, "/admin/api/makes/abc", strings.NewReader(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.admin(t, cookie, http.MethodDelete, "/admin/api/makes/1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["deleted"])

	rec = env.admin(t, cookie, http.MethodDelete, "/admin/api/makes/1", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.admin(t, cookie, http.MethodGet, "/admin/api/holsters", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_CreateModel(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.seed(t)
	cookie := env.login(t)

	body := `{"name":"G43X","make_id":1,"fit_type":"single","footprint_ids":[1]}`
	rec := env.admin(t, cookie, http.MethodPost, "/admin/api/models", strings.NewReader(body), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "G43X", decode[catalog.Model](t, rec).Name)

	body = `{"name":"G48","make_id":1,"fit_type":"single","footprint_ids":[]}`
	rec = env.admin(t, cookie, http.MethodPost, "/admin/api/models", strings.NewReader(body), "application/json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.NotEmpty(t, resp.Fields)

	rec = env.admin(t, cookie, http.MethodPost, "/admin/api/models", strings.NewReader(`{"nam":"typo"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")

	rec = env.admin(t, cookie, http.MethodPut, "/admin/api/models/1/footprints", strings.NewReader(`{"footprint_ids":[1]}`), "application/json")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAdmin_ImportPreviewExport(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.seed(t)
	cookie := env.login(t)

	csvData := []byte("name\nGlock\nColt\n")

	body, ct := multipartBody(t, "file", "makes.csv", csvData)
	rec := env.admin(t, cookie, http.MethodPost, "/admin/api/preview/makes", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	preview := decode[core.PreviewResponse](t, rec)
	assert.Equal(t, 1, preview.Summary.NewRows)
	assert.Equal(t, 1, preview.Summary.UpdateRows)
	assert.Equal(t, 2, env.mem.Len(catalog.TableMakes), "preview writes nothing")

	body, ct = multipartBody(t, "file", "makes.csv", csvData)
	rec = env.admin(t, cookie, http.MethodPost, "/admin/api/import/makes", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[ImportResponse](t, rec)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, "makes.csv", result.FileName)

	body, ct = multipartBody(t, "file", "models.csv", []byte("name\nG19\n"))
	rec = env.admin(t, cookie, http.MethodPost, "/admin/api/import/models", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VAL005", decode[ErrorResponse](t, rec).Code)

	rec = env.admin(t, cookie, http.MethodGet, "/admin/api/export/makes", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "id,name\n"), rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Colt")

	rec = env.admin(t, cookie, http.MethodGet, "/admin/api/export/audit_log", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.admin(t, cookie, http.MethodGet, "/admin/api/template/models", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "name")

	rec = env.admin(t, cookie, http.MethodGet, "/admin/api/audit", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	audit := decode[struct {
		Entries []catalog.AuditRecord `json:"entries"`
	}](t, rec)
	actions := make([]string, len(audit.Entries))
	for i, e := range audit.Entries {
		actions[i] = e.Action
	}
	assert.Contains(t, actions, string(core.ActionImport))
	assert.Contains(t, actions, string(core.ActionLogin))
}

func TestAdmin_ImportInterruptedReportsPartialCounts(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.seed(t)
	cookie := env.login(t)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	// hold the first new row until the request deadline passes
	env.mem.FailOn = func(op, table string, row store.Row) error {
		if op == "insert" && table == catalog.TableMakes && row["name"] == "Colt" {
			<-ctx.Done()
		}
		return nil
	}

	body, ct := multipartBody(t, "file", "makes.csv", []byte("name\nColt\nGlock\nRuger\n"))
	req := httptest.NewRequest(http.MethodPost, "/admin/api/import/makes", body).WithContext(ctx)
	req.Header.Set("Content-Type", ct)
	req.AddCookie(cookie)
	rec := env.do(req)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code, rec.Body.String())
	resp := decode[ErrorResponse](t, rec)
	assert.NotEmpty(t, resp.Code)
	require.NotNil(t, resp.Partial, "written rows are reported")
	assert.Equal(t, "makes.csv", resp.Partial.FileName)
	assert.Equal(t, 1, resp.Partial.Inserted)
	assert.Equal(t, 0, resp.Partial.Updated)
	assert.Equal(t, 1, resp.Partial.Total)
	assert.Equal(t, 3, env.mem.Len(catalog.TableMakes), "Colt was kept, Ruger never reached")
}

func TestAdmin_ImportErrorWithoutResultHasNoPartial(t *testing.T) {
	env := newTestEnv(t, testConfig())
	cookie := env.login(t)

	body, ct := multipartBody(t, "file", "models.csv", []byte("name\nG19\n"))
	rec := env.admin(t, cookie, http.MethodPost, "/admin/api/import/models", body, ct)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"partial"`)
}

func TestAdmin_ImportTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Import.MaxFileSize = 16
	env := newTestEnv(t, cfg)
	cookie := env.login(t)

	body, ct := multipartBody(t, "file", "makes.csv", bytes.Repeat([]byte("name\nGlock\n"), 10000))
	rec := env.admin(t, cookie, http.MethodPost, "/admin/api/import/makes", body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE001", decode[ErrorResponse](t, rec).Code)
}

func TestAdmin_ImageUpload(t *testing.T) {
	env := newTestEnv(t, testConfig())
	cookie := env.login(t)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	body, ct := multipartBody(t, "image", "RMR Type 2.png", png)
	rec := env.admin(t, cookie, http.MethodPost, "/admin/api/images", body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	img := decode[storage.Image](t, rec)
	assert.True(t, strings.HasPrefix(img.URL, "/uploads/"), img.URL)
	assert.True(t, strings.HasSuffix(img.Key, "-rmr-type-2.png"), img.Key)

	rec = env.do(httptest.NewRequest(http.MethodGet, img.URL, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, png, rec.Body.Bytes())

	body, ct = multipartBody(t, "image", "notes.png", []byte("just text, not an image"))
	rec = env.admin(t, cookie, http.MethodPost, "/admin/api/images", body, ct)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, "IMG001", decode[ErrorResponse](t, rec).Code)

	body, ct = multipartBody(t, "image", "huge.png", append(png, make([]byte, 4096)...))
	rec = env.admin(t, cookie, http.MethodPost, "/admin/api/images", body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRequestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 2
	env := newTestEnv(t, cfg)

	var codes []int
	for i := 0; i < 3; i++ {
		codes = append(codes, env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestErrorPage_HTML(t *testing.T) {
	env := newTestEnv(t, testConfig())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	env.srv.respondError(rec, req, store.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Code: DB008")
}

func TestStaticPickerScript_DiscardsSupersededResponses(t *testing.T) {
	env := newTestEnv(t, testConfig())
	rec := env.do(httptest.NewRequest(http.MethodGet, "/static/app.js", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	js := rec.Body.String()

	for _, want := range []string{
		"new AbortController()",
		"inflight.abort()",
		"opts.signal = inflight.signal",
		`e.name === "AbortError"`,
		"if (!current(id)) return;",
		"if (current(id)) show(res);",
	} {
		assert.Contains(t, js, want)
	}
	assert.Equal(t, 2, strings.Count(js, "var id = begin();"), "both the make and the model selectors start a new sequence")
}
