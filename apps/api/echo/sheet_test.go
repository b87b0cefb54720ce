package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/evalix/core"
	"github.com/trezcool/evalix/core/sheet"
	logsvc "github.com/trezcool/evalix/services/logger"
	inmemdb "github.com/trezcool/evalix/storage/database/inmem"
	"github.com/trezcool/evalix/storage/remote"
	"github.com/trezcool/evalix/tests"
)

var errMissingToken = echo.Map{"error": "missing or malformed jwt"}

func setup(t *testing.T, repo sheet.Repository) (*Server, *core.Config) {
	t.Helper()
	conf := testutil.NewConfig(t)

	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	sheet.InitValidators(validate, translator)

	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0))
	srv := NewServer(conf, logger, ServerDeps{
		SheetSvc:   sheet.NewService(repo),
		Validate:   validate,
		Translator: translator,
	})
	return srv, conf
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     string
	token    string
	wantCode int
	wantData interface{}
}

func newAuthRequest(method, path, token, body string) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func do(t *testing.T, srv *Server, tt httpTest) *httptest.ResponseRecorder {
	t.Helper()
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	srv.ServeHTTP(rec, req)
	return rec
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData != nil {
		want, err := json.Marshal(tt.wantData)
		require.NoError(t, err)
		assert.JSONEq(t, string(want), rec.Body.String())
	}
}

func decodeSheet(t *testing.T, rec *httptest.ResponseRecorder) sheet.Sheet {
	t.Helper()
	var s sheet.Sheet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	return s
}

func TestHome(t *testing.T) {
	srv, _ := setup(t, inmemdb.NewSheetRepository(inmemdb.Open()))
	rec := do(t, srv, httpTest{method: http.MethodGet, path: "/"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Evalix API!", rec.Body.String())
}

func TestSheetAPI_Auth(t *testing.T) {
	srv, conf := setup(t, inmemdb.NewSheetRepository(inmemdb.Open()))
	bad := testutil.NewConfig(t)
	bad.SecretKey = "not the secret"

	tests := []httpTest{
		{name: "no token", method: http.MethodGet, path: "/v1/sheets", wantCode: http.StatusUnauthorized, wantData: errMissingToken},
		{name: "no token on period", method: http.MethodGet, path: "/v1/sheets/periods/2025/1", wantCode: http.StatusUnauthorized, wantData: errMissingToken},
		{name: "wrong key", method: http.MethodGet, path: "/v1/sheets", token: testutil.Token(t, bad, "ada", false), wantCode: http.StatusUnauthorized},
		{name: "valid token", method: http.MethodGet, path: "/v1/sheets", token: testutil.Token(t, conf, "ada", false), wantCode: http.StatusOK, wantData: []interface{}{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, do(t, srv, tt))
		})
	}
}

func TestSheetAPI_GetSheet(t *testing.T) {
	db := inmemdb.Open()
	srv, conf := setup(t, inmemdb.NewSheetRepository(db))
	token := testutil.Token(t, conf, "ada", false)

	rec := do(t, srv, httpTest{method: http.MethodGet, path: "/v1/sheets/periods/2025/1", token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decodeSheet(t, rec)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, sheet.DefaultNextAutoID, first.NextAutoID)
	assert.True(t, first.AutoIDEnabled)
	assert.Equal(t, []sheet.Row{}, first.Rows)

	rec = do(t, srv, httpTest{method: http.MethodGet, path: "/v1/sheets/periods/2025/1/", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first, decodeSheet(t, rec))
	assert.Equal(t, 1, db.Len())

	tests := []httpTest{
		{name: "bad year", method: http.MethodGet, path: "/v1/sheets/periods/lol/1", wantCode: http.StatusBadRequest,
			wantData: map[string]string{"year": "must be a positive number"}},
		{name: "bad period", method: http.MethodGet, path: "/v1/sheets/periods/2025/0", wantCode: http.StatusBadRequest,
			wantData: map[string]string{"period": "must be a positive number"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.token = token
			checkCodeAndData(t, tt, do(t, srv, tt))
		})
	}
}

func TestSheetAPI_SaveSheet(t *testing.T) {
	db := inmemdb.Open()
	srv, conf := setup(t, inmemdb.NewSheetRepository(db))
	token := testutil.Token(t, conf, "ada", false)

	tests := []httpTest{
		{
			name:     "invalid json",
			body:     `{"rows": [`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "score out of range",
			body:     `{"rows": [{"name": "Ada", "n1": 7}]}`,
			wantCode: http.StatusBadRequest,
			wantData: map[string]string{"rows[0].n1": "score must be between 0 and 5"},
		},
		{
			name:     "missing student id",
			body:     `{"autoIdEnabled": false, "rows": [{"name": "Ada"}]}`,
			wantCode: http.StatusBadRequest,
			wantData: map[string]string{"rows[0].studentId": "studentId is required when automatic ids are disabled"},
		},
		{
			name:     "create",
			body:     `{"rows": [{"name": " Ada ", "n1": "4", "n2": 4, "n3": 3, "n4": 3}]}`,
			wantCode: http.StatusOK,
		},
		{
			name:     "update",
			body:     `{"nextAutoId": 1002, "rows": [{"studentId": "1001", "name": "Ada", "n1": 5, "n2": 5, "n3": 5, "n4": 5}, {"name": "Bob"}]}`,
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path, tt.token = http.MethodPut, "/v1/sheets/periods/2025/1", token
			checkCodeAndData(t, tt, do(t, srv, tt))
		})
	}

	rec := do(t, srv, httpTest{method: http.MethodGet, path: "/v1/sheets/periods/2025/1", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	s := decodeSheet(t, rec)
	assert.Equal(t, 1, db.Len())
	assert.Equal(t, 1003, s.NextAutoID)
	assert.Equal(t, []sheet.Row{
		{StudentID: "1001", Name: "Ada", N1: 5, N2: 5, N3: 5, N4: 5, Average: 5},
		{StudentID: "1002", Name: "Bob"},
	}, s.Rows)
}

func TestSheetAPI_ListRetrieveDelete(t *testing.T) {
	repo := inmemdb.NewSheetRepository(inmemdb.Open())
	srv, conf := setup(t, repo)
	token := testutil.Token(t, conf, "ada", false)
	adminToken := testutil.Token(t, conf, "admin", true)

	s1 := testutil.CreateSheet(t, repo, 2025, 1)
	s2 := testutil.CreateSheet(t, repo, 2025, 2, sheet.Row{Name: "Ada", N1: 3, N2: 3, N3: 3, N4: 3})

	tests := []httpTest{
		{name: "list", method: http.MethodGet, path: "/v1/sheets", token: token, wantCode: http.StatusOK, wantData: []sheet.Sheet{s1, s2}},
		{name: "retrieve", method: http.MethodGet, path: "/v1/sheets/" + s2.ID, token: token, wantCode: http.StatusOK, wantData: s2},
		{name: "retrieve unknown", method: http.MethodGet, path: "/v1/sheets/nope", token: token, wantCode: http.StatusNotFound,
			wantData: echo.Map{"error": "not found"}},
		{name: "delete as teacher", method: http.MethodDelete, path: "/v1/sheets/" + s1.ID, token: token, wantCode: http.StatusForbidden},
		{name: "delete as admin", method: http.MethodDelete, path: "/v1/sheets/" + s1.ID, token: adminToken, wantCode: http.StatusNoContent},
		{name: "delete again", method: http.MethodDelete, path: "/v1/sheets/" + s1.ID, token: adminToken, wantCode: http.StatusNotFound},
		{name: "list after delete", method: http.MethodGet, path: "/v1/sheets", token: token, wantCode: http.StatusOK, wantData: []sheet.Sheet{s2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, do(t, srv, tt))
		})
	}
}

func TestSheetAPI_UpstreamErrors(t *testing.T) {
	store := testutil.NewMockStore(t, "sheets")
	client := remote.New(store.URL, "sheets", remote.WithBackoffStep(time.Millisecond))
	srv, conf := setup(t, remote.NewSheetRepository(client))
	token := testutil.Token(t, conf, "ada", false)

	t.Run("upstream unavailable", func(t *testing.T) {
		store.FailNext(http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusServiceUnavailable)
		tt := httpTest{method: http.MethodGet, path: "/v1/sheets/periods/2025/1", token: token,
			wantCode: http.StatusBadGateway, wantData: echo.Map{"error": "sheet store unavailable"}}
		checkCodeAndData(t, tt, do(t, srv, tt))
		assert.Equal(t, 0, store.CountRequests(http.MethodPost))
	})

	t.Run("upstream rejects", func(t *testing.T) {
		store.FailNext(http.StatusUnauthorized)
		tt := httpTest{method: http.MethodGet, path: "/v1/sheets", token: token, wantCode: http.StatusBadGateway}
		checkCodeAndData(t, tt, do(t, srv, tt))
	})

	t.Run("upstream not found", func(t *testing.T) {
		tt := httpTest{method: http.MethodGet, path: "/v1/sheets/42", token: token,
			wantCode: http.StatusNotFound, wantData: echo.Map{"error": "not found"}}
		checkCodeAndData(t, tt, do(t, srv, tt))
	})

	t.Run("upstream ok", func(t *testing.T) {
		tt := httpTest{method: http.MethodGet, path: "/v1/sheets/periods/2025/1", token: token, wantCode: http.StatusOK}
		rec := do(t, srv, tt)
		checkCodeAndData(t, tt, rec)
		assert.Equal(t, "1", decodeSheet(t, rec).ID)
	})
}

type brokenRepo struct {
	sheet.Repository
}

func (brokenRepo) ListSheets(context.Context, sheet.Filter) ([]sheet.Record, error) {
	return nil, errors.New("connection refused")
}

func TestSheetAPI_InternalError(t *testing.T) {
	srv, conf := setup(t, brokenRepo{})
	token := testutil.Token(t, conf, "ada", false)

	tt := httpTest{
		method:   http.MethodGet,
		path:     "/v1/sheets",
		token:    token,
		wantCode: http.StatusInternalServerError,
		wantData: echo.Map{"error": http.StatusText(http.StatusInternalServerError)},
	}
	checkCodeAndData(t, tt, do(t, srv, tt))
	assert.Len(t, srv.shutdown, 0)
}
