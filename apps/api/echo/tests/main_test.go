package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core/user"
	logsvc "github.com/trezcool/academia/services/logger"
	sessionsvc "github.com/trezcool/academia/services/session"
	"github.com/trezcool/academia/tests"
)

const pwd = "Pa$$w0rd!"

type echoMap = map[string]interface{}

type testApp struct {
	env *testutil.Env
	srv echoapi.Server
}

func setup(t *testing.T) *testApp {
	t.Helper()
	env := testutil.NewEnv(t)

	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "API : ", log.LstdFlags), env.Conf)
	logger.Enable(false)
	validate, translator := echoapi.NewValidator()
	user.LoadCommonPasswords(nil)

	srv := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           env.Conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		Sessions:       sessionsvc.NewMemoryStore(),
		DisableReqLogs: true,
		UserSvc:        env.UserSvc,
		OrgSvc:         env.OrgSvc,
		InvitationSvc:  env.InviteSvc,
		CourseSvc:      env.CourseSvc,
		DashboardSvc:   env.DashSvc,
		ExportSvc:      env.ExportSvc,
	})
	return &testApp{env: env, srv: srv}
}

type (
	errorResponse struct {
		Error interface{} `json:"error"`
	}

	response struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
)

func (app *testApp) do(t *testing.T, method, path string, body interface{}, session *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if session != nil {
		req.AddCookie(session)
	}
	rec := httptest.NewRecorder()
	app.srv.ServeHTTP(rec, req)
	return rec
}

// login signs usr in and returns their session cookie.
func (app *testApp) login(t *testing.T, email string) *http.Cookie {
	t.Helper()
	rec := app.do(t, http.MethodPost, "/v1/auth/login", echoapi.LoginRequest{Email: email, Password: pwd}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	return cookie
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == echoapi.SessionCookieName {
			return c
		}
	}
	return nil
}

// decodeData decodes the "data" member of a success response into v.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) response {
	t.Helper()
	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	if v != nil {
		require.NoError(t, json.Unmarshal(resp.Data, v))
	}
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) interface{} {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Error
}
