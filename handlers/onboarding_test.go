package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"profitpilot/middleware"
	"profitpilot/services/backend"
	"profitpilot/services/formstore"
	"profitpilot/services/wizard"
	"profitpilot/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router  *gin.Engine
	mr      *miniredis.Miniredis
	handler *OnboardingHandler
}

func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/subscriptions/checkout-session", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://pay.example/cs_1"})
	})
	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":1,"name":"Toys"}]}`))
	})
	mux.HandleFunc("/api/experience-levels", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":2,"title":"Beginner"}]`))
	})
	mux.HandleFunc("/api/countries", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":3,"name":"United States"}]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	api := backend.NewClient(fakeBackend(t).URL, 5*time.Second)
	ops := backend.Operations{Checkout: api, Accounts: api, Reference: api, Profile: api}

	registry := wizard.NewRegistry(time.Hour, nil)
	h := NewOnboardingHandler(registry, func(sessionID string) *wizard.Controller {
		return wizard.NewController(wizard.Deps{
			Store: formstore.New(client, sessionID, time.Hour, nil),
			Ops:   ops,
			Config: wizard.Config{
				PackageSelectionURL: "https://app.example/pricing",
				DashboardURL:        "https://app.example/dashboard",
			},
		})
	}, time.Hour)
	h.ReferenceWait = 2 * time.Second

	r := gin.New()
	r.Use(middleware.RequestLogger(zap.NewNop()))
	group := r.Group("/api/onboarding")
	group.POST("/mount", middleware.WizardSessionMiddleware(true), h.MountHandler)
	session := group.Group("")
	session.Use(middleware.WizardSessionMiddleware(false))
	session.GET("/view", h.ViewHandler)
	session.PATCH("/form", h.UpdateFormHandler)
	session.POST("/next", h.NextHandler)
	session.GET("/reference", h.ReferenceHandler)
	session.DELETE("", h.ClearHandler)

	return &testEnv{router: r, mr: mr, handler: h}
}

type viewResponse struct {
	Session string      `json:"session"`
	View    wizard.View `json:"view"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, viewResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp viewResponse
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
	}
	return w, resp
}

func TestMountIssuesSessionAndReloads(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.do(t, http.MethodPost, "/api/onboarding/mount?step=1&ref=FRIEND10&email=jane%40x.com", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, resp.Session)
	assert.EqualValues(t, 1, resp.View.Step)
	assert.Equal(t, "jane@x.com", resp.View.Form.Email)
	token := resp.Session

	w, resp = env.do(t, http.MethodPost, "/api/onboarding/mount?step=1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp.Session)
	assert.Equal(t, "jane@x.com", resp.View.Form.Email)
	assert.Equal(t, 1, env.handler.Registry.Len())
}

func TestSessionEndpointsRequireToken(t *testing.T) {
	env := newTestEnv(t)
	w, _ := env.do(t, http.MethodGet, "/api/onboarding/view", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUnmountedSessionIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, resp := env.do(t, http.MethodPost, "/api/onboarding/mount", "", nil)
	sessionID, err := utils.ExtractSessionID(resp.Session)
	require.NoError(t, err)
	env.handler.Registry.Remove(sessionID)

	w, _ := env.do(t, http.MethodGet, "/api/onboarding/view", resp.Session, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFormAndNextFlow(t *testing.T) {
	env := newTestEnv(t)
	_, resp := env.do(t, http.MethodPost, "/api/onboarding/mount?pricing=price_pro", "", nil)
	token := resp.Session

	w, resp := env.do(t, http.MethodPost, "/api/onboarding/next", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, resp.View.Step)
	assert.Equal(t, "Full name is required", resp.View.Errors[wizard.FieldFullName])

	w, resp = env.do(t, http.MethodPatch, "/api/onboarding/form", token, map[string]interface{}{
		"fullName": "Jane Doe",
		"email":    "jane@x.com",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp.View.Errors)

	_, resp = env.do(t, http.MethodPost, "/api/onboarding/next", token, nil)
	assert.EqualValues(t, 1, resp.View.Step)

	_, resp = env.do(t, http.MethodPost, "/api/onboarding/next", token, nil)
	require.NotNil(t, resp.View.Navigation)
	assert.Equal(t, wizard.NavCheckout, resp.View.Navigation.Kind)
	assert.Equal(t, "https://pay.example/cs_1", resp.View.Navigation.URL)
}

func TestUpdateFormRejectsBadJSON(t *testing.T) {
	env := newTestEnv(t)
	_, resp := env.do(t, http.MethodPost, "/api/onboarding/mount", "", nil)

	req := httptest.NewRequest(http.MethodPatch, "/api/onboarding/form", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.SessionHeader, resp.Session)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReferenceEndpoint(t *testing.T) {
	env := newTestEnv(t)
	_, resp := env.do(t, http.MethodPost, "/api/onboarding/mount", "", nil)
	token := resp.Session

	w, _ := env.do(t, http.MethodGet, "/api/onboarding/reference", token, nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	env.do(t, http.MethodPost, "/api/onboarding/mount?step=4", token, nil)
	w, _ = env.do(t, http.MethodGet, "/api/onboarding/reference", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Ready     bool `json:"ready"`
		Reference struct {
			Categories       []map[string]string `json:"categories"`
			ExperienceLevels []map[string]string `json:"experienceLevels"`
		} `json:"reference"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Ready)
	require.Len(t, body.Reference.Categories, 1)
	assert.Equal(t, "Toys", body.Reference.Categories[0]["label"])
	require.Len(t, body.Reference.ExperienceLevels, 1)
	assert.Equal(t, "Beginner", body.Reference.ExperienceLevels[0]["label"])
}

func TestFinishAndClear(t *testing.T) {
	env := newTestEnv(t)
	_, resp := env.do(t, http.MethodPost, "/api/onboarding/mount?step=7&fullname=Jane", "", nil)
	token := resp.Session

	_, resp = env.do(t, http.MethodPost, "/api/onboarding/next", token, nil)
	require.NotNil(t, resp.View.Navigation)
	assert.Equal(t, wizard.NavDashboard, resp.View.Navigation.Kind)
	assert.True(t, resp.View.Finished)

	w, _ := env.do(t, http.MethodPost, "/api/onboarding/next", token, nil)
	assert.Equal(t, http.StatusGone, w.Code)

	// Reloading after the exit starts again from the first step.
	_, resp = env.do(t, http.MethodPost, "/api/onboarding/mount", token, nil)
	assert.EqualValues(t, 0, resp.View.Step)
	assert.Empty(t, resp.View.Form.FullName)

	env.do(t, http.MethodPatch, "/api/onboarding/form", token, map[string]string{"fullName": "Jane"})
	w, _ = env.do(t, http.MethodDelete, "/api/onboarding", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, env.mr.Keys())
	assert.Zero(t, env.handler.Registry.Len())
}

func TestUpdateFormAfterFinishIsGone(t *testing.T) {
	env := newTestEnv(t)
	_, resp := env.do(t, http.MethodPost, "/api/onboarding/mount?step=7&fullname=Jane&email=jane%40x.com", "", nil)
	token := resp.Session
	env.do(t, http.MethodPost, "/api/onboarding/next", token, nil)

	w, _ := env.do(t, http.MethodPatch, "/api/onboarding/form", token, map[string]string{"fullName": "Stale"})
	assert.Equal(t, http.StatusGone, w.Code)

	_, resp = env.do(t, http.MethodPost, "/api/onboarding/mount", token, nil)
	assert.EqualValues(t, 0, resp.View.Step)
	assert.Empty(t, resp.View.Form.FullName)
	assert.Empty(t, resp.View.Form.Email)
}
