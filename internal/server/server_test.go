package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"triton/internal/app"
	"triton/internal/domain"
	"triton/internal/links"
	"triton/internal/repo"
)

const testJWTSecret = "test-secret"

type staticIssuer struct{ url string }

func (s staticIssuer) GetUnique(context.Context, string, int) (string, error) {
	if s.url == "" {
		return "", links.ErrExhausted
	}
	return s.url, nil
}

type testServer struct {
	URL    string
	App    *app.App
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	a, err := app.New(app.Options{
		Workspace:  t.TempDir(),
		Now:        func() time.Time { return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) },
		Timezone:   "UTC",
		LinkIssuer: staticIssuer{url: "https://x/unique"},
	})
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	handler, err := New(Config{App: a, BasePath: "/v1", Auth: AuthConfig{JWTSecret: testJWTSecret}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		App:    a,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			a.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func signJWT(t *testing.T, subject, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
		Role:             role,
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign jwt: %v", err)
	}
	return signed
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func adminHeaders(t *testing.T) map[string]string {
	return map[string]string{"Authorization": "Bearer " + signJWT(t, "admin", "super_admin")}
}

func TestHealthIsOpen(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
}

func TestUnauthenticatedRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/events", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error.Code != "unauthorized" {
		t.Fatalf("error code %q", envelope.Error.Code)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/events", nil, map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status %d: %s", res.StatusCode, string(data))
	}
}

func TestSuperAdminRequiredForWrites(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	orgAdmin := map[string]string{"Authorization": "Bearer " + signJWT(t, "viewer", "org_admin")}
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/organizations", map[string]any{
		"name": "Grover Academy",
	}, orgAdmin)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("status %d, want 403: %s", res.StatusCode, string(data))
	}
}

func TestCohortLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	admin := adminHeaders(t)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/organizations", map[string]any{
		"name": "Grover Academy",
	}, admin)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create org status %d: %s", res.StatusCode, string(data))
	}
	var org domain.Organization
	if err := json.Unmarshal(data, &org); err != nil {
		t.Fatalf("unmarshal org: %v", err)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/cohorts", map[string]any{
		"organization_id": org.UID,
		"program_label":   "ep",
		"cohort_label":    "2026",
		"code":            "Trout  VIPER",
	}, admin)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create cohort status %d: %s", res.StatusCode, string(data))
	}
	var pc domain.ProjectCohort
	if err := json.Unmarshal(data, &pc); err != nil {
		t.Fatalf("unmarshal cohort: %v", err)
	}
	if pc.Code != "trout viper" {
		t.Fatalf("code not normalized: %q", pc.Code)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/cohorts/"+pc.UID+"/status", nil, admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("cohort status %d: %s", res.StatusCode, string(data))
	}
	var cs CohortStatusResponse
	if err := json.Unmarshal(data, &cs); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if len(cs.Checkpoints) == 0 || len(cs.Tasks) == 0 {
		t.Fatalf("cohort seeded empty: %d checkpoints, %d tasks", len(cs.Checkpoints), len(cs.Tasks))
	}

	var editable domain.Task
	for _, task := range cs.Tasks {
		if task.NonAdminMayEdit && task.DataType == "input:text" {
			editable = task
			break
		}
	}
	if editable.UID == "" {
		t.Fatal("no editable input task seeded")
	}
	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v1/tasks/"+editable.UID+"/attachment", map[string]any{
		"attachment": "Pat Doe",
	}, admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("attach status %d: %s", res.StatusCode, string(data))
	}
	var updated domain.Task
	if err := json.Unmarshal(data, &updated); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if updated.Status != "complete" {
		t.Fatalf("task status %q after attach", updated.Status)
	}
}

func TestAdminOnlyTaskForbiddenForOrgAdmin(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	admin := adminHeaders(t)

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/organizations", map[string]any{"name": "Org"}, admin)
	var org domain.Organization
	_ = json.Unmarshal(data, &org)
	_, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/cohorts", map[string]any{
		"organization_id": org.UID,
		"program_label":   "ep",
		"cohort_label":    "2026",
		"code":            "green whale",
	}, admin)
	var pc domain.ProjectCohort
	_ = json.Unmarshal(data, &pc)

	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/cohorts/"+pc.UID+"/status", nil, admin)
	var cs CohortStatusResponse
	_ = json.Unmarshal(data, &cs)
	var reserved domain.Task
	for _, task := range cs.Tasks {
		if !task.NonAdminMayEdit {
			reserved = task
			break
		}
	}
	if reserved.UID == "" {
		t.Fatal("no admin-reserved task seeded")
	}

	orgAdmin := map[string]string{"Authorization": "Bearer " + signJWT(t, "liaison", "org_admin")}
	res, body := doJSON(t, client, http.MethodPut, srv.URL+"/v1/tasks/"+reserved.UID+"/attachment", map[string]any{
		"attachment": "ready",
	}, orgAdmin)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("status %d, want 403: %s", res.StatusCode, string(body))
	}
}

func TestPortalRouteSkipsOperatorAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	admin := adminHeaders(t)

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/organizations", map[string]any{"name": "Org"}, admin)
	var org domain.Organization
	_ = json.Unmarshal(data, &org)
	_, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/cohorts", map[string]any{
		"organization_id": org.UID,
		"program_label":   "ep",
		"cohort_label":    "2026",
		"code":            "trout viper",
	}, admin)
	var pc domain.ProjectCohort
	if err := json.Unmarshal(data, &pc); err != nil || pc.UID == "" {
		t.Fatalf("create cohort: %v %s", err, string(data))
	}

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/portal/route", bytes.NewReader(nil))
	if err != nil {
		t.Fatal(err)
	}
	req.AddCookie(&http.Cookie{Name: "triton_code", Value: "trout viper"})
	req.AddCookie(&http.Cookie{Name: "triton_token", Value: "alice"})
	res, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("portal route status %d: %s", res.StatusCode, string(body))
	}
	var rr RouteResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		t.Fatalf("unmarshal decision: %v", err)
	}
	// default template survey monitors are blank, so entry fails closed
	if rr.Decision.DeniedReason != "survey not ready" {
		t.Fatalf("denied reason %q, want survey not ready", rr.Decision.DeniedReason)
	}
}

func TestAPIKeyAuthenticates(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	secret := "tk_testkey"
	tx, err := srv.App.DB.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	key := domain.APIKey{
		ID:        "key-1",
		ActorID:   "robot",
		Role:      "super_admin",
		Name:      "ci",
		KeyHash:   repo.HashAPIKey(secret),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := srv.App.Repo.InsertAPIKey(context.Background(), tx, key); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/events", nil, map[string]string{
		"X-Api-Key": secret,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("api key status %d: %s", res.StatusCode, string(data))
	}
}
