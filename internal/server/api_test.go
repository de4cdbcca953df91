package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcinv/internal/store"
)

func newTestAPI(t *testing.T, jwtSecret string) *API {
	t.Helper()
	db, err := store.OpenDB(filepath.Join(t.TempDir(), "inventory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.RunMigrations(db))
	return New(store.New(db), jwtSecret, zerolog.Nop())
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestCreateAndGetDatacenter(t *testing.T) {
	api := newTestAPI(t, "")
	r := api.Routes()

	rec := doJSON(t, r, "POST", "/dc", map[string]any{"name": "fra1"}, "")
	require.Equal(t, 200, rec.Code, rec.Body.String())
	created := decode[store.DatacenterDetail](t, rec)
	assert.Equal(t, "fra1", created.Name)
	assert.NotEmpty(t, created.ID)

	rec = doJSON(t, r, "GET", "/dc/"+created.ID, nil, "")
	require.Equal(t, 200, rec.Code)
	got := decode[store.DatacenterDetail](t, rec)
	assert.Equal(t, created.ID, got.ID)

	rec = doJSON(t, r, "GET", "/dc/all", nil, "")
	require.Equal(t, 200, rec.Code)
	list := decode[[]store.Datacenter](t, rec)
	assert.Len(t, list, 1)
}

func TestTrailingSlashRedirects(t *testing.T) {
	api := newTestAPI(t, "")
	r := api.Routes()

	// the slash variant redirects to the canonical path instead of 404ing
	rec := doJSON(t, r, "POST", "/dc/", map[string]any{"name": "fra1"}, "")
	require.Equal(t, 301, rec.Code, rec.Body.String())
	assert.Equal(t, "/dc", rec.Header().Get("Location"))

	rec = doJSON(t, r, "GET", "/dc/all/", nil, "")
	require.Equal(t, 301, rec.Code)
	assert.Equal(t, "/dc/all", rec.Header().Get("Location"))
}

func TestErrorStatusMapping(t *testing.T) {
	api := newTestAPI(t, "")
	r := api.Routes()

	// unknown id
	rec := doJSON(t, r, "GET", "/dc/no-such-id", nil, "")
	assert.Equal(t, 404, rec.Code)

	// missing name
	rec = doJSON(t, r, "POST", "/dc", map[string]any{}, "")
	assert.Equal(t, 400, rec.Code)

	// duplicate rack name
	dc := decode[store.DatacenterDetail](t, doJSON(t, r, "POST", "/dc", map[string]any{"name": "ams1"}, ""))
	room := decode[store.Room](t, doJSON(t, r, "POST", "/room", map[string]any{"name": "a", "dc_id": dc.ID}, ""))
	rec = doJSON(t, r, "POST", "/rack", map[string]any{"name": "a01", "room_id": room.ID}, "")
	require.Equal(t, 200, rec.Code)
	rec = doJSON(t, r, "POST", "/rack", map[string]any{"name": "a01", "room_id": room.ID}, "")
	assert.Equal(t, 409, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "conflict", body["kind"])
}

func TestDeleteRequiresForceWithChildren(t *testing.T) {
	api := newTestAPI(t, "")
	r := api.Routes()

	dc := decode[store.DatacenterDetail](t, doJSON(t, r, "POST", "/dc", map[string]any{"name": "lhr1"}, ""))
	decode[store.Room](t, doJSON(t, r, "POST", "/room", map[string]any{"name": "a", "dc_id": dc.ID}, ""))

	rec := doJSON(t, r, "DELETE", "/dc/"+dc.ID, nil, "")
	assert.Equal(t, 409, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "has_dependents", body["kind"])

	rec = doJSON(t, r, "DELETE", "/dc/"+dc.ID+"?force=true", nil, "")
	assert.Equal(t, 200, rec.Code)

	rec = doJSON(t, r, "GET", "/dc/"+dc.ID, nil, "")
	assert.Equal(t, 404, rec.Code)
}

func TestChildListingRoutes(t *testing.T) {
	api := newTestAPI(t, "")
	r := api.Routes()

	dc := decode[store.DatacenterDetail](t, doJSON(t, r, "POST", "/dc", map[string]any{"name": "sin1"}, ""))
	room := decode[store.Room](t, doJSON(t, r, "POST", "/room", map[string]any{"name": "a", "dc_id": dc.ID}, ""))
	rack := decode[store.Rack](t, doJSON(t, r, "POST", "/rack", map[string]any{"name": "a01", "room_id": room.ID}, ""))
	doJSON(t, r, "POST", "/host", map[string]any{"name": "web-1", "height": 1, "rack_id": rack.ID}, "")

	rec := doJSON(t, r, "GET", "/dc/"+dc.ID+"/room/all", nil, "")
	require.Equal(t, 200, rec.Code)
	assert.Len(t, decode[[]store.Room](t, rec), 1)

	rec = doJSON(t, r, "GET", "/room/"+room.ID+"/rack/all", nil, "")
	require.Equal(t, 200, rec.Code)
	assert.Len(t, decode[[]store.Rack](t, rec), 1)

	rec = doJSON(t, r, "GET", "/rack/"+rack.ID+"/host/all", nil, "")
	require.Equal(t, 200, rec.Code)
	assert.Len(t, decode[[]store.Host](t, rec), 1)
}

func TestServiceAssignEndpoints(t *testing.T) {
	api := newTestAPI(t, "")
	r := api.Routes()

	dc := decode[store.DatacenterDetail](t, doJSON(t, r, "POST", "/dc", map[string]any{"name": "nrt1"}, ""))
	room := decode[store.Room](t, doJSON(t, r, "POST", "/room", map[string]any{"name": "a", "dc_id": dc.ID}, ""))
	rack := decode[store.Rack](t, doJSON(t, r, "POST", "/rack", map[string]any{"name": "a01", "room_id": room.ID}, ""))
	svc := decode[store.ServiceDetail](t, doJSON(t, r, "POST", "/service", map[string]any{"name": "web"}, ""))

	rec := doJSON(t, r, "POST", "/rack/"+rack.ID+"/assign", map[string]any{"service_id": svc.ID}, "")
	require.Equal(t, 200, rec.Code, rec.Body.String())

	rec = doJSON(t, r, "GET", "/service/"+svc.ID, nil, "")
	require.Equal(t, 200, rec.Code)
	got := decode[store.ServiceDetail](t, rec)
	assert.Equal(t, 1, got.NRacks)

	rec = doJSON(t, r, "POST", "/rack/"+rack.ID+"/unassign", nil, "")
	require.Equal(t, 200, rec.Code)

	rec = doJSON(t, r, "GET", "/service/"+svc.ID, nil, "")
	got = decode[store.ServiceDetail](t, rec)
	assert.Equal(t, 0, got.NRacks)

	rec = doJSON(t, r, "POST", "/service/"+svc.ID+"/ip", map[string]any{"ip": "203.0.113.9"}, "")
	require.Equal(t, 200, rec.Code)
	rec = doJSON(t, r, "DELETE", "/service/"+svc.ID+"/ip/203.0.113.9", nil, "")
	require.Equal(t, 200, rec.Code)
}

func TestAuthGuardsMutations(t *testing.T) {
	api := newTestAPI(t, "test-secret")
	r := api.Routes()

	// mutation without a token is rejected
	rec := doJSON(t, r, "POST", "/dc", map[string]any{"name": "fra1"}, "")
	assert.Equal(t, 401, rec.Code)

	// reads stay open
	rec = doJSON(t, r, "GET", "/dc/all", nil, "")
	assert.Equal(t, 200, rec.Code)

	// register + login issues a usable token
	rec = doJSON(t, r, "POST", "/auth/register", map[string]any{"username": "alice", "password": "pw"}, "")
	require.Equal(t, 200, rec.Code)

	rec = doJSON(t, r, "POST", "/auth/login", map[string]any{"username": "alice", "password": "pw"}, "")
	require.Equal(t, 200, rec.Code)
	login := decode[map[string]any](t, rec)
	token, _ := login["token"].(string)
	require.NotEmpty(t, token)

	rec = doJSON(t, r, "POST", "/dc", map[string]any{"name": "fra1"}, token)
	assert.Equal(t, 200, rec.Code, rec.Body.String())

	// garbage token is rejected
	rec = doJSON(t, r, "POST", "/dc", map[string]any{"name": "fra2"}, "not-a-jwt")
	assert.Equal(t, 401, rec.Code)

	// bad password
	rec = doJSON(t, r, "POST", "/auth/login", map[string]any{"username": "alice", "password": "nope"}, "")
	assert.Equal(t, 401, rec.Code)
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t, "")
	rec := doJSON(t, api.Routes(), "GET", "/healthz", nil, "")
	assert.Equal(t, 200, rec.Code)
}
