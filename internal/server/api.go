package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"dcinv/internal/store"
)

type API struct {
	Store     *store.Store
	JWTSecret string
	Logger    zerolog.Logger
}

func New(st *store.Store, jwtSecret string, logger zerolog.Logger) *API {
	return &API{Store: st, JWTSecret: jwtSecret, Logger: logger}
}

// Routes builds the full router. Inventory mutations sit behind the JWT
// guard; reads, auth, and ops endpoints do not.
func (a *API) Routes() *mux.Router {
	r := mux.NewRouter()
	r.StrictSlash(true)
	r.Use(a.logRequests, measureRequests)

	r.HandleFunc("/healthz", a.Healthz).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.HandleFunc("/auth/register", a.Register).Methods("POST")
	r.HandleFunc("/auth/login", a.Login).Methods("POST")
	r.HandleFunc("/auth/logout", a.Logout).Methods("POST")

	inv := r.PathPrefix("/").Subrouter()
	inv.Use(a.requireAuth)

	inv.HandleFunc("/dc", a.CreateDatacenter).Methods("POST")
	inv.HandleFunc("/dc/all", a.ListDatacenters).Methods("GET")
	inv.HandleFunc("/dc/{id}", a.GetDatacenter).Methods("GET")
	inv.HandleFunc("/dc/{id}", a.UpdateDatacenter).Methods("PUT")
	inv.HandleFunc("/dc/{id}", a.DeleteDatacenter).Methods("DELETE")
	inv.HandleFunc("/dc/{id}/room/all", a.ListRoomsOfDatacenter).Methods("GET")
	inv.HandleFunc("/dc/{id}/iprange", a.AddIPRange).Methods("POST")

	inv.HandleFunc("/room", a.CreateRoom).Methods("POST")
	inv.HandleFunc("/room/all", a.ListRooms).Methods("GET")
	inv.HandleFunc("/room/{id}", a.GetRoom).Methods("GET")
	inv.HandleFunc("/room/{id}", a.UpdateRoom).Methods("PUT")
	inv.HandleFunc("/room/{id}", a.DeleteRoom).Methods("DELETE")
	inv.HandleFunc("/room/{id}/rack/all", a.ListRacksOfRoom).Methods("GET")

	inv.HandleFunc("/rack", a.CreateRack).Methods("POST")
	inv.HandleFunc("/rack/all", a.ListRacks).Methods("GET")
	inv.HandleFunc("/rack/{id}", a.GetRack).Methods("GET")
	inv.HandleFunc("/rack/{id}", a.UpdateRack).Methods("PUT")
	inv.HandleFunc("/rack/{id}", a.DeleteRack).Methods("DELETE")
	inv.HandleFunc("/rack/{id}/host/all", a.ListHostsOfRack).Methods("GET")
	inv.HandleFunc("/rack/{id}/assign", a.AssignRack).Methods("POST")
	inv.HandleFunc("/rack/{id}/unassign", a.UnassignRack).Methods("POST")

	inv.HandleFunc("/host", a.CreateHost).Methods("POST")
	inv.HandleFunc("/host/all", a.ListHosts).Methods("GET")
	inv.HandleFunc("/host/{id}", a.GetHost).Methods("GET")
	inv.HandleFunc("/host/{id}", a.UpdateHost).Methods("PUT")
	inv.HandleFunc("/host/{id}", a.DeleteHost).Methods("DELETE")

	inv.HandleFunc("/service", a.CreateService).Methods("POST")
	inv.HandleFunc("/service/all", a.ListServices).Methods("GET")
	inv.HandleFunc("/service/{id}", a.GetService).Methods("GET")
	inv.HandleFunc("/service/{id}", a.UpdateService).Methods("PUT")
	inv.HandleFunc("/service/{id}", a.DeleteService).Methods("DELETE")
	inv.HandleFunc("/service/{id}/host/all", a.ListHostsOfService).Methods("GET")
	inv.HandleFunc("/service/{id}/ip", a.AddServiceIP).Methods("POST")
	inv.HandleFunc("/service/{id}/ip/{ip}", a.RemoveServiceIP).Methods("DELETE")

	return r
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := a.Store.DB().PingContext(r.Context()); err != nil {
		writeJSON(w, 503, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, 2<<20))
}

// decodeBody unmarshals the request body into v, reporting a 400 itself.
// The bool tells the handler whether to continue.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := readBody(r)
	if err != nil {
		writeJSON(w, 400, map[string]any{"error": "bad body"})
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeJSON(w, 400, map[string]any{"error": "bad json"})
		return false
	}
	return true
}

// writeError maps store error kinds onto HTTP status codes.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var code int
	var kind string
	switch {
	case store.IsNotFound(err):
		code, kind = 404, "not_found"
	case store.IsHasDependents(err):
		code, kind = 409, "has_dependents"
	case store.IsConflict(err):
		code, kind = 409, "conflict"
	case store.IsValidation(err):
		code, kind = 400, "validation"
	default:
		code, kind = 500, "internal"
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, code, map[string]any{"error": err.Error(), "kind": kind})
}

func pathID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

func forceFlag(r *http.Request) bool {
	return r.URL.Query().Get("force") == "true"
}
