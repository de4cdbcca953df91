package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"dcinv/internal/store"
)

func (a *API) CreateService(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string   `json:"name"`
		RackIDs []string `json:"rack_ids"`
		IPList  []string `json:"ip_list"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	svc, err := a.Store.CreateService(r.Context(), store.CreateServiceParams{
		Name:    req.Name,
		RackIDs: req.RackIDs,
		IPList:  req.IPList,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, svc)
}

func (a *API) GetService(w http.ResponseWriter, r *http.Request) {
	svc, err := a.Store.GetService(r.Context(), pathID(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, svc)
}

func (a *API) ListServices(w http.ResponseWriter, r *http.Request) {
	svcs, err := a.Store.ListServices(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, svcs)
}

func (a *API) UpdateService(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    *string  `json:"name"`
		RackIDs []string `json:"rack_ids"`
		IPList  []string `json:"ip_list"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	svc, err := a.Store.UpdateService(r.Context(), pathID(r), store.UpdateServiceParams{
		Name:    req.Name,
		RackIDs: req.RackIDs,
		IPList:  req.IPList,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, svc)
}

func (a *API) DeleteService(w http.ResponseWriter, r *http.Request) {
	if err := a.Store.DeleteService(r.Context(), pathID(r)); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}

func (a *API) ListHostsOfService(w http.ResponseWriter, r *http.Request) {
	hosts, err := a.Store.ListHostsByService(r.Context(), pathID(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, hosts)
}

func (a *API) AddServiceIP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IP string `json:"ip"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.IP == "" {
		writeJSON(w, 400, map[string]any{"error": "missing ip"})
		return
	}
	if err := a.Store.AddIPToService(r.Context(), pathID(r), req.IP); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}

func (a *API) RemoveServiceIP(w http.ResponseWriter, r *http.Request) {
	ip := mux.Vars(r)["ip"]
	if err := a.Store.RemoveIPFromService(r.Context(), pathID(r), ip); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}
