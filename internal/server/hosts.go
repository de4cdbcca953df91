package server

import (
	"net/http"

	"dcinv/internal/store"
)

func (a *API) CreateHost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string  `json:"name"`
		Height int     `json:"height"`
		RackID string  `json:"rack_id"`
		IP     *string `json:"ip"`
		Pos    *int    `json:"pos"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	host, err := a.Store.CreateHost(r.Context(), store.CreateHostParams{
		Name:   req.Name,
		Height: req.Height,
		RackID: req.RackID,
		IP:     req.IP,
		Pos:    req.Pos,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, host)
}

func (a *API) GetHost(w http.ResponseWriter, r *http.Request) {
	host, err := a.Store.GetHost(r.Context(), pathID(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, host)
}

func (a *API) ListHosts(w http.ResponseWriter, r *http.Request) {
	hosts, err := a.Store.ListHosts(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, hosts)
}

func (a *API) UpdateHost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    *string `json:"name"`
		Height  *int    `json:"height"`
		IP      *string `json:"ip"`
		RackID  *string `json:"rack_id"`
		Pos     *int    `json:"pos"`
		Running *bool   `json:"running"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	host, err := a.Store.UpdateHost(r.Context(), pathID(r), store.UpdateHostParams{
		Name:    req.Name,
		Height:  req.Height,
		IP:      req.IP,
		RackID:  req.RackID,
		Pos:     req.Pos,
		Running: req.Running,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, host)
}

func (a *API) DeleteHost(w http.ResponseWriter, r *http.Request) {
	if err := a.Store.DeleteHost(r.Context(), pathID(r)); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}
