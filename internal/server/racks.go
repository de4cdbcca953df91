package server

import (
	"net/http"

	"dcinv/internal/store"
)

func (a *API) CreateRack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		Height int    `json:"height"`
		RoomID string `json:"room_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	rack, err := a.Store.CreateRack(r.Context(), store.CreateRackParams{
		Name:   req.Name,
		Height: req.Height,
		RoomID: req.RoomID,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, rack)
}

func (a *API) GetRack(w http.ResponseWriter, r *http.Request) {
	rack, err := a.Store.GetRack(r.Context(), pathID(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, rack)
}

func (a *API) ListRacks(w http.ResponseWriter, r *http.Request) {
	racks, err := a.Store.ListRacks(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, racks)
}

func (a *API) UpdateRack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name            *string `json:"name"`
		Height          *int    `json:"height"`
		RoomID          *string `json:"room_id"`
		ServiceID       *string `json:"service_id"`
		UnassignService bool    `json:"unassign_service"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	rack, err := a.Store.UpdateRack(r.Context(), pathID(r), store.UpdateRackParams{
		Name:            req.Name,
		Height:          req.Height,
		RoomID:          req.RoomID,
		ServiceID:       req.ServiceID,
		UnassignService: req.UnassignService,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, rack)
}

func (a *API) DeleteRack(w http.ResponseWriter, r *http.Request) {
	if err := a.Store.DeleteRack(r.Context(), pathID(r), forceFlag(r)); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}

func (a *API) ListHostsOfRack(w http.ResponseWriter, r *http.Request) {
	hosts, err := a.Store.ListHostsByRack(r.Context(), pathID(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, hosts)
}

func (a *API) AssignRack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ServiceID string `json:"service_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ServiceID == "" {
		writeJSON(w, 400, map[string]any{"error": "missing service_id"})
		return
	}
	if err := a.Store.AssignRackToService(r.Context(), pathID(r), req.ServiceID); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}

func (a *API) UnassignRack(w http.ResponseWriter, r *http.Request) {
	if err := a.Store.UnassignRackFromService(r.Context(), pathID(r)); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}
