package server

import (
	"net/http"

	"dcinv/internal/store"
)

type datacenterRequest struct {
	Name     string               `json:"name"`
	Height   *int                 `json:"height,omitempty"`
	IPRanges []store.IPRangeInput `json:"ip_ranges,omitempty"`
}

func (a *API) CreateDatacenter(w http.ResponseWriter, r *http.Request) {
	var req datacenterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p := store.CreateDatacenterParams{Name: req.Name, IPRanges: req.IPRanges}
	if req.Height != nil {
		p.Height = *req.Height
	}
	dc, err := a.Store.CreateDatacenter(r.Context(), p)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, dc)
}

func (a *API) GetDatacenter(w http.ResponseWriter, r *http.Request) {
	dc, err := a.Store.GetDatacenter(r.Context(), pathID(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, dc)
}

func (a *API) ListDatacenters(w http.ResponseWriter, r *http.Request) {
	dcs, err := a.Store.ListDatacenters(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, dcs)
}

func (a *API) UpdateDatacenter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     *string              `json:"name"`
		Height   *int                 `json:"height"`
		IPRanges []store.IPRangeInput `json:"ip_ranges"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	dc, err := a.Store.UpdateDatacenter(r.Context(), pathID(r), store.UpdateDatacenterParams{
		Name:     req.Name,
		Height:   req.Height,
		IPRanges: req.IPRanges,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, dc)
}

func (a *API) DeleteDatacenter(w http.ResponseWriter, r *http.Request) {
	if err := a.Store.DeleteDatacenter(r.Context(), pathID(r), forceFlag(r)); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}

func (a *API) ListRoomsOfDatacenter(w http.ResponseWriter, r *http.Request) {
	rooms, err := a.Store.ListRoomsByDatacenter(r.Context(), pathID(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, rooms)
}

func (a *API) AddIPRange(w http.ResponseWriter, r *http.Request) {
	var req store.IPRangeInput
	if !decodeBody(w, r, &req) {
		return
	}
	rng, err := a.Store.AddIPRange(r.Context(), pathID(r), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, rng)
}
