package server

import (
	"net/http"

	"dcinv/internal/store"
)

func (a *API) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		Height int    `json:"height"`
		DCID   string `json:"dc_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	room, err := a.Store.CreateRoom(r.Context(), store.CreateRoomParams{
		Name:   req.Name,
		Height: req.Height,
		DCID:   req.DCID,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, room)
}

func (a *API) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := a.Store.GetRoom(r.Context(), pathID(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, room)
}

func (a *API) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := a.Store.ListRooms(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, rooms)
}

func (a *API) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   *string `json:"name"`
		Height *int    `json:"height"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	room, err := a.Store.UpdateRoom(r.Context(), pathID(r), store.UpdateRoomParams{
		Name:   req.Name,
		Height: req.Height,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, room)
}

func (a *API) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	if err := a.Store.DeleteRoom(r.Context(), pathID(r), forceFlag(r)); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}

func (a *API) ListRacksOfRoom(w http.ResponseWriter, r *http.Request) {
	racks, err := a.Store.ListRacksByRoom(r.Context(), pathID(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, 200, racks)
}
