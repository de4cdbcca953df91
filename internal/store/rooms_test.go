package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRoomInheritsHeight(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dc, err := s.CreateDatacenter(ctx, CreateDatacenterParams{Name: "fra1", Height: 45})
	require.NoError(t, err)

	room := mustRoom(t, s, "r1", dc.ID)
	assert.Equal(t, 45, room.Height)

	explicit, err := s.CreateRoom(ctx, CreateRoomParams{Name: "r2", DCID: dc.ID, Height: 20})
	require.NoError(t, err)
	assert.Equal(t, 20, explicit.Height)
}

func TestRoomCounterRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dc := mustDC(t, s, "ams1")
	room := mustRoom(t, s, "r1", dc.ID)

	got, err := s.GetDatacenter(ctx, dc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.NRooms)

	require.NoError(t, s.DeleteRoom(ctx, room.ID, false))

	got, err = s.GetDatacenter(ctx, dc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.NRooms)
}

func TestCreateRoomUnknownDatacenter(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateRoom(context.Background(), CreateRoomParams{Name: "r1", DCID: "nope"})
	assert.True(t, IsNotFound(err))
}

func TestDeleteRoomRejectsThenCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dc := mustDC(t, s, "lhr1")
	room := mustRoom(t, s, "r1", dc.ID)
	rack := mustRack(t, s, "lhr1-a01", room.ID)
	mustHost(t, s, "web-1", rack.ID)

	err := s.DeleteRoom(ctx, room.ID, false)
	assert.True(t, IsHasDependents(err))

	require.NoError(t, s.DeleteRoom(ctx, room.ID, true))

	got, err := s.GetDatacenter(ctx, dc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.NRooms)
	assert.Equal(t, 0, got.NRacks)
	assert.Equal(t, 0, got.NHosts)
}

func TestListRoomsByDatacenter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dc := mustDC(t, s, "sin1")
	other := mustDC(t, s, "sin2")
	mustRoom(t, s, "a", dc.ID)
	mustRoom(t, s, "b", dc.ID)
	mustRoom(t, s, "c", other.ID)

	rooms, err := s.ListRoomsByDatacenter(ctx, dc.ID)
	require.NoError(t, err)
	assert.Len(t, rooms, 2)

	_, err = s.ListRoomsByDatacenter(ctx, "missing")
	assert.True(t, IsNotFound(err))
}
