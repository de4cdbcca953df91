package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "inventory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, RunMigrations(db))
	return New(db)
}

func mustDC(t *testing.T, s *Store, name string, ranges ...IPRangeInput) *DatacenterDetail {
	t.Helper()
	dc, err := s.CreateDatacenter(context.Background(), CreateDatacenterParams{
		Name:     name,
		IPRanges: ranges,
	})
	require.NoError(t, err)
	return dc
}

func mustRoom(t *testing.T, s *Store, name, dcID string) *Room {
	t.Helper()
	room, err := s.CreateRoom(context.Background(), CreateRoomParams{Name: name, DCID: dcID})
	require.NoError(t, err)
	return room
}

func mustRack(t *testing.T, s *Store, name, roomID string) *Rack {
	t.Helper()
	rack, err := s.CreateRack(context.Background(), CreateRackParams{Name: name, RoomID: roomID})
	require.NoError(t, err)
	return rack
}

func mustHost(t *testing.T, s *Store, name, rackID string) *Host {
	t.Helper()
	host, err := s.CreateHost(context.Background(), CreateHostParams{
		Name:   name,
		Height: 1,
		RackID: rackID,
	})
	require.NoError(t, err)
	return host
}

func mustService(t *testing.T, s *Store, name string, rackIDs ...string) *ServiceDetail {
	t.Helper()
	svc, err := s.CreateService(context.Background(), CreateServiceParams{
		Name:    name,
		RackIDs: rackIDs,
	})
	require.NoError(t, err)
	return svc
}
