package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDatacenterDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dc := mustDC(t, s, "fra1")
	assert.Equal(t, DefaultRackUnits, dc.Height)
	assert.Equal(t, 0, dc.NRooms)
	assert.Empty(t, dc.Rooms)
	assert.Empty(t, dc.IPRanges)

	got, err := s.GetDatacenter(ctx, dc.ID)
	require.NoError(t, err)
	assert.Equal(t, "fra1", got.Name)
}

func TestCreateDatacenterValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateDatacenter(ctx, CreateDatacenterParams{})
	assert.True(t, IsValidation(err))

	_, err = s.CreateDatacenter(ctx, CreateDatacenterParams{Name: "x", Height: -3})
	assert.True(t, IsValidation(err))

	_, err = s.CreateDatacenter(ctx, CreateDatacenterParams{
		Name:     "bad-range",
		IPRanges: []IPRangeInput{{StartIP: "10.0.0.9", EndIP: "10.0.0.1"}},
	})
	assert.True(t, IsValidation(err))
}

func TestDatacenterIPRangeExpansion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dc := mustDC(t, s, "ams1", IPRangeInput{StartIP: "10.0.0.1", EndIP: "10.0.0.4"})
	require.Len(t, dc.IPRanges, 1)

	var leases int
	err := s.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM service_ips WHERE dc_id = ?`, dc.ID).Scan(&leases)
	require.NoError(t, err)
	assert.Equal(t, 4, leases)

	// overlapping second range keeps one lease per address
	_, err = s.AddIPRange(ctx, dc.ID, IPRangeInput{StartIP: "10.0.0.3", EndIP: "10.0.0.6"})
	require.NoError(t, err)
	err = s.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM service_ips WHERE dc_id = ?`, dc.ID).Scan(&leases)
	require.NoError(t, err)
	assert.Equal(t, 6, leases)
}

func TestUpdateDatacenter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dc := mustDC(t, s, "old-name")
	name := "new-name"
	height := 47
	got, err := s.UpdateDatacenter(ctx, dc.ID, UpdateDatacenterParams{Name: &name, Height: &height})
	require.NoError(t, err)
	assert.Equal(t, "new-name", got.Name)
	assert.Equal(t, 47, got.Height)

	_, err = s.UpdateDatacenter(ctx, "no-such-id", UpdateDatacenterParams{Name: &name})
	assert.True(t, IsNotFound(err))
}

func TestUpdateDatacenterReplacesRanges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dc := mustDC(t, s, "lhr1", IPRangeInput{StartIP: "10.1.0.1", EndIP: "10.1.0.2"})
	got, err := s.UpdateDatacenter(ctx, dc.ID, UpdateDatacenterParams{
		IPRanges: []IPRangeInput{{StartIP: "10.2.0.1", EndIP: "10.2.0.3"}},
	})
	require.NoError(t, err)
	require.Len(t, got.IPRanges, 1)
	assert.Equal(t, "10.2.0.1", got.IPRanges[0].StartIP)

	var leases int
	err = s.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM service_ips WHERE dc_id = ?`, dc.ID).Scan(&leases)
	require.NoError(t, err)
	assert.Equal(t, 3, leases)
}

func TestUpdateDatacenterRangesRefusedWhileLeasesHeld(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dc := mustDC(t, s, "cdg1", IPRangeInput{StartIP: "10.3.0.1", EndIP: "10.3.0.4"})
	room := mustRoom(t, s, "r1", dc.ID)
	rack := mustRack(t, s, "cdg1-a01", room.ID)
	svc := mustService(t, s, "payments", rack.ID)
	require.NoError(t, s.AddIPToService(ctx, svc.ID, "10.3.0.1"))
	mustHost(t, s, "web-1", rack.ID) // allocates 10.3.0.1

	_, err := s.UpdateDatacenter(ctx, dc.ID, UpdateDatacenterParams{
		IPRanges: []IPRangeInput{{StartIP: "10.9.0.1", EndIP: "10.9.0.2"}},
	})
	assert.True(t, IsHasDependents(err))
}

func TestDeleteDatacenterRejectsChildren(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dc := mustDC(t, s, "sin1")
	mustRoom(t, s, "r1", dc.ID)

	err := s.DeleteDatacenter(ctx, dc.ID, false)
	assert.True(t, IsHasDependents(err))

	// still there, counter intact
	got, err := s.GetDatacenter(ctx, dc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.NRooms)
}

func TestDeleteDatacenterForceCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dc := mustDC(t, s, "nrt1", IPRangeInput{StartIP: "10.4.0.1", EndIP: "10.4.0.8"})
	room := mustRoom(t, s, "r1", dc.ID)
	rack := mustRack(t, s, "nrt1-a01", room.ID)
	mustHost(t, s, "db-1", rack.ID)
	mustHost(t, s, "db-2", rack.ID)

	require.NoError(t, s.DeleteDatacenter(ctx, dc.ID, true))

	_, err := s.GetDatacenter(ctx, dc.ID)
	assert.True(t, IsNotFound(err))

	// no orphans on any level
	for _, table := range []string{"rooms", "racks", "hosts", "ip_ranges", "service_ips"} {
		var n int
		require.NoError(t, s.DB().QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+table).Scan(&n))
		assert.Zero(t, n, table)
	}
}

func TestDeleteDatacenterTwice(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dc := mustDC(t, s, "syd1")
	require.NoError(t, s.DeleteDatacenter(ctx, dc.ID, false))

	err := s.DeleteDatacenter(ctx, dc.ID, false)
	assert.True(t, IsNotFound(err))
}
