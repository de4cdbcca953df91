package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceNameUnique(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustService(t, s, "payments")
	_, err := s.CreateService(ctx, CreateServiceParams{Name: "payments"})
	assert.True(t, IsConflict(err))
}

func TestCreateServiceWithRacksAndIPs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dc := mustDC(t, s, "fra1", IPRangeInput{StartIP: "10.0.0.1", EndIP: "10.0.0.4"})
	room := mustRoom(t, s, "a", dc.ID)
	rack := mustRack(t, s, "a01", room.ID)
	mustHost(t, s, "web-1", rack.ID)

	svc, err := s.CreateService(ctx, CreateServiceParams{
		Name:    "web",
		RackIDs: []string{rack.ID},
		IPList:  []string{"10.0.0.1", "10.0.0.2", "203.0.113.7"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, svc.NRacks)
	assert.Equal(t, 1, svc.NHosts)
	assert.Equal(t, 3, svc.TotalIP)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2", "203.0.113.7"}, svc.TotalIPs)
	assert.Equal(t, svc.TotalIPs, svc.AvailableIPs)
}

func TestServiceIPOwnedByOtherService(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustDC(t, s, "ams1", IPRangeInput{StartIP: "10.0.0.1", EndIP: "10.0.0.2"})
	a := mustService(t, s, "alpha")
	b := mustService(t, s, "beta")

	require.NoError(t, s.AddIPToService(ctx, a.ID, "10.0.0.1"))
	err := s.AddIPToService(ctx, b.ID, "10.0.0.1")
	assert.True(t, IsConflict(err))
}

func TestAttachIPTwiceKeepsTotalIPExact(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// duplicate entries in the request list count once
	svc, err := s.CreateService(ctx, CreateServiceParams{
		Name:   "dup",
		IPList: []string{"203.0.113.7", "203.0.113.7"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, svc.TotalIP)
	assert.Equal(t, []string{"203.0.113.7"}, svc.TotalIPs)

	// re-adding a held address moves no counter
	require.NoError(t, s.AddIPToService(ctx, svc.ID, "203.0.113.7"))
	got, err := s.GetService(ctx, svc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalIP)
	assert.Len(t, got.TotalIPs, 1)
}

func TestRemoveIPFromService(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dc := mustDC(t, s, "lhr1", IPRangeInput{StartIP: "10.1.0.1", EndIP: "10.1.0.2"})
	room := mustRoom(t, s, "a", dc.ID)
	rack := mustRack(t, s, "a01", room.ID)
	svc := mustService(t, s, "cache", rack.ID)
	require.NoError(t, s.AddIPToService(ctx, svc.ID, "10.1.0.1"))
	require.NoError(t, s.AddIPToService(ctx, svc.ID, "10.1.0.2"))

	host := mustHost(t, s, "redis-1", rack.ID) // allocates 10.1.0.1
	require.NotNil(t, host.IP)

	// a lease held by a live host cannot be removed
	err := s.RemoveIPFromService(ctx, svc.ID, *host.IP)
	assert.True(t, IsHasDependents(err))

	// a free lease returns to the datacenter pool
	require.NoError(t, s.RemoveIPFromService(ctx, svc.ID, "10.1.0.2"))
	got, err := s.GetService(ctx, svc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalIP)
	assert.Equal(t, []string{"10.1.0.1"}, got.TotalIPs)

	// an address the service does not hold is not found
	err = s.RemoveIPFromService(ctx, svc.ID, "10.1.0.9")
	assert.True(t, IsNotFound(err))
}

func TestUpdateServiceReplacesRackSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dc := mustDC(t, s, "sin1")
	room := mustRoom(t, s, "a", dc.ID)
	rackA := mustRack(t, s, "a01", room.ID)
	rackB := mustRack(t, s, "a02", room.ID)
	mustHost(t, s, "h1", rackA.ID)
	mustHost(t, s, "h2", rackB.ID)

	svc := mustService(t, s, "batch", rackA.ID)
	assert.Equal(t, 1, svc.NRacks)
	assert.Equal(t, 1, svc.NHosts)

	got, err := s.UpdateService(ctx, svc.ID, UpdateServiceParams{RackIDs: []string{rackB.ID}})
	require.NoError(t, err)
	assert.Equal(t, 1, got.NRacks)
	assert.Equal(t, 1, got.NHosts)
	require.Len(t, got.Racks, 1)
	assert.Equal(t, rackB.ID, got.Racks[0].ID)

	// the replaced rack is unassigned, not deleted
	gotRack, err := s.GetRack(ctx, rackA.ID)
	require.NoError(t, err)
	assert.Nil(t, gotRack.ServiceID)
}

func TestDeleteServiceReleasesEverything(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dc := mustDC(t, s, "nrt1", IPRangeInput{StartIP: "10.2.0.1", EndIP: "10.2.0.2"})
	room := mustRoom(t, s, "a", dc.ID)
	rack := mustRack(t, s, "a01", room.ID)
	svc := mustService(t, s, "legacy", rack.ID)
	require.NoError(t, s.AddIPToService(ctx, svc.ID, "10.2.0.1"))
	host := mustHost(t, s, "old-1", rack.ID) // holds 10.2.0.1

	require.NoError(t, s.DeleteService(ctx, svc.ID))

	_, err := s.GetService(ctx, svc.ID)
	assert.True(t, IsNotFound(err))

	// the rack survives without an assignment
	gotRack, err := s.GetRack(ctx, rack.ID)
	require.NoError(t, err)
	assert.Nil(t, gotRack.ServiceID)
	assert.Equal(t, 1, gotRack.NHosts)

	// the lease returned to the datacenter pool but the host keeps answering
	gotHost, err := s.GetHost(ctx, host.ID)
	require.NoError(t, err)
	require.NotNil(t, gotHost.IP)
	assert.Equal(t, "10.2.0.1", *gotHost.IP)

	var owner any
	var assigned int
	require.NoError(t, s.DB().QueryRowContext(ctx,
		`SELECT service_id, assigned FROM service_ips WHERE ip = '10.2.0.1'`).Scan(&owner, &assigned))
	assert.Nil(t, owner)
	assert.Equal(t, 1, assigned)
}
