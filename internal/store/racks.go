package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type CreateRackParams struct {
	Name   string
	Height int // 0 inherits the room's height
	RoomID string
}

type UpdateRackParams struct {
	Name   *string
	Height *int
	// RoomID, when set and different from the current room, reparents the
	// rack (and its hosts' denormalized ancestors) to the new room.
	RoomID *string
	// ServiceID assigns the rack to a service; UnassignService clears the
	// assignment. Setting both is a validation error.
	ServiceID       *string
	UnassignService bool
}

// checkRackNameTx enforces global rack-name uniqueness at the application
// layer; the UNIQUE column is the backstop for concurrent inserts.
func checkRackNameTx(ctx context.Context, tx *sql.Tx, name, excludeID string) error {
	var id string
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM racks WHERE name = ? AND id != ?`, name, excludeID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	return &ConflictError{Kind: "rack", Field: "name", Value: name}
}

func (s *Store) CreateRack(ctx context.Context, p CreateRackParams) (*Rack, error) {
	if p.Name == "" {
		return nil, &ValidationError{Field: "name", Reason: "required"}
	}
	if p.RoomID == "" {
		return nil, &ValidationError{Field: "room_id", Reason: "required"}
	}
	if p.Height < 0 {
		return nil, &ValidationError{Field: "height", Reason: "must be positive"}
	}

	var rack Rack
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		room, err := getRoomTx(ctx, tx, p.RoomID)
		if err != nil {
			return err
		}
		if err := checkRackNameTx(ctx, tx, p.Name, ""); err != nil {
			return err
		}
		height := p.Height
		if height == 0 {
			height = room.Height
		}

		rack = Rack{
			ID:     uuid.NewString(),
			Name:   p.Name,
			Height: height,
			RoomID: room.ID,
			DCID:   room.DCID,
		}
		ts := now()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO racks (id, name, height, room_id, dc_id, service_id, n_hosts, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, NULL, 0, ?, ?)`,
			rack.ID, rack.Name, rack.Height, rack.RoomID, rack.DCID, ts, ts,
		); err != nil {
			return fmt.Errorf("insert rack: %w", err)
		}
		if err := adjustCount(ctx, tx, "rooms", colRacks, room.ID, +1); err != nil {
			return err
		}
		return adjustCount(ctx, tx, "datacenters", colRacks, room.DCID, +1)
	})
	if err != nil {
		return nil, err
	}
	return &rack, nil
}

func scanRack(row *sql.Row) (*Rack, error) {
	var r Rack
	var svc sql.NullString
	err := row.Scan(&r.ID, &r.Name, &r.Height, &r.RoomID, &r.DCID, &svc, &r.NHosts)
	if err != nil {
		return nil, err
	}
	r.ServiceID = fromNull(svc)
	return &r, nil
}

func getRackTx(ctx context.Context, tx *sql.Tx, id string) (*Rack, error) {
	rack, err := scanRack(tx.QueryRowContext(ctx,
		`SELECT id, name, height, room_id, dc_id, service_id, n_hosts FROM racks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "rack", Ref: id}
	}
	if err != nil {
		return nil, err
	}
	return rack, nil
}

func rackRows(rows *sql.Rows, err error) ([]Rack, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rack
	for rows.Next() {
		var r Rack
		var svc sql.NullString
		if err := rows.Scan(&r.ID, &r.Name, &r.Height, &r.RoomID, &r.DCID, &svc, &r.NHosts); err != nil {
			return nil, err
		}
		r.ServiceID = fromNull(svc)
		out = append(out, r)
	}
	return out, rows.Err()
}

func racksByRoomTx(ctx context.Context, tx *sql.Tx, roomID string) ([]Rack, error) {
	return rackRows(tx.QueryContext(ctx,
		`SELECT id, name, height, room_id, dc_id, service_id, n_hosts FROM racks WHERE room_id = ? ORDER BY name`, roomID))
}

func racksByServiceTx(ctx context.Context, tx *sql.Tx, serviceID string) ([]Rack, error) {
	return rackRows(tx.QueryContext(ctx,
		`SELECT id, name, height, room_id, dc_id, service_id, n_hosts FROM racks WHERE service_id = ? ORDER BY name`, serviceID))
}

func (s *Store) GetRack(ctx context.Context, id string) (*RackDetail, error) {
	var out RackDetail
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rack, err := getRackTx(ctx, tx, id)
		if err != nil {
			return err
		}
		out.Rack = *rack

		out.Hosts, err = hostsByRackTx(ctx, tx, id)
		if err != nil {
			return err
		}
		used := 0
		for _, h := range out.Hosts {
			used += h.Height
		}
		out.FreeUnits = rack.Height - used
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.Hosts == nil {
		out.Hosts = []Host{}
	}
	return &out, nil
}

func (s *Store) ListRacks(ctx context.Context) ([]Rack, error) {
	out, err := rackRows(s.db.QueryContext(ctx,
		`SELECT id, name, height, room_id, dc_id, service_id, n_hosts FROM racks ORDER BY name`))
	if out == nil {
		out = []Rack{}
	}
	return out, err
}

func (s *Store) ListRacksByRoom(ctx context.Context, roomID string) ([]Rack, error) {
	var out []Rack
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getRoomTx(ctx, tx, roomID); err != nil {
			return err
		}
		var err error
		out, err = racksByRoomTx(ctx, tx, roomID)
		return err
	})
	if out == nil {
		out = []Rack{}
	}
	return out, err
}

// moveRackTx reparents a rack to a new room, transferring its own n_racks
// contribution and its hosts' n_hosts contribution between the old and new
// ancestor chains in one coordinated update. Hosts' denormalized room_id and
// dc_id follow in a single statement, not host-by-host.
func moveRackTx(ctx context.Context, tx *sql.Tx, rack *Rack, newRoomID string) error {
	if rack.RoomID == newRoomID {
		return nil
	}
	newRoom, err := getRoomTx(ctx, tx, newRoomID)
	if err != nil {
		return err
	}

	if err := adjustCount(ctx, tx, "rooms", colRacks, rack.RoomID, -1); err != nil {
		return err
	}
	if err := adjustCount(ctx, tx, "datacenters", colRacks, rack.DCID, -1); err != nil {
		return err
	}
	if err := adjustCount(ctx, tx, "rooms", colHosts, rack.RoomID, -rack.NHosts); err != nil {
		return err
	}
	if err := adjustCount(ctx, tx, "datacenters", colHosts, rack.DCID, -rack.NHosts); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE racks SET room_id = ?, dc_id = ?, updated_at = ? WHERE id = ?`,
		newRoom.ID, newRoom.DCID, now(), rack.ID,
	); err != nil {
		return fmt.Errorf("reparent rack: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE hosts SET room_id = ?, dc_id = ?, updated_at = ? WHERE rack_id = ?`,
		newRoom.ID, newRoom.DCID, now(), rack.ID,
	); err != nil {
		return fmt.Errorf("reparent rack hosts: %w", err)
	}

	if err := adjustCount(ctx, tx, "rooms", colRacks, newRoom.ID, +1); err != nil {
		return err
	}
	if err := adjustCount(ctx, tx, "datacenters", colRacks, newRoom.DCID, +1); err != nil {
		return err
	}
	if err := adjustCount(ctx, tx, "rooms", colHosts, newRoom.ID, +rack.NHosts); err != nil {
		return err
	}
	if err := adjustCount(ctx, tx, "datacenters", colHosts, newRoom.DCID, +rack.NHosts); err != nil {
		return err
	}

	rack.RoomID = newRoom.ID
	rack.DCID = newRoom.DCID
	return nil
}

// assignServiceTx moves a rack between services (either side may be none),
// transferring the rack's n_racks and n_hosts contribution. Hosts inherit
// the new service_id in one statement.
func assignServiceTx(ctx context.Context, tx *sql.Tx, rack *Rack, serviceID *string) error {
	same := (rack.ServiceID == nil && serviceID == nil) ||
		(rack.ServiceID != nil && serviceID != nil && *rack.ServiceID == *serviceID)
	if same {
		return nil
	}

	if serviceID != nil {
		if _, err := getServiceTx(ctx, tx, *serviceID); err != nil {
			return err
		}
	}

	if rack.ServiceID != nil {
		if err := adjustCount(ctx, tx, "services", colRacks, *rack.ServiceID, -1); err != nil {
			return err
		}
		if err := adjustCount(ctx, tx, "services", colHosts, *rack.ServiceID, -rack.NHosts); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE racks SET service_id = ?, updated_at = ? WHERE id = ?`,
		nullable(serviceID), now(), rack.ID,
	); err != nil {
		return fmt.Errorf("assign rack service: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE hosts SET service_id = ?, updated_at = ? WHERE rack_id = ?`,
		nullable(serviceID), now(), rack.ID,
	); err != nil {
		return fmt.Errorf("assign rack hosts service: %w", err)
	}

	if serviceID != nil {
		if err := adjustCount(ctx, tx, "services", colRacks, *serviceID, +1); err != nil {
			return err
		}
		if err := adjustCount(ctx, tx, "services", colHosts, *serviceID, +rack.NHosts); err != nil {
			return err
		}
	}

	rack.ServiceID = serviceID
	return nil
}

func (s *Store) UpdateRack(ctx context.Context, id string, p UpdateRackParams) (*Rack, error) {
	if p.Height != nil && *p.Height <= 0 {
		return nil, &ValidationError{Field: "height", Reason: "must be positive"}
	}
	if p.ServiceID != nil && p.UnassignService {
		return nil, &ValidationError{Field: "service_id", Reason: "cannot assign and unassign in one update"}
	}

	var out Rack
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rack, err := getRackTx(ctx, tx, id)
		if err != nil {
			return err
		}

		if p.Name != nil && *p.Name != rack.Name {
			if err := checkRackNameTx(ctx, tx, *p.Name, rack.ID); err != nil {
				return err
			}
		}

		var parts []string
		var args []any
		if p.Name != nil {
			parts = append(parts, "name = ?")
			args = append(args, *p.Name)
		}
		if p.Height != nil {
			parts = append(parts, "height = ?")
			args = append(args, *p.Height)
		}
		if len(parts) > 0 {
			q := "UPDATE racks SET " + strings.Join(parts, ", ") + ", updated_at = ? WHERE id = ?"
			args = append(args, now(), id)
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return fmt.Errorf("update rack: %w", err)
			}
		}

		// Counters move only on an actual reparent; a PUT repeating the
		// current room or service is a no-op for every count.
		if p.RoomID != nil {
			if err := moveRackTx(ctx, tx, rack, *p.RoomID); err != nil {
				return err
			}
		}
		if p.ServiceID != nil {
			if err := assignServiceTx(ctx, tx, rack, p.ServiceID); err != nil {
				return err
			}
		} else if p.UnassignService {
			if err := assignServiceTx(ctx, tx, rack, nil); err != nil {
				return err
			}
		}

		updated, err := getRackTx(ctx, tx, id)
		if err != nil {
			return err
		}
		out = *updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MoveRack reparents a rack to a new room.
func (s *Store) MoveRack(ctx context.Context, rackID, newRoomID string) (*Rack, error) {
	var out Rack
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rack, err := getRackTx(ctx, tx, rackID)
		if err != nil {
			return err
		}
		if err := moveRackTx(ctx, tx, rack, newRoomID); err != nil {
			return err
		}
		out = *rack
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AssignRackToService assigns a rack to a service, transferring counts from
// any previous assignment.
func (s *Store) AssignRackToService(ctx context.Context, rackID, serviceID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		rack, err := getRackTx(ctx, tx, rackID)
		if err != nil {
			return err
		}
		return assignServiceTx(ctx, tx, rack, &serviceID)
	})
}

// UnassignRackFromService clears a rack's service assignment. Unassigning an
// unassigned rack is a no-op.
func (s *Store) UnassignRackFromService(ctx context.Context, rackID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		rack, err := getRackTx(ctx, tx, rackID)
		if err != nil {
			return err
		}
		return assignServiceTx(ctx, tx, rack, nil)
	})
}

// deleteRackTx deletes one rack inside an open transaction, recursing into
// hosts when force is set. Hosts are deleted individually so each one's
// count side-effects fire.
func deleteRackTx(ctx context.Context, tx *sql.Tx, rack Rack, force bool) error {
	nHosts, err := countChildren(ctx, tx, "hosts", "rack_id", rack.ID)
	if err != nil {
		return err
	}
	if nHosts > 0 {
		if !force {
			return &HasDependentsError{Kind: "rack", Ref: rack.ID, ChildKind: "host", Children: nHosts}
		}
		hosts, err := hostsByRackTx(ctx, tx, rack.ID)
		if err != nil {
			return err
		}
		for _, h := range hosts {
			if err := deleteHostTx(ctx, tx, h); err != nil {
				return err
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM racks WHERE id = ?`, rack.ID); err != nil {
		return fmt.Errorf("delete rack: %w", err)
	}
	if err := adjustCount(ctx, tx, "rooms", colRacks, rack.RoomID, -1); err != nil {
		return err
	}
	if err := adjustCount(ctx, tx, "datacenters", colRacks, rack.DCID, -1); err != nil {
		return err
	}
	if rack.ServiceID != nil {
		return adjustCount(ctx, tx, "services", colRacks, *rack.ServiceID, -1)
	}
	return nil
}

func (s *Store) DeleteRack(ctx context.Context, id string, force bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		rack, err := getRackTx(ctx, tx, id)
		if err != nil {
			return err
		}
		return deleteRackTx(ctx, tx, *rack, force)
	})
}
