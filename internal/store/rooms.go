package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type CreateRoomParams struct {
	Name   string
	Height int // 0 inherits the datacenter's default height
	DCID   string
}

type UpdateRoomParams struct {
	Name   *string
	Height *int
}

func (s *Store) CreateRoom(ctx context.Context, p CreateRoomParams) (*Room, error) {
	if p.Name == "" {
		return nil, &ValidationError{Field: "name", Reason: "required"}
	}
	if p.DCID == "" {
		return nil, &ValidationError{Field: "dc_id", Reason: "required"}
	}
	if p.Height < 0 {
		return nil, &ValidationError{Field: "height", Reason: "must be positive"}
	}

	var room Room
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		dc, err := getDatacenterTx(ctx, tx, p.DCID)
		if err != nil {
			return err
		}
		height := p.Height
		if height == 0 {
			height = dc.Height
		}

		room = Room{
			ID:     uuid.NewString(),
			Name:   p.Name,
			Height: height,
			DCID:   dc.ID,
		}
		ts := now()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rooms (id, name, height, dc_id, n_racks, n_hosts, created_at, updated_at)
			 VALUES (?, ?, ?, ?, 0, 0, ?, ?)`,
			room.ID, room.Name, room.Height, room.DCID, ts, ts,
		); err != nil {
			return fmt.Errorf("insert room: %w", err)
		}
		return adjustCount(ctx, tx, "datacenters", colRooms, dc.ID, +1)
	})
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func getRoomTx(ctx context.Context, tx *sql.Tx, id string) (*Room, error) {
	var r Room
	err := tx.QueryRowContext(ctx,
		`SELECT id, name, height, dc_id, n_racks, n_hosts FROM rooms WHERE id = ?`, id,
	).Scan(&r.ID, &r.Name, &r.Height, &r.DCID, &r.NRacks, &r.NHosts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "room", Ref: id}
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func roomsByDCTx(ctx context.Context, tx *sql.Tx, dcID string) ([]Room, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, name, height, dc_id, n_racks, n_hosts FROM rooms WHERE dc_id = ? ORDER BY name`, dcID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Room
	for rows.Next() {
		var r Room
		if err := rows.Scan(&r.ID, &r.Name, &r.Height, &r.DCID, &r.NRacks, &r.NHosts); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetRoom(ctx context.Context, id string) (*RoomDetail, error) {
	var out RoomDetail
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		room, err := getRoomTx(ctx, tx, id)
		if err != nil {
			return err
		}
		out.Room = *room
		out.Racks, err = racksByRoomTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out.Racks == nil {
		out.Racks = []Rack{}
	}
	return &out, nil
}

func (s *Store) ListRooms(ctx context.Context) ([]Room, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, height, dc_id, n_racks, n_hosts FROM rooms ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Room{}
	for rows.Next() {
		var r Room
		if err := rows.Scan(&r.ID, &r.Name, &r.Height, &r.DCID, &r.NRacks, &r.NHosts); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListRoomsByDatacenter lists the rooms under one datacenter.
func (s *Store) ListRoomsByDatacenter(ctx context.Context, dcID string) ([]Room, error) {
	var out []Room
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getDatacenterTx(ctx, tx, dcID); err != nil {
			return err
		}
		var err error
		out, err = roomsByDCTx(ctx, tx, dcID)
		return err
	})
	if out == nil {
		out = []Room{}
	}
	return out, err
}

func (s *Store) UpdateRoom(ctx context.Context, id string, p UpdateRoomParams) (*Room, error) {
	if p.Height != nil && *p.Height <= 0 {
		return nil, &ValidationError{Field: "height", Reason: "must be positive"}
	}
	var room Room
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getRoomTx(ctx, tx, id); err != nil {
			return err
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
			q := "UPDATE rooms SET " + strings.Join(parts, ", ") + ", updated_at = ? WHERE id = ?"
			args = append(args, now(), id)
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return fmt.Errorf("update room: %w", err)
			}
		}

		updated, err := getRoomTx(ctx, tx, id)
		if err != nil {
			return err
		}
		room = *updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// deleteRoomTx deletes one room inside an open transaction, recursing into
// racks when force is set.
func deleteRoomTx(ctx context.Context, tx *sql.Tx, room Room, force bool) error {
	nRacks, err := countChildren(ctx, tx, "racks", "room_id", room.ID)
	if err != nil {
		return err
	}
	if nRacks > 0 {
		if !force {
			return &HasDependentsError{Kind: "room", Ref: room.ID, ChildKind: "rack", Children: nRacks}
		}
		racks, err := racksByRoomTx(ctx, tx, room.ID)
		if err != nil {
			return err
		}
		for _, rack := range racks {
			if err := deleteRackTx(ctx, tx, rack, true); err != nil {
				return err
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, room.ID); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return adjustCount(ctx, tx, "datacenters", colRooms, room.DCID, -1)
}

func (s *Store) DeleteRoom(ctx context.Context, id string, force bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		room, err := getRoomTx(ctx, tx, id)
		if err != nil {
			return err
		}
		return deleteRoomTx(ctx, tx, *room, force)
	})
}
