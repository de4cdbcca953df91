package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DefaultRackUnits is the rack-unit capacity applied when a datacenter is
// created without an explicit height.
const DefaultRackUnits = 42

type CreateDatacenterParams struct {
	Name     string
	Height   int
	IPRanges []IPRangeInput
}

type UpdateDatacenterParams struct {
	Name   *string
	Height *int
	// IPRanges, when non-nil, replaces the datacenter's entire range set.
	IPRanges []IPRangeInput
}

func (s *Store) CreateDatacenter(ctx context.Context, p CreateDatacenterParams) (*DatacenterDetail, error) {
	if p.Name == "" {
		return nil, &ValidationError{Field: "name", Reason: "required"}
	}
	if p.Height == 0 {
		p.Height = DefaultRackUnits
	}
	if p.Height < 0 {
		return nil, &ValidationError{Field: "height", Reason: "must be positive"}
	}

	dc := Datacenter{
		ID:     uuid.NewString(),
		Name:   p.Name,
		Height: p.Height,
	}
	var ranges []IPRange
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ts := now()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO datacenters (id, name, height, n_rooms, n_racks, n_hosts, created_at, updated_at)
			 VALUES (?, ?, ?, 0, 0, 0, ?, ?)`,
			dc.ID, dc.Name, dc.Height, ts, ts,
		); err != nil {
			return fmt.Errorf("insert datacenter: %w", err)
		}
		for _, in := range p.IPRanges {
			r, err := addIPRangeTx(ctx, tx, dc.ID, in)
			if err != nil {
				return err
			}
			ranges = append(ranges, *r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &DatacenterDetail{Datacenter: dc, Rooms: []Room{}, IPRanges: ranges}, nil
}

func getDatacenterTx(ctx context.Context, tx *sql.Tx, id string) (*Datacenter, error) {
	var dc Datacenter
	err := tx.QueryRowContext(ctx,
		`SELECT id, name, height, n_rooms, n_racks, n_hosts FROM datacenters WHERE id = ?`, id,
	).Scan(&dc.ID, &dc.Name, &dc.Height, &dc.NRooms, &dc.NRacks, &dc.NHosts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "datacenter", Ref: id}
	}
	if err != nil {
		return nil, err
	}
	return &dc, nil
}

func (s *Store) GetDatacenter(ctx context.Context, id string) (*DatacenterDetail, error) {
	var out DatacenterDetail
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		dc, err := getDatacenterTx(ctx, tx, id)
		if err != nil {
			return err
		}
		out.Datacenter = *dc

		rows, err := tx.QueryContext(ctx,
			`SELECT id, name, height, dc_id, n_racks, n_hosts FROM rooms WHERE dc_id = ? ORDER BY name`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		out.Rooms = []Room{}
		for rows.Next() {
			var r Room
			if err := rows.Scan(&r.ID, &r.Name, &r.Height, &r.DCID, &r.NRacks, &r.NHosts); err != nil {
				return err
			}
			out.Rooms = append(out.Rooms, r)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		out.IPRanges, err = ipRangesForDCTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) ListDatacenters(ctx context.Context) ([]Datacenter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, height, n_rooms, n_racks, n_hosts FROM datacenters ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dcs := []Datacenter{}
	for rows.Next() {
		var dc Datacenter
		if err := rows.Scan(&dc.ID, &dc.Name, &dc.Height, &dc.NRooms, &dc.NRacks, &dc.NHosts); err != nil {
			return nil, err
		}
		dcs = append(dcs, dc)
	}
	return dcs, rows.Err()
}

func (s *Store) UpdateDatacenter(ctx context.Context, id string, p UpdateDatacenterParams) (*DatacenterDetail, error) {
	if p.Height != nil && *p.Height <= 0 {
		return nil, &ValidationError{Field: "height", Reason: "must be positive"}
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getDatacenterTx(ctx, tx, id); err != nil {
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
			q := "UPDATE datacenters SET " + strings.Join(parts, ", ") + ", updated_at = ? WHERE id = ?"
			args = append(args, now(), id)
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return fmt.Errorf("update datacenter: %w", err)
			}
		}

		if p.IPRanges != nil {
			if err := dropIPRangesForDCTx(ctx, tx, id); err != nil {
				return err
			}
			for _, in := range p.IPRanges {
				if _, err := addIPRangeTx(ctx, tx, id, in); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetDatacenter(ctx, id)
}

// DeleteDatacenter removes a datacenter. With force unset it fails with
// HasDependentsError while rooms remain; with force set it cascades
// depth-first, deleting every descendant individually so each one's count
// side-effects fire exactly once.
func (s *Store) DeleteDatacenter(ctx context.Context, id string, force bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		dc, err := getDatacenterTx(ctx, tx, id)
		if err != nil {
			return err
		}

		nRooms, err := countChildren(ctx, tx, "rooms", "dc_id", id)
		if err != nil {
			return err
		}
		if nRooms > 0 {
			if !force {
				return &HasDependentsError{Kind: "datacenter", Ref: id, ChildKind: "room", Children: nRooms}
			}
			rooms, err := roomsByDCTx(ctx, tx, id)
			if err != nil {
				return err
			}
			for _, room := range rooms {
				if err := deleteRoomTx(ctx, tx, room, true); err != nil {
					return err
				}
			}
		}

		// The pool is freed by the host deletions above; drop ranges last.
		if err := dropIPRangesForDCTx(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM datacenters WHERE id = ?`, dc.ID); err != nil {
			return fmt.Errorf("delete datacenter: %w", err)
		}
		return nil
	})
}
