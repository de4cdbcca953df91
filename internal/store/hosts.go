package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type CreateHostParams struct {
	Name   string
	Height int
	RackID string
	// IP, when nil, is allocated from the owning rack's service lease pool
	// (the host stays addressless if the pool is empty).
	IP  *string
	Pos *int // nil auto-assigns MAX(pos)+1 within the rack
}

type UpdateHostParams struct {
	Name   *string
	Height *int
	IP     *string
	// RackID, when set and different from the current rack, moves the host.
	RackID  *string
	Pos     *int
	Running *bool
}

// checkHostIPTx enforces global IP uniqueness before any write; the UNIQUE
// column backstops concurrent inserts.
func checkHostIPTx(ctx context.Context, tx *sql.Tx, ip, excludeID string) error {
	var id string
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM hosts WHERE ip = ? AND id != ?`, ip, excludeID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	return &ConflictError{Kind: "host", Field: "ip", Value: ip}
}

func nextPosTx(ctx context.Context, tx *sql.Tx, rackID string) (int, error) {
	var pos int
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(pos), 0) + 1 FROM hosts WHERE rack_id = ?`, rackID,
	).Scan(&pos)
	return pos, err
}

func (s *Store) CreateHost(ctx context.Context, p CreateHostParams) (*Host, error) {
	if p.Name == "" {
		return nil, &ValidationError{Field: "name", Reason: "required"}
	}
	if p.RackID == "" {
		return nil, &ValidationError{Field: "rack_id", Reason: "required"}
	}
	if p.Height <= 0 {
		return nil, &ValidationError{Field: "height", Reason: "must be positive"}
	}

	var host Host
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rack, err := getRackTx(ctx, tx, p.RackID)
		if err != nil {
			return err
		}

		ip := p.IP
		if ip != nil {
			if err := checkHostIPTx(ctx, tx, *ip, ""); err != nil {
				return err
			}
			if err := markLeaseTx(ctx, tx, *ip, true); err != nil {
				return err
			}
		} else if rack.ServiceID != nil {
			ip, err = allocateLeaseTx(ctx, tx, *rack.ServiceID)
			if err != nil {
				return err
			}
		}

		pos := 0
		if p.Pos != nil {
			pos = *p.Pos
		} else {
			pos, err = nextPosTx(ctx, tx, rack.ID)
			if err != nil {
				return err
			}
		}

		host = Host{
			ID:        uuid.NewString(),
			Name:      p.Name,
			Height:    p.Height,
			IP:        ip,
			RackID:    rack.ID,
			RoomID:    rack.RoomID,
			DCID:      rack.DCID,
			ServiceID: rack.ServiceID,
			Pos:       pos,
			Running:   true,
		}
		ts := now()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO hosts (id, name, height, ip, rack_id, room_id, dc_id, service_id, pos, running, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			host.ID, host.Name, host.Height, nullable(host.IP),
			host.RackID, host.RoomID, host.DCID, nullable(host.ServiceID), host.Pos, ts, ts,
		); err != nil {
			return fmt.Errorf("insert host: %w", err)
		}

		if err := adjustCount(ctx, tx, "racks", colHosts, rack.ID, +1); err != nil {
			return err
		}
		if err := adjustCount(ctx, tx, "rooms", colHosts, rack.RoomID, +1); err != nil {
			return err
		}
		if err := adjustCount(ctx, tx, "datacenters", colHosts, rack.DCID, +1); err != nil {
			return err
		}
		if rack.ServiceID != nil {
			if err := adjustCount(ctx, tx, "services", colHosts, *rack.ServiceID, +1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &host, nil
}

func getHostTx(ctx context.Context, tx *sql.Tx, id string) (*Host, error) {
	var h Host
	var ip, svc sql.NullString
	err := tx.QueryRowContext(ctx,
		`SELECT id, name, height, ip, rack_id, room_id, dc_id, service_id, pos, running FROM hosts WHERE id = ?`, id,
	).Scan(&h.ID, &h.Name, &h.Height, &ip, &h.RackID, &h.RoomID, &h.DCID, &svc, &h.Pos, &h.Running)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "host", Ref: id}
	}
	if err != nil {
		return nil, err
	}
	h.IP = fromNull(ip)
	h.ServiceID = fromNull(svc)
	return &h, nil
}

func hostRows(rows *sql.Rows, err error) ([]Host, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Host
	for rows.Next() {
		var h Host
		var ip, svc sql.NullString
		if err := rows.Scan(&h.ID, &h.Name, &h.Height, &ip, &h.RackID, &h.RoomID, &h.DCID, &svc, &h.Pos, &h.Running); err != nil {
			return nil, err
		}
		h.IP = fromNull(ip)
		h.ServiceID = fromNull(svc)
		out = append(out, h)
	}
	return out, rows.Err()
}

func hostsByRackTx(ctx context.Context, tx *sql.Tx, rackID string) ([]Host, error) {
	return hostRows(tx.QueryContext(ctx,
		`SELECT id, name, height, ip, rack_id, room_id, dc_id, service_id, pos, running FROM hosts WHERE rack_id = ? ORDER BY pos`, rackID))
}

func hostsByServiceTx(ctx context.Context, tx *sql.Tx, serviceID string) ([]Host, error) {
	return hostRows(tx.QueryContext(ctx,
		`SELECT id, name, height, ip, rack_id, room_id, dc_id, service_id, pos, running FROM hosts WHERE service_id = ? ORDER BY name`, serviceID))
}

func (s *Store) GetHost(ctx context.Context, id string) (*Host, error) {
	var out *Host
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = getHostTx(ctx, tx, id)
		return err
	})
	return out, err
}

func (s *Store) ListHosts(ctx context.Context) ([]Host, error) {
	out, err := hostRows(s.db.QueryContext(ctx,
		`SELECT id, name, height, ip, rack_id, room_id, dc_id, service_id, pos, running FROM hosts ORDER BY name`))
	if out == nil {
		out = []Host{}
	}
	return out, err
}

func (s *Store) ListHostsByRack(ctx context.Context, rackID string) ([]Host, error) {
	var out []Host
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getRackTx(ctx, tx, rackID); err != nil {
			return err
		}
		var err error
		out, err = hostsByRackTx(ctx, tx, rackID)
		return err
	})
	if out == nil {
		out = []Host{}
	}
	return out, err
}

func (s *Store) ListHostsByService(ctx context.Context, serviceID string) ([]Host, error) {
	var out []Host
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getServiceTx(ctx, tx, serviceID); err != nil {
			return err
		}
		var err error
		out, err = hostsByServiceTx(ctx, tx, serviceID)
		return err
	})
	if out == nil {
		out = []Host{}
	}
	return out, err
}

// moveHostTx reparents a host to a new rack: the host's single-count
// contribution leaves every current ancestor, the foreign key and the
// denormalized room_id/dc_id/service_id flip to the new rack's chain, and
// the contribution lands on every new ancestor. Same-rack moves are no-ops.
func moveHostTx(ctx context.Context, tx *sql.Tx, host *Host, newRackID string) error {
	if host.RackID == newRackID {
		return nil
	}
	newRack, err := getRackTx(ctx, tx, newRackID)
	if err != nil {
		return err
	}

	if err := adjustCount(ctx, tx, "racks", colHosts, host.RackID, -1); err != nil {
		return err
	}
	if err := adjustCount(ctx, tx, "rooms", colHosts, host.RoomID, -1); err != nil {
		return err
	}
	if err := adjustCount(ctx, tx, "datacenters", colHosts, host.DCID, -1); err != nil {
		return err
	}
	if host.ServiceID != nil {
		if err := adjustCount(ctx, tx, "services", colHosts, *host.ServiceID, -1); err != nil {
			return err
		}
	}

	pos, err := nextPosTx(ctx, tx, newRack.ID)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE hosts SET rack_id = ?, room_id = ?, dc_id = ?, service_id = ?, pos = ?, updated_at = ? WHERE id = ?`,
		newRack.ID, newRack.RoomID, newRack.DCID, nullable(newRack.ServiceID), pos, now(), host.ID,
	); err != nil {
		return fmt.Errorf("reparent host: %w", err)
	}

	if err := adjustCount(ctx, tx, "racks", colHosts, newRack.ID, +1); err != nil {
		return err
	}
	if err := adjustCount(ctx, tx, "rooms", colHosts, newRack.RoomID, +1); err != nil {
		return err
	}
	if err := adjustCount(ctx, tx, "datacenters", colHosts, newRack.DCID, +1); err != nil {
		return err
	}
	if newRack.ServiceID != nil {
		if err := adjustCount(ctx, tx, "services", colHosts, *newRack.ServiceID, +1); err != nil {
			return err
		}
	}

	host.RackID = newRack.ID
	host.RoomID = newRack.RoomID
	host.DCID = newRack.DCID
	host.ServiceID = newRack.ServiceID
	host.Pos = pos
	return nil
}

// MoveHost reparents a host to a new rack.
func (s *Store) MoveHost(ctx context.Context, hostID, newRackID string) (*Host, error) {
	var out Host
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		host, err := getHostTx(ctx, tx, hostID)
		if err != nil {
			return err
		}
		if err := moveHostTx(ctx, tx, host, newRackID); err != nil {
			return err
		}
		out = *host
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) UpdateHost(ctx context.Context, id string, p UpdateHostParams) (*Host, error) {
	if p.Height != nil && *p.Height <= 0 {
		return nil, &ValidationError{Field: "height", Reason: "must be positive"}
	}

	var out Host
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		host, err := getHostTx(ctx, tx, id)
		if err != nil {
			return err
		}

		if p.RackID != nil {
			if err := moveHostTx(ctx, tx, host, *p.RackID); err != nil {
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
		if p.Pos != nil {
			parts = append(parts, "pos = ?")
			args = append(args, *p.Pos)
		}
		if p.Running != nil {
			parts = append(parts, "running = ?")
			args = append(args, *p.Running)
		}
		if p.IP != nil && (host.IP == nil || *p.IP != *host.IP) {
			if err := checkHostIPTx(ctx, tx, *p.IP, host.ID); err != nil {
				return err
			}
			if host.IP != nil {
				if err := markLeaseTx(ctx, tx, *host.IP, false); err != nil {
					return err
				}
			}
			if err := markLeaseTx(ctx, tx, *p.IP, true); err != nil {
				return err
			}
			parts = append(parts, "ip = ?")
			args = append(args, *p.IP)
		}
		if len(parts) > 0 {
			q := "UPDATE hosts SET " + strings.Join(parts, ", ") + ", updated_at = ? WHERE id = ?"
			args = append(args, now(), id)
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return fmt.Errorf("update host: %w", err)
			}
		}

		updated, err := getHostTx(ctx, tx, id)
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

// deleteHostTx deletes one host inside an open transaction: its lease is
// released and its single-count contribution leaves every ancestor exactly
// once. A standalone address row (no pool, no owning service) has nothing
// left referencing it once the host goes, so it is removed outright.
func deleteHostTx(ctx context.Context, tx *sql.Tx, h Host) error {
	if h.IP != nil {
		if err := markLeaseTx(ctx, tx, *h.IP, false); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM service_ips WHERE ip = ? AND dc_id IS NULL AND service_id IS NULL`, *h.IP,
		); err != nil {
			return fmt.Errorf("drop orphan address: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM hosts WHERE id = ?`, h.ID); err != nil {
		return fmt.Errorf("delete host: %w", err)
	}

	if err := adjustCount(ctx, tx, "racks", colHosts, h.RackID, -1); err != nil {
		return err
	}
	if err := adjustCount(ctx, tx, "rooms", colHosts, h.RoomID, -1); err != nil {
		return err
	}
	if err := adjustCount(ctx, tx, "datacenters", colHosts, h.DCID, -1); err != nil {
		return err
	}
	if h.ServiceID != nil {
		return adjustCount(ctx, tx, "services", colHosts, *h.ServiceID, -1)
	}
	return nil
}

func (s *Store) DeleteHost(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		host, err := getHostTx(ctx, tx, id)
		if err != nil {
			return err
		}
		return deleteHostTx(ctx, tx, *host)
	})
}
