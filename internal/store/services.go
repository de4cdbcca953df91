package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type CreateServiceParams struct {
	Name    string
	RackIDs []string
	IPList  []string
}

type UpdateServiceParams struct {
	Name *string
	// RackIDs, when non-nil, replaces the service's rack set.
	RackIDs []string
	// IPList, when non-nil, replaces the service's address list.
	IPList []string
}

func checkServiceNameTx(ctx context.Context, tx *sql.Tx, name, excludeID string) error {
	var id string
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM services WHERE name = ? AND id != ?`, name, excludeID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	return &ConflictError{Kind: "service", Field: "name", Value: name}
}

func getServiceTx(ctx context.Context, tx *sql.Tx, id string) (*Service, error) {
	var svc Service
	err := tx.QueryRowContext(ctx,
		`SELECT id, name, n_racks, n_hosts, total_ip FROM services WHERE id = ?`, id,
	).Scan(&svc.ID, &svc.Name, &svc.NRacks, &svc.NHosts, &svc.TotalIP)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "service", Ref: id}
	}
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

// attachIPTx binds an address to a service. Pool leases are claimed in
// place; addresses outside any datacenter pool are inserted as standalone
// rows. An address held by another service is a conflict; one the service
// already holds is a no-op so total_ip stays equal to the held addresses.
func attachIPTx(ctx context.Context, tx *sql.Tx, serviceID, ip string) error {
	var owner sql.NullString
	err := tx.QueryRowContext(ctx, `SELECT service_id FROM service_ips WHERE ip = ?`, ip).Scan(&owner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO service_ips (ip, dc_id, service_id, assigned) VALUES (?, NULL, ?, 0)`,
			ip, serviceID,
		); err != nil {
			return fmt.Errorf("insert service ip: %w", err)
		}
	case err != nil:
		return err
	case owner.Valid && owner.String == serviceID:
		return nil
	case owner.Valid:
		return &ConflictError{Kind: "service", Field: "ip", Value: ip}
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE service_ips SET service_id = ? WHERE ip = ?`, serviceID, ip,
		); err != nil {
			return fmt.Errorf("claim service ip: %w", err)
		}
	}
	return adjustCount(ctx, tx, "services", colTotalIP, serviceID, +1)
}

// releaseServiceIPsTx drops a service's claim on every address it holds.
// Pool leases go back to their datacenter pool; standalone rows are removed
// unless a live host still answers on them (the host keeps its address, the
// row just loses its service).
func releaseServiceIPsTx(ctx context.Context, tx *sql.Tx, serviceID string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM service_ips WHERE service_id = ? AND dc_id IS NULL AND assigned = 0`, serviceID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE service_ips SET service_id = NULL WHERE service_id = ?`, serviceID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE services SET total_ip = 0, updated_at = ? WHERE id = ?`, now(), serviceID)
	return err
}

func (s *Store) CreateService(ctx context.Context, p CreateServiceParams) (*ServiceDetail, error) {
	if p.Name == "" {
		return nil, &ValidationError{Field: "name", Reason: "required"}
	}

	var svc Service
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkServiceNameTx(ctx, tx, p.Name, ""); err != nil {
			return err
		}
		svc = Service{ID: uuid.NewString(), Name: p.Name}
		ts := now()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO services (id, name, n_racks, n_hosts, total_ip, created_at, updated_at)
			 VALUES (?, ?, 0, 0, 0, ?, ?)`,
			svc.ID, svc.Name, ts, ts,
		); err != nil {
			return fmt.Errorf("insert service: %w", err)
		}

		for _, rackID := range p.RackIDs {
			rack, err := getRackTx(ctx, tx, rackID)
			if err != nil {
				return err
			}
			if err := assignServiceTx(ctx, tx, rack, &svc.ID); err != nil {
				return err
			}
		}
		for _, ip := range p.IPList {
			if err := attachIPTx(ctx, tx, svc.ID, ip); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetService(ctx, svc.ID)
}

func (s *Store) GetService(ctx context.Context, id string) (*ServiceDetail, error) {
	var out ServiceDetail
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		svc, err := getServiceTx(ctx, tx, id)
		if err != nil {
			return err
		}
		out.Service = *svc

		out.Racks, err = racksByServiceTx(ctx, tx, id)
		if err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT ip, assigned FROM service_ips WHERE service_id = ? ORDER BY ip`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		out.TotalIPs = []string{}
		out.AvailableIPs = []string{}
		for rows.Next() {
			var ip string
			var assigned int
			if err := rows.Scan(&ip, &assigned); err != nil {
				return err
			}
			out.TotalIPs = append(out.TotalIPs, ip)
			if assigned == 0 {
				out.AvailableIPs = append(out.AvailableIPs, ip)
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	if out.Racks == nil {
		out.Racks = []Rack{}
	}
	return &out, nil
}

func (s *Store) ListServices(ctx context.Context) ([]Service, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, n_racks, n_hosts, total_ip FROM services ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Service{}
	for rows.Next() {
		var svc Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.NRacks, &svc.NHosts, &svc.TotalIP); err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

func (s *Store) UpdateService(ctx context.Context, id string, p UpdateServiceParams) (*ServiceDetail, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		svc, err := getServiceTx(ctx, tx, id)
		if err != nil {
			return err
		}

		if p.Name != nil && *p.Name != svc.Name {
			if err := checkServiceNameTx(ctx, tx, *p.Name, id); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE services SET name = ?, updated_at = ? WHERE id = ?`, *p.Name, now(), id,
			); err != nil {
				return fmt.Errorf("update service: %w", err)
			}
		}

		if p.RackIDs != nil {
			current, err := racksByServiceTx(ctx, tx, id)
			if err != nil {
				return err
			}
			for _, rack := range current {
				r := rack
				if err := assignServiceTx(ctx, tx, &r, nil); err != nil {
					return err
				}
			}
			for _, rackID := range p.RackIDs {
				rack, err := getRackTx(ctx, tx, rackID)
				if err != nil {
					return err
				}
				if err := assignServiceTx(ctx, tx, rack, &id); err != nil {
					return err
				}
			}
		}

		if p.IPList != nil {
			if err := releaseServiceIPsTx(ctx, tx, id); err != nil {
				return err
			}
			for _, ip := range p.IPList {
				if err := attachIPTx(ctx, tx, id, ip); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetService(ctx, id)
}

// AddIPToService binds one more address to a service.
func (s *Store) AddIPToService(ctx context.Context, serviceID, ip string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getServiceTx(ctx, tx, serviceID); err != nil {
			return err
		}
		return attachIPTx(ctx, tx, serviceID, ip)
	})
}

// RemoveIPFromService releases one address. A lease held by a live host
// cannot be removed.
func (s *Store) RemoveIPFromService(ctx context.Context, serviceID, ip string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var dcID sql.NullString
		var assigned int
		err := tx.QueryRowContext(ctx,
			`SELECT dc_id, assigned FROM service_ips WHERE ip = ? AND service_id = ?`, ip, serviceID,
		).Scan(&dcID, &assigned)
		if errors.Is(err, sql.ErrNoRows) {
			return &NotFoundError{Kind: "service ip", Ref: ip}
		}
		if err != nil {
			return err
		}
		if assigned == 1 {
			return &HasDependentsError{Kind: "service ip", Ref: ip, ChildKind: "host", Children: 1}
		}

		if dcID.Valid {
			_, err = tx.ExecContext(ctx, `UPDATE service_ips SET service_id = NULL WHERE ip = ?`, ip)
		} else {
			_, err = tx.ExecContext(ctx, `DELETE FROM service_ips WHERE ip = ?`, ip)
		}
		if err != nil {
			return err
		}
		return adjustCount(ctx, tx, "services", colTotalIP, serviceID, -1)
	})
}

// DeleteService unassigns the service's racks (transferring their counts
// away), releases its addresses, and removes the row.
func (s *Store) DeleteService(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getServiceTx(ctx, tx, id); err != nil {
			return err
		}

		racks, err := racksByServiceTx(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, rack := range racks {
			r := rack
			if err := assignServiceTx(ctx, tx, &r, nil); err != nil {
				return err
			}
		}

		if err := releaseServiceIPsTx(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM services WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete service: %w", err)
		}
		return nil
	})
}
