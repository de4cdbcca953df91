package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/netip"

	"github.com/google/uuid"
)

// maxRangeSize caps how many leases a single range may expand into. The pool
// is materialized row-per-address, so an unbounded range is a request bug,
// not a capacity plan.
const maxRangeSize = 1 << 16

// IPRangeInput is the request-level form of a range, before validation.
type IPRangeInput struct {
	StartIP string `json:"start_ip"`
	EndIP   string `json:"end_ip"`
}

func parseRange(in IPRangeInput) (netip.Addr, netip.Addr, error) {
	start, err := netip.ParseAddr(in.StartIP)
	if err != nil {
		return netip.Addr{}, netip.Addr{}, &ValidationError{Field: "start_ip", Reason: err.Error()}
	}
	end, err := netip.ParseAddr(in.EndIP)
	if err != nil {
		return netip.Addr{}, netip.Addr{}, &ValidationError{Field: "end_ip", Reason: err.Error()}
	}
	if !start.Is4() || !end.Is4() {
		return netip.Addr{}, netip.Addr{}, &ValidationError{Field: "ip_range", Reason: "only IPv4 ranges are supported"}
	}
	if end.Less(start) {
		return netip.Addr{}, netip.Addr{}, &ValidationError{Field: "ip_range", Reason: "start_ip must not exceed end_ip"}
	}
	return start, end, nil
}

// addIPRangeTx records the range and expands it into the datacenter's lease
// pool, one service_ips row per address.
func addIPRangeTx(ctx context.Context, tx *sql.Tx, dcID string, in IPRangeInput) (*IPRange, error) {
	start, end, err := parseRange(in)
	if err != nil {
		return nil, err
	}

	size := int64(be32(end)) - int64(be32(start)) + 1
	if size > maxRangeSize {
		return nil, &ValidationError{Field: "ip_range", Reason: fmt.Sprintf("range spans %d addresses, limit is %d", size, maxRangeSize)}
	}

	r := &IPRange{
		ID:      uuid.NewString(),
		DCID:    dcID,
		StartIP: start.String(),
		EndIP:   end.String(),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ip_ranges (id, dc_id, start_ip, end_ip) VALUES (?, ?, ?, ?)`,
		r.ID, r.DCID, r.StartIP, r.EndIP,
	); err != nil {
		return nil, fmt.Errorf("insert ip range: %w", err)
	}

	for addr := start; ; addr = addr.Next() {
		// OR IGNORE: overlapping ranges may share addresses; the pool keeps
		// one lease per address.
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO service_ips (ip, dc_id, assigned) VALUES (?, ?, 0)`,
			addr.String(), dcID,
		); err != nil {
			return nil, fmt.Errorf("insert lease %s: %w", addr, err)
		}
		if addr == end {
			break
		}
	}
	return r, nil
}

func be32(a netip.Addr) uint32 {
	b := a.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func ipRangesForDCTx(ctx context.Context, tx *sql.Tx, dcID string) ([]IPRange, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, dc_id, start_ip, end_ip FROM ip_ranges WHERE dc_id = ? ORDER BY start_ip`, dcID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ranges []IPRange
	for rows.Next() {
		var r IPRange
		if err := rows.Scan(&r.ID, &r.DCID, &r.StartIP, &r.EndIP); err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, rows.Err()
}

// dropIPRangesForDCTx removes the datacenter's ranges and lease pool. It
// refuses while any lease is held by a live host, because dropping it would
// orphan the host's address.
func dropIPRangesForDCTx(ctx context.Context, tx *sql.Tx, dcID string) error {
	var held int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM service_ips WHERE dc_id = ? AND assigned = 1`, dcID,
	).Scan(&held); err != nil {
		return err
	}
	if held > 0 {
		return &HasDependentsError{Kind: "ip_range set", Ref: dcID, ChildKind: "assigned lease", Children: held}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM service_ips WHERE dc_id = ?`, dcID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ip_ranges WHERE dc_id = ?`, dcID); err != nil {
		return err
	}
	return nil
}

// allocateLeaseTx claims a free lease from the service's pool. Returns nil
// without error when the pool has nothing free: a host may exist without an
// address until the pool grows.
func allocateLeaseTx(ctx context.Context, tx *sql.Tx, serviceID string) (*string, error) {
	var ip string
	err := tx.QueryRowContext(ctx,
		`SELECT ip FROM service_ips WHERE service_id = ? AND assigned = 0 ORDER BY ip LIMIT 1`,
		serviceID,
	).Scan(&ip)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE service_ips SET assigned = 1 WHERE ip = ?`, ip); err != nil {
		return nil, err
	}
	return &ip, nil
}

// markLeaseTx flips the assigned flag for ip if it is pool-managed. Explicit
// addresses outside any range are not leases and are left alone.
func markLeaseTx(ctx context.Context, tx *sql.Tx, ip string, assigned bool) error {
	flag := 0
	if assigned {
		flag = 1
	}
	_, err := tx.ExecContext(ctx, `UPDATE service_ips SET assigned = ? WHERE ip = ?`, flag, ip)
	return err
}

// IPRangesForDatacenter lists the ranges owned by one datacenter.
func (s *Store) IPRangesForDatacenter(ctx context.Context, dcID string) ([]IPRange, error) {
	var out []IPRange
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = ipRangesForDCTx(ctx, tx, dcID)
		return err
	})
	return out, err
}

// AddIPRange appends a range to an existing datacenter's pool.
func (s *Store) AddIPRange(ctx context.Context, dcID string, in IPRangeInput) (*IPRange, error) {
	var out *IPRange
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getDatacenterTx(ctx, tx, dcID); err != nil {
			return err
		}
		var err error
		out, err = addIPRangeTx(ctx, tx, dcID, in)
		return err
	})
	return out, err
}
