package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"dcinv/internal/shared"
	"dcinv/internal/store"
)

// counterCheck recomputes one denormalized counter from ground truth.
type counterCheck struct {
	table  string
	column string
	// truth counts children of the row identified by ?.
	truth string
}

var checks = []counterCheck{
	{"datacenters", "n_rooms", `SELECT COUNT(*) FROM rooms WHERE dc_id = ?`},
	{"datacenters", "n_racks", `SELECT COUNT(*) FROM racks WHERE dc_id = ?`},
	{"datacenters", "n_hosts", `SELECT COUNT(*) FROM hosts WHERE dc_id = ?`},
	{"rooms", "n_racks", `SELECT COUNT(*) FROM racks WHERE room_id = ?`},
	{"rooms", "n_hosts", `SELECT COUNT(*) FROM hosts WHERE room_id = ?`},
	{"racks", "n_hosts", `SELECT COUNT(*) FROM hosts WHERE rack_id = ?`},
	{"services", "n_racks", `SELECT COUNT(*) FROM racks WHERE service_id = ?`},
	{"services", "n_hosts", `SELECT COUNT(*) FROM hosts WHERE service_id = ?`},
	{"services", "total_ip", `SELECT COUNT(*) FROM service_ips WHERE service_id = ?`},
}

func main() {
	repair := flag.Bool("repair", false, "rewrite drifted counters from ground truth")
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := shared.LoadServerConfig("")
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	db, err := store.OpenDB(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open db")
	}
	defer db.Close()

	if err := listTables(db); err != nil {
		logger.Fatal().Err(err).Msg("list tables")
	}

	drift := 0
	for _, c := range checks {
		n, err := runCheck(db, c, *repair)
		if err != nil {
			logger.Fatal().Err(err).
				Str("table", c.table).Str("column", c.column).Msg("check failed")
		}
		drift += n
	}

	if drift == 0 {
		fmt.Println("all counters consistent")
		return
	}
	if *repair {
		fmt.Printf("%d counter(s) repaired\n", drift)
		return
	}
	fmt.Printf("%d counter(s) drifted (run with -repair to fix)\n", drift)
	os.Exit(1)
}

func listTables(db *sql.DB) error {
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' ORDER BY name`)
	if err != nil {
		return err
	}
	defer rows.Close()

	fmt.Println("Tables:")
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		fmt.Println(" -", name)
	}
	return rows.Err()
}

// runCheck compares one counter column against its recomputed value for
// every row of the table, returning the number of drifted rows.
func runCheck(db *sql.DB, c counterCheck, repair bool) (int, error) {
	rows, err := db.Query(fmt.Sprintf(`SELECT id, %s FROM %s`, c.column, c.table))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type row struct {
		id     string
		stored int
	}
	var all []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.stored); err != nil {
			return 0, err
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	drift := 0
	for _, r := range all {
		var actual int
		if err := db.QueryRow(c.truth, r.id).Scan(&actual); err != nil {
			return 0, err
		}
		if actual == r.stored {
			continue
		}
		drift++
		fmt.Printf("drift: %s[%s].%s stored=%d actual=%d\n",
			c.table, r.id, c.column, r.stored, actual)
		if repair {
			q := fmt.Sprintf(`UPDATE %s SET %s = ? WHERE id = ?`, c.table, c.column)
			if _, err := db.Exec(q, actual, r.id); err != nil {
				return 0, err
			}
		}
	}
	return drift, nil
}
