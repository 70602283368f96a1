package netexp

// recorder.go keeps the results of every run of every sweep in a sqlite
// database, alongside the csv summary.  Rows are tagged with the id of the
// sweep that produced them, so one database can accumulate many sweeps

import (
	"database/sql"
	"fmt"
	"gopkg.in/yaml.v3"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
)

const createResultsSQL = `CREATE TABLE IF NOT EXISTS results (
	sweep_id TEXT NOT NULL,
	run_idx INTEGER NOT NULL,
	name TEXT,
	n_nodes INTEGER,
	throughput REAL,
	delay REAL,
	packet_rx INTEGER,
	packet_loss INTEGER,
	pdr REAL,
	tx_packets INTEGER,
	tx_bytes INTEGER,
	rx_bytes INTEGER,
	config TEXT,
	PRIMARY KEY (sweep_id, run_idx)
);`

const insertResultSQL = `INSERT INTO results VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLiteRecorder stores run results in a database file
type SQLiteRecorder struct {
	db     *sql.DB
	dbName string
	stmt   *sql.Stmt
}

// NewSweepID returns a fresh identifier for a sweep
func NewSweepID() string {
	return xid.New().String()
}

// OpenSQLiteRecorder opens (creating if need be) the named database and its results table
func OpenSQLiteRecorder(dbName string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite3", dbName)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(createResultsSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating results table in %s: %w", dbName, err)
	}
	stmt, err := db.Prepare(insertResultSQL)
	if err != nil {
		db.Close()
		return nil, err
	}
	rec := &SQLiteRecorder{db: db, dbName: dbName, stmt: stmt}
	return rec, nil
}

// nullable maps an undefined metric to SQL NULL
func nullable(m Metric) sql.NullFloat64 {
	return sql.NullFloat64{Float64: m.Value, Valid: m.Defined}
}

// Record stores the result of the idx-th run of a sweep
func (rec *SQLiteRecorder) Record(sweepID string, idx int, res *RunResult) error {
	cfgBytes, err := yaml.Marshal(res.Config)
	if err != nil {
		return err
	}
	row := res.Row
	_, err = rec.stmt.Exec(sweepID, idx, res.Name, row.Nodes, nullable(row.Goodput), nullable(row.Delay),
		int64(row.RxPackets), int64(row.Loss), nullable(row.PDR),
		int64(res.Counters.TxPackets), int64(res.Counters.TxBytes), int64(res.Counters.RxBytes), string(cfgBytes))
	if err != nil {
		return fmt.Errorf("recording run %d of sweep %s in %s: %w", idx, sweepID, rec.dbName, err)
	}
	return nil
}

// Count returns the number of rows recorded for the sweep
func (rec *SQLiteRecorder) Count(sweepID string) (int, error) {
	var n int
	err := rec.db.QueryRow(`SELECT COUNT(*) FROM results WHERE sweep_id = ?`, sweepID).Scan(&n)
	return n, err
}

// Close releases the database.  Calling it more than once is harmless
func (rec *SQLiteRecorder) Close() error {
	if rec.db == nil {
		return nil
	}
	rec.stmt.Close()
	err := rec.db.Close()
	rec.db = nil
	return err
}
