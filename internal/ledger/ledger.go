/*
Copyright © 2019 the gridcollect authors.
This file is part of gridcollect.

gridcollect is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

gridcollect is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with gridcollect.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package ledger records the progress of collection runs in a SQLite
// database, so that the state of a long run can be inspected from outside
// the collecting process.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	version TEXT,
	config TEXT,
	started_at DATETIME
);
CREATE TABLE IF NOT EXISTS flushed_rows (
	run_id TEXT,
	setup_id INTEGER,
	row INTEGER,
	no_data INTEGER,
	flushed_at DATETIME,
	PRIMARY KEY (run_id, setup_id, row)
);
CREATE TABLE IF NOT EXISTS setups (
	run_id TEXT,
	setup_id INTEGER,
	files TEXT,
	completed_at DATETIME,
	PRIMARY KEY (run_id, setup_id)
);
`

// NewRunID returns a new random run identifier.
func NewRunID() string { return uuid.New().String() }

// Ledger is the progress database. It implements gridcollect.Progress for
// one run.
type Ledger struct {
	db    *sql.DB
	runID string
}

// Open opens or creates the database at path and registers a new run with
// the given ID. config is a fingerprint of the run's settings.
func Open(path, runID, version, config string) (*Ledger, error) {
	l, err := open(path, true)
	if err != nil {
		return nil, err
	}
	l.runID = runID
	_, err = l.db.Exec(`INSERT INTO runs (id, version, config, started_at) VALUES (?, ?, ?, ?)`,
		runID, version, config, time.Now().UTC())
	if err != nil {
		l.db.Close()
		return nil, fmt.Errorf("ledger: registering run %s: %v", runID, err)
	}
	return l, nil
}

// OpenReadOnly opens an existing database for Status queries.
func OpenReadOnly(path string) (*Ledger, error) {
	return open("file:"+path+"?mode=ro", false)
}

func open(dsn string, create bool) (*Ledger, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if !create {
		return &Ledger{db: db}, nil
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: creating tables: %v", err)
	}
	return &Ledger{db: db}, nil
}

// RunID returns the ID of the run the ledger records.
func (l *Ledger) RunID() string { return l.runID }

// RowFlushed records that a row has been written.
func (l *Ledger) RowFlushed(setupID, row int, noData bool) error {
	_, err := l.db.Exec(`INSERT OR REPLACE INTO flushed_rows (run_id, setup_id, row, no_data, flushed_at) VALUES (?, ?, ?, ?, ?)`,
		l.runID, setupID, row, noData, time.Now().UTC())
	return err
}

// SetupCompleted records that all rows of a setup have been written.
func (l *Ledger) SetupCompleted(setupID int, files []string) error {
	filesJSON, err := json.Marshal(files)
	if err != nil {
		return err
	}
	_, err = l.db.Exec(`INSERT OR REPLACE INTO setups (run_id, setup_id, files, completed_at) VALUES (?, ?, ?, ?)`,
		l.runID, setupID, string(filesJSON), time.Now().UTC())
	return err
}

// Close closes the database.
func (l *Ledger) Close() error { return l.db.Close() }

// SetupProgress is the recorded progress of one setup.
type SetupProgress struct {
	SetupID    int
	Rows       int // rows written
	NoDataRows int
	LastRow    int // highest row written
	Complete   bool
	Files      []string
}

// RunStatus is the recorded progress of one run.
type RunStatus struct {
	RunID   string
	Version string
	Config  string
	Started time.Time
	Setups  []SetupProgress
}

// Status returns the progress of the run with the given ID, or of the most
// recently started run if runID is empty.
func (l *Ledger) Status(runID string) (*RunStatus, error) {
	s := new(RunStatus)
	var row *sql.Row
	if runID == "" {
		row = l.db.QueryRow(`SELECT id, version, config, started_at FROM runs ORDER BY started_at DESC LIMIT 1`)
	} else {
		row = l.db.QueryRow(`SELECT id, version, config, started_at FROM runs WHERE id = ?`, runID)
	}
	if err := row.Scan(&s.RunID, &s.Version, &s.Config, &s.Started); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("ledger: no run %q recorded", runID)
		}
		return nil, err
	}

	setups := make(map[int]*SetupProgress)
	get := func(id int) *SetupProgress {
		p, ok := setups[id]
		if !ok {
			p = &SetupProgress{SetupID: id, LastRow: -1}
			setups[id] = p
		}
		return p
	}

	rows, err := l.db.Query(`SELECT setup_id, COUNT(*), SUM(no_data), MAX(row) FROM flushed_rows WHERE run_id = ? GROUP BY setup_id`, s.RunID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, n, nodata, last int
		if err := rows.Scan(&id, &n, &nodata, &last); err != nil {
			return nil, err
		}
		p := get(id)
		p.Rows, p.NoDataRows, p.LastRow = n, nodata, last
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	done, err := l.db.Query(`SELECT setup_id, files FROM setups WHERE run_id = ?`, s.RunID)
	if err != nil {
		return nil, err
	}
	defer done.Close()
	for done.Next() {
		var id int
		var filesJSON string
		if err := done.Scan(&id, &filesJSON); err != nil {
			return nil, err
		}
		p := get(id)
		p.Complete = true
		if err := json.Unmarshal([]byte(filesJSON), &p.Files); err != nil {
			return nil, err
		}
	}
	if err := done.Err(); err != nil {
		return nil, err
	}

	for _, p := range setups {
		s.Setups = append(s.Setups, *p)
	}
	sort.Slice(s.Setups, func(i, j int) bool { return s.Setups[i].SetupID < s.Setups[j].SetupID })
	return s, nil
}
