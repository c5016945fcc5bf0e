// Package statedb persists snapshots of the live window/tab topology of
// every running taote process in SQLite, so that `taote list` and
// `taote send` can inspect and reach a running instance.
package statedb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// StateDB wraps the SQLite database. Safe for concurrent use; several
// processes can share the file through WAL mode and the busy timeout.
type StateDB struct {
	db  *sql.DB
	pid int
}

// InstanceRow is one running taote process.
type InstanceRow struct {
	PID        int
	Started    time.Time
	Heartbeat  time.Time
	RemoteAddr string
	SnapshotAt time.Time
}

// WindowRow is one top-level window in a snapshot.
type WindowRow struct {
	ID         int
	Order      int
	TitleColor int
	Label      string
	Tabs       []*TabRow
}

// TabRow is one tab in a snapshot, in window ring order.
type TabRow struct {
	ID       uint64
	Position int
	Seq      uint64
	PID      int
	Title    string
	Focused  bool
	Selected bool
}

var (
	globalDB   *StateDB
	globalDBMu sync.RWMutex
)

// SetGlobal installs the process-wide StateDB.
func SetGlobal(db *StateDB) {
	globalDBMu.Lock()
	globalDB = db
	globalDBMu.Unlock()
}

// GetGlobal returns the process-wide StateDB, or nil.
func GetGlobal() *StateDB {
	globalDBMu.RLock()
	defer globalDBMu.RUnlock()
	return globalDB
}

// Open creates or opens the database at dbPath.
func Open(dbPath string) (*StateDB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("statedb: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("statedb: open: %w", err)
	}
	// One connection keeps PRAGMA foreign_keys in effect for every statement.
	db.SetMaxOpenConns(1)

	for _, p := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("statedb: %s: %w", p, err)
		}
	}
	return &StateDB{db: db, pid: os.Getpid()}, nil
}

// Close checkpoints the WAL and closes the database.
func (s *StateDB) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// PID is the process id rows are written under.
func (s *StateDB) PID() int { return s.pid }

// --- Instances ---

// RegisterInstance records this process, replacing any stale row (and its
// snapshot) left by an earlier process with the same pid.
func (s *StateDB) RegisterInstance(remoteAddr string) error {
	now := time.Now().Unix()
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO instances (pid, started, heartbeat, remote_addr, snapshot_at)
		VALUES (?, ?, ?, ?, 0)
	`, s.pid, now, now, remoteAddr)
	if err != nil {
		return fmt.Errorf("statedb: register: %w", err)
	}
	return nil
}

// Heartbeat refreshes this process's liveness timestamp.
func (s *StateDB) Heartbeat() error {
	_, err := s.db.Exec("UPDATE instances SET heartbeat = ? WHERE pid = ?", time.Now().Unix(), s.pid)
	return err
}

// UnregisterInstance removes this process and its snapshot.
func (s *StateDB) UnregisterInstance() error {
	_, err := s.db.Exec("DELETE FROM instances WHERE pid = ?", s.pid)
	return err
}

// CleanDeadInstances drops processes whose heartbeat is older than timeout.
func (s *StateDB) CleanDeadInstances(timeout time.Duration) error {
	cutoff := time.Now().Add(-timeout).Unix()
	_, err := s.db.Exec("DELETE FROM instances WHERE heartbeat < ?", cutoff)
	return err
}

// AliveInstances lists processes with a heartbeat newer than timeout,
// newest first.
func (s *StateDB) AliveInstances(timeout time.Duration) ([]*InstanceRow, error) {
	cutoff := time.Now().Add(-timeout).Unix()
	rows, err := s.db.Query(`
		SELECT pid, started, heartbeat, remote_addr, snapshot_at
		FROM instances WHERE heartbeat >= ? ORDER BY started DESC, pid DESC
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("statedb: list instances: %w", err)
	}
	defer rows.Close()

	var out []*InstanceRow
	for rows.Next() {
		r := &InstanceRow{}
		var started, hb, snap int64
		if err := rows.Scan(&r.PID, &started, &hb, &r.RemoteAddr, &snap); err != nil {
			return nil, err
		}
		r.Started = time.Unix(started, 0)
		r.Heartbeat = time.Unix(hb, 0)
		if snap > 0 {
			r.SnapshotAt = time.Unix(0, snap)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- Snapshots ---

// SaveSnapshot replaces this process's windows and tabs in one transaction.
func (s *StateDB) SaveSnapshot(windows []*WindowRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("statedb: begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	if _, err := tx.Exec(`
		INSERT OR IGNORE INTO instances (pid, started, heartbeat) VALUES (?, ?, ?)
	`, s.pid, now.Unix(), now.Unix()); err != nil {
		return fmt.Errorf("statedb: ensure instance: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM windows WHERE instance_pid = ?", s.pid); err != nil {
		return fmt.Errorf("statedb: clear windows: %w", err)
	}

	winStmt, err := tx.Prepare(`
		INSERT INTO windows (instance_pid, id, sort_order, title_color, label)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer winStmt.Close()
	tabStmt, err := tx.Prepare(`
		INSERT INTO tabs (instance_pid, id, window_id, position, seq, pid, title, focused, selected)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer tabStmt.Close()

	for _, w := range windows {
		if _, err := winStmt.Exec(s.pid, w.ID, w.Order, w.TitleColor, w.Label); err != nil {
			return fmt.Errorf("statedb: insert window %d: %w", w.ID, err)
		}
		for _, t := range w.Tabs {
			if _, err := tabStmt.Exec(
				s.pid, int64(t.ID), w.ID, t.Position, int64(t.Seq), t.PID, t.Title,
				boolInt(t.Focused), boolInt(t.Selected),
			); err != nil {
				return fmt.Errorf("statedb: insert tab %d: %w", t.ID, err)
			}
		}
	}

	if _, err := tx.Exec(
		"UPDATE instances SET snapshot_at = ?, heartbeat = ? WHERE pid = ?",
		now.UnixNano(), now.Unix(), s.pid,
	); err != nil {
		return fmt.Errorf("statedb: stamp snapshot: %w", err)
	}
	return tx.Commit()
}

// LoadSnapshot returns the windows and tabs saved by process pid, windows
// in creation order and tabs in ring order.
func (s *StateDB) LoadSnapshot(pid int) ([]*WindowRow, error) {
	rows, err := s.db.Query(`
		SELECT id, sort_order, title_color, label
		FROM windows WHERE instance_pid = ? ORDER BY sort_order
	`, pid)
	if err != nil {
		return nil, fmt.Errorf("statedb: load windows: %w", err)
	}
	var windows []*WindowRow
	byID := make(map[int]*WindowRow)
	for rows.Next() {
		w := &WindowRow{}
		if err := rows.Scan(&w.ID, &w.Order, &w.TitleColor, &w.Label); err != nil {
			rows.Close()
			return nil, err
		}
		windows = append(windows, w)
		byID[w.ID] = w
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	trows, err := s.db.Query(`
		SELECT id, window_id, position, seq, pid, title, focused, selected
		FROM tabs WHERE instance_pid = ? ORDER BY window_id, position
	`, pid)
	if err != nil {
		return nil, fmt.Errorf("statedb: load tabs: %w", err)
	}
	defer trows.Close()
	for trows.Next() {
		t := &TabRow{}
		var id, seq int64
		var winID, focused, selected int
		if err := trows.Scan(&id, &winID, &t.Position, &seq, &t.PID, &t.Title, &focused, &selected); err != nil {
			return nil, err
		}
		t.ID, t.Seq = uint64(id), uint64(seq)
		t.Focused, t.Selected = focused != 0, selected != 0
		if w := byID[winID]; w != nil {
			w.Tabs = append(w.Tabs, t)
		}
	}
	return windows, trows.Err()
}

// --- Metadata ---

// SetMeta stores a key/value pair.
func (s *StateDB) SetMeta(key, value string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)", key, value)
	return err
}

// GetMeta returns the value for key, or "" when unset.
func (s *StateDB) GetMeta(key string) (string, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// Touch bumps the last_modified marker other processes poll.
func (s *StateDB) Touch() error {
	return s.SetMeta("last_modified", strconv.FormatInt(time.Now().UnixNano(), 10))
}

// LastModified returns the last_modified marker, or 0.
func (s *StateDB) LastModified() (int64, error) {
	v, err := s.GetMeta("last_modified")
	if err != nil || v == "" {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
