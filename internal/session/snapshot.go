package session

import (
	"log/slog"
	"time"

	"github.com/taote/taote/internal/logging"
	"github.com/taote/taote/internal/statedb"
)

// TabInfo describes one tab in a Snapshot.
type TabInfo struct {
	ID       uint64 `json:"id"`
	Seq      uint64 `json:"seq"`
	PID      int    `json:"pid,omitempty"`
	Title    string `json:"title,omitempty"`
	Closed   bool   `json:"closed,omitempty"`
	Focused  bool   `json:"focused,omitempty"`
	Selected bool   `json:"selected,omitempty"`
}

// WindowInfo describes one window in a Snapshot.
type WindowInfo struct {
	ID         int       `json:"id"`
	TitleColor int       `json:"title_color"`
	ColorName  string    `json:"color_name,omitempty"`
	Label      string    `json:"label"`
	Tabs       []TabInfo `json:"tabs"`
}

// Snapshot is an immutable copy of the topology, safe to hand to other
// goroutines.
type Snapshot struct {
	Windows  []WindowInfo `json:"windows"`
	Selected []uint64     `json:"selected,omitempty"`
	Seq      uint64       `json:"seq"`
	TakenAt  time.Time    `json:"taken_at"`
}

// Snapshot copies the live topology.
func (rt *Runtime) Snapshot() Snapshot {
	s := Snapshot{Seq: rt.seq, TakenAt: time.Now()}
	for _, w := range rt.windows {
		if w.destroying {
			continue
		}
		wi := WindowInfo{ID: w.id, TitleColor: w.titleColor, Label: w.label}
		if w.titleColor < len(rt.settings.TitleColors) {
			wi.ColorName = rt.settings.TitleColors[w.titleColor].Name
		}
		for _, t := range w.Tabs() {
			wi.Tabs = append(wi.Tabs, TabInfo{
				ID:       uint64(t.id),
				Seq:      t.seq,
				PID:      t.pid,
				Title:    t.Title(),
				Closed:   t.IsClosed(),
				Focused:  t == w.focused,
				Selected: t.IsSelected(),
			})
		}
		s.Windows = append(s.Windows, wi)
	}
	for _, t := range rt.SelectedTabs() {
		s.Selected = append(s.Selected, uint64(t.id))
	}
	return s
}

// Rows converts the snapshot into statedb rows.
func (s Snapshot) Rows() []*statedb.WindowRow {
	rows := make([]*statedb.WindowRow, 0, len(s.Windows))
	for i, w := range s.Windows {
		wr := &statedb.WindowRow{ID: w.ID, Order: i, TitleColor: w.TitleColor, Label: w.Label}
		for j, t := range w.Tabs {
			wr.Tabs = append(wr.Tabs, &statedb.TabRow{
				ID:       t.ID,
				Position: j,
				Seq:      t.Seq,
				PID:      t.PID,
				Title:    t.Title,
				Focused:  t.Focused,
				Selected: t.Selected,
			})
		}
		rows = append(rows, wr)
	}
	return rows
}

// SnapshotFromRows rebuilds a snapshot read back from statedb.
func SnapshotFromRows(rows []*statedb.WindowRow, takenAt time.Time) Snapshot {
	s := Snapshot{TakenAt: takenAt}
	for _, wr := range rows {
		wi := WindowInfo{ID: wr.ID, TitleColor: wr.TitleColor, Label: wr.Label}
		for _, tr := range wr.Tabs {
			wi.Tabs = append(wi.Tabs, TabInfo{
				ID:       tr.ID,
				Seq:      tr.Seq,
				PID:      tr.PID,
				Title:    tr.Title,
				Closed:   tr.Seq == 0,
				Focused:  tr.Focused,
				Selected: tr.Selected,
			})
			if tr.Selected {
				s.Selected = append(s.Selected, tr.ID)
			}
			if tr.Seq > s.Seq {
				s.Seq = tr.Seq
			}
		}
		s.Windows = append(s.Windows, wi)
	}
	return s
}

// SnapshotWriter persists snapshots off the loop goroutine. Only the newest
// pending snapshot is written.
type SnapshotWriter struct {
	db      *statedb.StateDB
	pending chan Snapshot
	done    chan struct{}
}

var stateLog = logging.ForComponent(logging.CompState)

// NewSnapshotWriter starts a writer goroutine; call Close to stop it.
func NewSnapshotWriter(db *statedb.StateDB) *SnapshotWriter {
	w := &SnapshotWriter{
		db:      db,
		pending: make(chan Snapshot, 1),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Submit queues s, replacing any snapshot not yet written.
func (w *SnapshotWriter) Submit(s Snapshot) {
	for {
		select {
		case w.pending <- s:
			return
		default:
		}
		select {
		case <-w.pending:
		default:
		}
	}
}

func (w *SnapshotWriter) run() {
	defer close(w.done)
	for s := range w.pending {
		if err := w.db.SaveSnapshot(s.Rows()); err != nil {
			stateLog.Warn("snapshot_save_failed", slog.String("error", err.Error()))
			continue
		}
		logging.Aggregate(logging.CompState, "snapshot_saved", slog.Int("windows", len(s.Windows)))
	}
}

// Close writes the last queued snapshot and stops the writer.
func (w *SnapshotWriter) Close() {
	close(w.pending)
	<-w.done
}
