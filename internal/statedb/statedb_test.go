package statedb

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *StateDB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleSnapshot() []*WindowRow {
	return []*WindowRow{
		{ID: 1, Order: 0, TitleColor: 2, Label: "☐  2/2  vim", Tabs: []*TabRow{
			{ID: 1, Position: 0, Seq: 3, PID: 100, Title: "bash"},
			{ID: 2, Position: 1, Seq: 5, PID: 101, Title: "vim", Focused: true, Selected: true},
		}},
		{ID: 2, Order: 1, TitleColor: 0, Label: "☐  1/1  ", Tabs: []*TabRow{
			{ID: 4, Position: 0, Seq: 7, PID: 0},
		}},
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	v, err := db.GetMeta("schema_version")
	if err != nil {
		t.Fatal(err)
	}
	if v != "2" {
		t.Errorf("schema_version = %q, want 2", v)
	}
}

func TestMigrateRejectsNewerSchema(t *testing.T) {
	db := newTestDB(t)
	if err := db.SetMeta("schema_version", "99"); err != nil {
		t.Fatal(err)
	}
	if err := db.Migrate(); err == nil {
		t.Fatal("expected error for newer schema")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	db := newTestDB(t)
	if err := db.RegisterInstance("127.0.0.1:7780"); err != nil {
		t.Fatalf("RegisterInstance: %v", err)
	}
	if err := db.SaveSnapshot(sampleSnapshot()); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	got, err := db.LoadSnapshot(db.PID())
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(got))
	}
	if got[0].TitleColor != 2 || got[0].Label != "☐  2/2  vim" || len(got[0].Tabs) != 2 {
		t.Errorf("unexpected window 1: %+v", got[0])
	}
	tab := got[0].Tabs[1]
	if tab.ID != 2 || tab.Seq != 5 || tab.PID != 101 || !tab.Focused || !tab.Selected || tab.Title != "vim" {
		t.Errorf("unexpected tab: %+v", tab)
	}
	if len(got[1].Tabs) != 1 || got[1].Tabs[0].ID != 4 {
		t.Errorf("unexpected window 2: %+v", got[1])
	}
}

func TestSaveSnapshotReplacesPrevious(t *testing.T) {
	db := newTestDB(t)
	if err := db.SaveSnapshot(sampleSnapshot()); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveSnapshot([]*WindowRow{{ID: 3, Tabs: []*TabRow{{ID: 9, Seq: 11}}}}); err != nil {
		t.Fatal(err)
	}
	got, err := db.LoadSnapshot(db.PID())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != 3 || len(got[0].Tabs) != 1 || got[0].Tabs[0].ID != 9 {
		t.Errorf("snapshot not replaced: %+v", got)
	}

	var n int
	if err := db.db.QueryRow("SELECT COUNT(*) FROM tabs").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected stale tabs cascaded away, have %d rows", n)
	}
}

func TestInstancesLifecycle(t *testing.T) {
	db := newTestDB(t)
	if err := db.RegisterInstance("127.0.0.1:1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveSnapshot(sampleSnapshot()); err != nil {
		t.Fatal(err)
	}
	if err := db.Heartbeat(); err != nil {
		t.Fatal(err)
	}

	alive, err := db.AliveInstances(time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if len(alive) != 1 || alive[0].PID != db.PID() || alive[0].RemoteAddr != "127.0.0.1:1" {
		t.Fatalf("unexpected instances: %+v", alive)
	}
	if alive[0].SnapshotAt.IsZero() {
		t.Error("expected snapshot timestamp")
	}

	if err := db.UnregisterInstance(); err != nil {
		t.Fatal(err)
	}
	alive, err = db.AliveInstances(time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if len(alive) != 0 {
		t.Errorf("expected no instances, got %d", len(alive))
	}
	wins, err := db.LoadSnapshot(db.PID())
	if err != nil {
		t.Fatal(err)
	}
	if len(wins) != 0 {
		t.Errorf("expected snapshot removed with instance, got %d windows", len(wins))
	}
}

func TestCleanDeadInstances(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.db.Exec(
		"INSERT INTO instances (pid, started, heartbeat) VALUES (?, ?, ?)",
		424242, time.Now().Add(-time.Hour).Unix(), time.Now().Add(-time.Hour).Unix(),
	); err != nil {
		t.Fatal(err)
	}
	if err := db.RegisterInstance(""); err != nil {
		t.Fatal(err)
	}
	if err := db.CleanDeadInstances(time.Minute); err != nil {
		t.Fatal(err)
	}
	alive, err := db.AliveInstances(24 * time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(alive) != 1 || alive[0].PID != db.PID() {
		t.Errorf("expected only this process, got %+v", alive)
	}
}

func TestMetaAndTouch(t *testing.T) {
	db := newTestDB(t)
	if v, err := db.GetMeta("missing"); err != nil || v != "" {
		t.Errorf("GetMeta(missing) = %q, %v", v, err)
	}
	if ts, err := db.LastModified(); err != nil || ts != 0 {
		t.Errorf("LastModified before Touch = %d, %v", ts, err)
	}
	if err := db.Touch(); err != nil {
		t.Fatal(err)
	}
	ts, err := db.LastModified()
	if err != nil || ts <= 0 {
		t.Errorf("LastModified = %d, %v", ts, err)
	}
}

func TestGlobal(t *testing.T) {
	db := newTestDB(t)
	SetGlobal(db)
	defer SetGlobal(nil)
	if GetGlobal() != db {
		t.Error("GetGlobal did not return installed db")
	}
}
