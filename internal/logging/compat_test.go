package logging

import (
	"path/filepath"
	"testing"
)

func TestBridgeWriterParsesComponent(t *testing.T) {
	Shutdown()
	dir := t.TempDir()
	Init(Config{Debug: true, LogDir: dir})
	defer Shutdown()

	bw := NewBridgeWriter("stdlib")
	tests := []struct {
		in, comp, msg string
	}{
		{"[REMOTE] client connected\n", "remote", "client connected"},
		{"2026/01/02 15:04:05 plain line\n", "stdlib", "plain line"},
		{"15:04:05 [ui] resized\n", "ui", "resized"},
		{"   \n", "", ""},
	}
	for _, tt := range tests {
		if n, err := bw.Write([]byte(tt.in)); err != nil || n != len(tt.in) {
			t.Fatalf("Write(%q) = %d, %v", tt.in, n, err)
		}
	}

	recs := readRecords(t, filepath.Join(dir, LogFileName))
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	for i, tt := range tests[:3] {
		if recs[i]["component"] != tt.comp || recs[i]["msg"] != tt.msg {
			t.Errorf("record %d = %v, want component=%s msg=%s", i, recs[i], tt.comp, tt.msg)
		}
	}
}
