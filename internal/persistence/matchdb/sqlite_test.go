package matchdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"botbeats.net/rbot/internal/sim"
)

func TestSQLiteIndex_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "match.db")

	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.WriteJoin(1, "R1", "alpha", "sess-1"); err != nil {
		t.Fatalf("WriteJoin: %v", err)
	}
	if err := idx.WriteCommand(2, sim.RecordedCommand{
		Seq: 0, RobotID: "R1", CmdID: "C1", Kind: "FIRE", Accepted: false, Code: "E_REJECTED",
	}); err != nil {
		t.Fatalf("WriteCommand: %v", err)
	}
	if err := idx.WriteTick(sim.TickLogEntry{Tick: 2, Robots: 1, Commands: []sim.RecordedCommand{{CmdID: "C1"}}}); err != nil {
		t.Fatalf("WriteTick: %v", err)
	}
	// Close drains the queue before returning.
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var (
		name    string
		session string
	)
	row := db.QueryRow(`SELECT name,session_id FROM joins WHERE tick=1 AND robot_id='R1'`)
	if err := row.Scan(&name, &session); err != nil {
		t.Fatalf("Scan join: %v", err)
	}
	if name != "alpha" || session != "sess-1" {
		t.Fatalf("join row mismatch: name=%q session=%q", name, session)
	}

	var (
		kind     string
		accepted int
		code     string
	)
	row = db.QueryRow(`SELECT kind,accepted,code FROM commands WHERE tick=2 AND seq=0`)
	if err := row.Scan(&kind, &accepted, &code); err != nil {
		t.Fatalf("Scan command: %v", err)
	}
	if kind != "FIRE" || accepted != 0 || code != "E_REJECTED" {
		t.Fatalf("command row mismatch: kind=%q accepted=%d code=%q", kind, accepted, code)
	}

	var (
		robots   int
		commands int
	)
	row = db.QueryRow(`SELECT robots,commands FROM ticks WHERE tick=2`)
	if err := row.Scan(&robots, &commands); err != nil {
		t.Fatalf("Scan tick: %v", err)
	}
	if robots != 1 || commands != 1 {
		t.Fatalf("tick row mismatch: robots=%d commands=%d", robots, commands)
	}
}

func TestSQLiteIndex_WriteAfterCloseIsNoOp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "match.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := idx.WriteTick(sim.TickLogEntry{Tick: 1}); err != nil {
		t.Fatalf("WriteTick after close: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("double Close: %v", err)
	}
}
