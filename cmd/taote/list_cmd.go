package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/taote/taote/internal/remote"
	"github.com/taote/taote/internal/session"
	"github.com/taote/taote/internal/statedb"
)

const tableColTitle = 40

// instanceListing is one running process in `taote list --json`.
type instanceListing struct {
	PID        int              `json:"pid"`
	Started    time.Time        `json:"started"`
	RemoteAddr string           `json:"remote_addr,omitempty"`
	Snapshot   session.Snapshot `json:"snapshot"`
}

func handleList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "Output JSON")
	live := fs.Bool("live", false, "Ask the newest instance over its control socket")
	fs.Usage = func() {
		fmt.Println("Usage: taote list [--json] [--live]")
		fs.PrintDefaults()
	}
	_ = fs.Parse(normalizeArgs(fs, args))

	db, err := openStateDB()
	if err != nil {
		return fail("%v", err)
	}
	defer db.Close()

	var listings []instanceListing
	if *live {
		l, err := liveListing(db)
		if err != nil {
			return fail("%v", err)
		}
		listings = append(listings, l)
	} else {
		listings, err = storedListings(db)
		if err != nil {
			return fail("%v", err)
		}
	}

	if *jsonOut {
		if listings == nil {
			listings = []instanceListing{}
		}
		if err := printJSON(listings); err != nil {
			return fail("%v", err)
		}
		return 0
	}
	if len(listings) == 0 {
		fmt.Println("No running taote instances.")
		return 0
	}
	writeListings(os.Stdout, listings)
	return 0
}

func openStateDB() (*statedb.StateDB, error) {
	path, err := session.GetStateDBPath()
	if err != nil {
		return nil, err
	}
	db, err := statedb.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func aliveTimeout() time.Duration {
	return 3 * time.Duration(session.GetStateSettings().HeartbeatSeconds) * time.Second
}

func storedListings(db *statedb.StateDB) ([]instanceListing, error) {
	instances, err := db.AliveInstances(aliveTimeout())
	if err != nil {
		return nil, err
	}
	var out []instanceListing
	for _, inst := range instances {
		rows, err := db.LoadSnapshot(inst.PID)
		if err != nil {
			return nil, err
		}
		out = append(out, instanceListing{
			PID:        inst.PID,
			Started:    inst.Started,
			RemoteAddr: inst.RemoteAddr,
			Snapshot:   session.SnapshotFromRows(rows, inst.SnapshotAt),
		})
	}
	return out, nil
}

func liveListing(db *statedb.StateDB) (instanceListing, error) {
	addr, pid, err := remote.Discover(db, aliveTimeout())
	if err != nil {
		return instanceListing{}, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := remote.Dial(ctx, addr, session.GetRemoteSettings().Token)
	if err != nil {
		return instanceListing{}, err
	}
	defer c.Close()
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return instanceListing{}, err
	}
	return instanceListing{PID: pid, RemoteAddr: addr, Snapshot: snap}, nil
}

func writeListings(w io.Writer, listings []instanceListing) {
	for i, l := range listings {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "PID %d", l.PID)
		if !l.Started.IsZero() {
			fmt.Fprintf(w, "  started %s", l.Started.Format("2006-01-02 15:04:05"))
		}
		if l.RemoteAddr != "" {
			fmt.Fprintf(w, "  remote %s", l.RemoteAddr)
		}
		fmt.Fprintln(w)
		writeSnapshot(w, l.Snapshot)
	}
}

func writeSnapshot(w io.Writer, s session.Snapshot) {
	if len(s.Windows) == 0 {
		fmt.Fprintln(w, "  (no windows)")
		return
	}
	for _, win := range s.Windows {
		color := win.ColorName
		if color == "" {
			color = fmt.Sprintf("colour %d", win.TitleColor)
		}
		fmt.Fprintf(w, "  window %d  [%s]  %s\n", win.ID, color, win.Label)
		for _, t := range win.Tabs {
			mark := " "
			switch {
			case t.Focused:
				mark = "*"
			case t.Closed:
				mark = "x"
			}
			sel := " "
			if t.Selected {
				sel = "+"
			}
			title := t.Title
			if title == "" {
				title = "-"
			}
			fmt.Fprintf(w, "   %s%s tab %-4d %-*s", mark, sel, t.ID, tableColTitle, truncate(title, tableColTitle))
			if t.PID > 0 {
				fmt.Fprintf(w, "  pid %d", t.PID)
			}
			fmt.Fprintln(w)
		}
	}
}
