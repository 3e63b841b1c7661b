package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	tlog "stomparena.io/internal/persistence/log"
	"stomparena.io/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "checkpoint":
			checkpointCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints the recorded matches and checkpoints under the data dir.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	for _, sub := range []string{"events", "checkpoints"} {
		entries, err := os.ReadDir(filepath.Join(*dataDir, sub))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			fmt.Println(filepath.Join(sub, e.Name()))
		}
	}
}

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	match := fs.String("match", "", "match id filter (optional)")
	kind := fs.String("kind", "", "kind filter: join, leave, start, match_over (optional)")
	_ = fs.Parse(args)

	recs, err := readAudit(filepath.Join(*dataDir, "audit"), strings.TrimSpace(*match), strings.TrimSpace(*kind))
	if err != nil {
		fmt.Fprintln(os.Stderr, "audit:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, r := range recs {
		_ = enc.Encode(r)
	}
}

func readAudit(dir, match, kind string) ([]tlog.AuditEntry, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range ents {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "audit-") && strings.HasSuffix(e.Name(), ".jsonl.zst") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []tlog.AuditEntry
	for _, name := range names {
		err := tlog.ReadJSONL(filepath.Join(dir, name), func(line []byte) error {
			var r tlog.AuditEntry
			if err := json.Unmarshal(line, &r); err != nil {
				return err
			}
			if match != "" && r.Match != match {
				return nil
			}
			if kind != "" && r.Kind != kind {
				return nil
			}
			out = append(out, r)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func checkpointCmd(args []string) {
	fs := flag.NewFlagSet("checkpoint", flag.ExitOnError)
	full := fs.Bool("full", false, "print the whole checkpoint, not just its header")
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: admin checkpoint [-full] <file.snap.zst>...")
		os.Exit(2)
	}

	enc := json.NewEncoder(os.Stdout)
	for _, path := range fs.Args() {
		var v any
		var err error
		if *full {
			v, err = snapshot.ReadSnapshot(path)
		} else {
			v, err = snapshot.ReadHeader(path)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, path+":", err)
			os.Exit(1)
		}
		_ = enc.Encode(v)
	}
}
