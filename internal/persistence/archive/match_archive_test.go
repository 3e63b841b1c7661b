package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"stomparena.io/internal/persistence/snapshot"
	"stomparena.io/internal/sim"
)

func TestArchiveMatch_CopiesArtifacts(t *testing.T) {
	dir := t.TempDir()

	cfg := sim.MatchConfig{Seed: 42, PlayerCount: 2, TickRate: 60}
	s := sim.Initialize(cfg)
	s.Tick = 90
	s.Winner = 1
	cpPath := filepath.Join(dir, "checkpoints", "match-000001-90.snap.zst")
	if err := snapshot.WriteSnapshot(cpPath, snapshot.New("match-000001", cfg, s, [sim.MaxPlayers]sim.Buttons{})); err != nil {
		t.Fatalf("write checkpoint: %v", err)
	}
	logPath := filepath.Join(dir, "events", "events-match-000001.jsonl.zst")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(logPath, []byte("ticks"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	files, err := ArchiveMatch(dir, cpPath, logPath)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if len(files) != 3 || filepath.Base(files[2]) != "meta.json" {
		t.Fatalf("files: %v", files)
	}
	got, err := os.ReadFile(files[1])
	if err != nil || string(got) != "ticks" {
		t.Fatalf("tick log copy: %q %v", got, err)
	}

	b, err := os.ReadFile(files[2])
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	var meta MatchArchiveMeta
	if err := json.Unmarshal(b, &meta); err != nil {
		t.Fatalf("unmarshal meta: %v", err)
	}
	if meta.Match != "match-000001" || meta.EndTick != 90 || meta.Seed != 42 || meta.Winner != 1 || meta.FinalDigest != sim.Digest(s) {
		t.Fatalf("meta: %+v", meta)
	}
}

func TestArchiveMatch_SkipsMissingTickLog(t *testing.T) {
	dir := t.TempDir()
	cfg := sim.MatchConfig{Seed: 1, PlayerCount: 2, TickRate: 60}
	cpPath := filepath.Join(dir, "cp.snap.zst")
	if err := snapshot.WriteSnapshot(cpPath, snapshot.New("m", cfg, sim.Initialize(cfg), [sim.MaxPlayers]sim.Buttons{})); err != nil {
		t.Fatalf("write checkpoint: %v", err)
	}
	files, err := ArchiveMatch(dir, cpPath, filepath.Join(dir, "nope.jsonl.zst"))
	if err != nil || len(files) != 2 {
		t.Fatalf("files=%v err=%v", files, err)
	}
}
