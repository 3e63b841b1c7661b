// Package archive gathers a finished match's artifacts into one directory.
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"stomparena.io/internal/persistence/snapshot"
)

type MatchArchiveMeta struct {
	Match       string   `json:"match"`
	EndTick     uint64   `json:"end_tick"`
	Seed        int64    `json:"seed"`
	Winner      int      `json:"winner"`
	FinalDigest string   `json:"final_digest"`
	Files       []string `json:"files"`
	CreatedAt   string   `json:"created_at"`
}

// ArchiveMatch copies a match's checkpoint and tick log into
// `dataDir/archives/<match>/` next to a meta.json. It returns the paths of
// everything written, meta.json last. Missing tick logs are skipped; the
// checkpoint is required since it carries the match result.
func ArchiveMatch(dataDir, checkpointPath, tickLogPath string) ([]string, error) {
	cp, err := snapshot.ReadSnapshot(checkpointPath)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	match := cp.Header.Match
	if match == "" || filepath.Base(match) != match {
		return nil, fmt.Errorf("bad match id %q in checkpoint", match)
	}

	dir := filepath.Join(dataDir, "archives", match)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var out []string
	for _, src := range []string{checkpointPath, tickLogPath} {
		if src == "" {
			continue
		}
		if _, err := os.Stat(src); os.IsNotExist(err) && src == tickLogPath {
			continue
		}
		dst := filepath.Join(dir, filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			return out, err
		}
		out = append(out, dst)
	}

	meta := MatchArchiveMeta{
		Match:       match,
		EndTick:     cp.Header.Tick,
		Seed:        cp.Config.Seed,
		Winner:      int(cp.State.Winner),
		FinalDigest: cp.Header.Digest,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	for _, p := range out {
		meta.Files = append(meta.Files, filepath.Base(p))
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return out, err
	}
	metaPath := filepath.Join(dir, "meta.json")
	if err := os.WriteFile(metaPath, b, 0o644); err != nil {
		return out, err
	}
	return append(out, metaPath), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
