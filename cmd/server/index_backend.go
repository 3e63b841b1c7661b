package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"stomparena.io/internal/persistence/indexdb"
	"stomparena.io/internal/persistence/r2s3"
	tlog "stomparena.io/internal/persistence/log"
)

func openRuntimeIndex(dataDir string, disableDB bool) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("STOMP_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "matches.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported STOMP_INDEX_BACKEND: %s", backend)
	}
}

// multiTickLogger fans tick entries out to the JSONL log and the index.
type multiTickLogger struct {
	a *tlog.TickLogger
	b *indexdb.SQLiteIndex
}

func (m multiTickLogger) WriteTick(entry tlog.TickEntry) error {
	err := m.a.WriteTick(entry)
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return err
}

func (m multiTickLogger) Path(match string) string { return m.a.Path(match) }
func (m multiTickLogger) Close() error             { return m.a.Close() }

type multiAuditLogger struct {
	a *tlog.AuditLogger
	b *indexdb.SQLiteIndex
}

func (m multiAuditLogger) WriteAudit(entry tlog.AuditEntry) error {
	err := m.a.WriteAudit(entry)
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return err
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// openArchiveUploader returns nil unless STOMP_ARCHIVE_ENDPOINT is set.
func openArchiveUploader(logger *log.Logger) (*r2s3.Uploader, error) {
	endpoint := strings.TrimSpace(os.Getenv("STOMP_ARCHIVE_ENDPOINT"))
	if endpoint == "" {
		return nil, nil
	}
	c, err := r2s3.New(r2s3.Config{
		Endpoint:        endpoint,
		Bucket:          os.Getenv("STOMP_ARCHIVE_BUCKET"),
		AccessKeyID:     os.Getenv("STOMP_ARCHIVE_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("STOMP_ARCHIVE_SECRET_ACCESS_KEY"),
		Region:          os.Getenv("STOMP_ARCHIVE_REGION"),
	})
	if err != nil {
		return nil, err
	}
	logger.Printf("archive uploads enabled endpoint=%s", endpoint)
	return r2s3.NewUploader(c, os.Getenv("STOMP_ARCHIVE_PREFIX"), 2, 256, logger), nil
}
