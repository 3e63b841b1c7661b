package r2s3

import (
	"context"
	"log"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	EnqueuedTotal uint64 `json:"enqueued_total"`
	DroppedTotal  uint64 `json:"dropped_total"`
	UploadedTotal uint64 `json:"uploaded_total"`
	FailedTotal   uint64 `json:"failed_total"`
}

type putter interface {
	PutFile(ctx context.Context, key, localPath string) error
}

type job struct {
	match string
	path  string
}

// Uploader mirrors archived match files in the background. Object keys are
// `<prefix>/matches/<match>/<file>`.
type Uploader struct {
	client putter
	prefix string
	log    *log.Logger

	jobs chan job
	wg   sync.WaitGroup

	enqueued atomic.Uint64
	dropped  atomic.Uint64
	uploaded atomic.Uint64
	failed   atomic.Uint64

	backoff time.Duration
}

func NewUploader(client *Client, prefix string, workers, queue int, logger *log.Logger) *Uploader {
	return newUploader(client, prefix, workers, queue, logger)
}

func newUploader(client putter, prefix string, workers, queue int, logger *log.Logger) *Uploader {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = 256
	}
	u := &Uploader{
		client:  client,
		prefix:  strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/"),
		log:     logger,
		jobs:    make(chan job, queue),
		backoff: 200 * time.Millisecond,
	}
	for i := 0; i < workers; i++ {
		u.wg.Add(1)
		go func() {
			defer u.wg.Done()
			for j := range u.jobs {
				u.upload(j)
			}
		}()
	}
	return u
}

// EnqueueMatch queues files for upload without blocking; a full queue drops.
func (u *Uploader) EnqueueMatch(match string, paths ...string) {
	if u == nil {
		return
	}
	for _, p := range paths {
		u.enqueued.Add(1)
		select {
		case u.jobs <- job{match: match, path: p}:
		default:
			n := u.dropped.Add(1)
			u.printf("archive upload drop match=%s local=%s dropped_total=%d", match, p, n)
		}
	}
}

// Close waits for queued uploads to finish.
func (u *Uploader) Close() {
	if u == nil {
		return
	}
	close(u.jobs)
	u.wg.Wait()
}

func (u *Uploader) Stats() Stats {
	if u == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(u.jobs),
		EnqueuedTotal: u.enqueued.Load(),
		DroppedTotal:  u.dropped.Load(),
		UploadedTotal: u.uploaded.Load(),
		FailedTotal:   u.failed.Load(),
	}
}

func (u *Uploader) key(j job) string {
	k := path.Join("matches", j.match, filepath.Base(j.path))
	if u.prefix != "" {
		k = path.Join(u.prefix, k)
	}
	return k
}

func (u *Uploader) upload(j job) {
	const maxAttempts = 4
	key := u.key(j)
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err = u.client.PutFile(ctx, key, j.path)
		cancel()
		if err == nil {
			u.uploaded.Add(1)
			u.printf("archive uploaded key=%s", key)
			return
		}
		if attempt < maxAttempts {
			time.Sleep(time.Duration(attempt*attempt) * u.backoff)
		}
	}
	u.failed.Add(1)
	u.printf("archive upload failed key=%s local=%s err=%v", key, j.path, err)
}

func (u *Uploader) printf(format string, args ...any) {
	if u.log != nil {
		u.log.Printf(format, args...)
	}
}
