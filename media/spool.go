package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/tranvh2/marquee/metrics"
)

type downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, options ...func(*manager.Downloader)) (int64, error)
}

// Spool materializes the preload window on local disk so the render
// surface never waits on the object store at a transition edge. It is
// not an offline cache: nothing survives outside the current window,
// and the directory is wiped on startup.
type Spool struct {
	downloader downloader
	bucket     string
	dir        string

	mu      sync.Mutex
	tracked mapset.Set[string]
}

func NewSpool(store *Store, dir string) (*Spool, error) {
	return newSpool(manager.NewDownloader(store.client), store.bucket, dir)
}

func newSpool(d downloader, bucket, dir string) (*Spool, error) {
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("unable to clear spool directory, %s, %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("unable to create spool directory, %s, %w", dir, err)
	}
	return &Spool{
		downloader: d,
		bucket:     bucket,
		dir:        dir,
		tracked:    mapset.NewSet[string](),
	}, nil
}

// Materialize reconciles the spool with the wanted key set: assets
// that left the window are removed, missing ones are downloaded. A
// failed download is logged and retried on the next reconciliation
// that still wants the key.
func (sp *Spool) Materialize(ctx context.Context, keys mapset.Set[string]) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	toEvict := sp.tracked.Difference(keys).ToSlice()
	toDownload := keys.Difference(sp.tracked).ToSlice()

	for _, name := range toEvict {
		if err := os.Remove(sp.path(name)); err != nil {
			slog.Warn("unable to remove spooled media", "key", name, "error", err)
		}
		sp.tracked.Remove(name)
		metrics.SpoolEvictions.Inc()
	}

	for _, name := range toDownload {
		if err := sp.download(ctx, name); err != nil {
			slog.Warn("unable to spool media", "key", name, "error", err)
			metrics.SpoolDownloads.WithLabelValues("failure").Inc()
			continue
		}
		sp.tracked.Add(name)
		metrics.SpoolDownloads.WithLabelValues("success").Inc()
	}

	if len(toEvict) > 0 || len(toDownload) > 0 {
		slog.Debug("spool reconciled",
			"evicted", len(toEvict),
			"downloaded", len(toDownload),
			"tracked", sp.tracked.Cardinality())
	}
}

func (sp *Spool) download(ctx context.Context, key string) error {
	name := sp.path(key)
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return fmt.Errorf("unable to create spool subdirectory, %s, %w", key, err)
	}

	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("unable to create file for s3 download, %s, %w", key, err)
	}
	defer f.Close()

	if _, err := sp.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(sp.bucket),
		Key:    aws.String(key),
	}); err != nil {
		// do not serve a partial download
		os.Remove(name)
		return fmt.Errorf("unable to download object from s3, %s, %w", key, err)
	}
	return nil
}

// Path reports where key is spooled, if it is.
func (sp *Spool) Path(key string) (string, bool) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if !sp.tracked.Contains(key) {
		return "", false
	}
	return sp.path(key), true
}

func (sp *Spool) path(key string) string {
	return filepath.Join(sp.dir, filepath.FromSlash(key))
}
