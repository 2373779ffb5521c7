// Package export writes transformed tables to local files or blob storage.
package export

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // GCS driver
	_ "gocloud.dev/blob/memblob"  // mem:// driver
	_ "gocloud.dev/blob/s3blob"   // S3 driver

	"github.com/lox/co2pipeline/internal/logging"
	"github.com/lox/co2pipeline/internal/metrics"
	"github.com/lox/co2pipeline/internal/models"
)

const stageWrite = "write"

// ErrEmptyTable is returned when asked to write a table with no rows.
var ErrEmptyTable = errors.New("cannot save empty table")

// Format selects the output encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// Writer persists a table. The zero value writes comma-separated UTF-8
// unless the destination ends in .parquet.
type Writer struct {
	Delimiter rune
	Encoding  string
	Format    Format
}

// FormatFor returns the format used for dest.
func (w *Writer) FormatFor(dest string) Format {
	if w.Format != "" {
		return w.Format
	}
	if strings.HasSuffix(strings.ToLower(stripQuery(dest)), ".parquet") {
		return FormatParquet
	}
	return FormatCSV
}

// Encode renders t in the writer's format for dest.
func (w *Writer) Encode(t *models.Table, dest string) ([]byte, error) {
	if t == nil || t.Len() == 0 {
		return nil, ErrEmptyTable
	}
	switch f := w.FormatFor(dest); f {
	case FormatCSV:
		return encodeCSV(t, w.Delimiter, w.Encoding)
	case FormatParquet:
		return encodeParquet(t)
	default:
		return nil, fmt.Errorf("unknown output format %q", f)
	}
}

// Write saves t to dest. dest is a local path or a blob URL (file://, s3://,
// gs://, mem://).
func (w *Writer) Write(ctx context.Context, t *models.Table, dest string) error {
	log := logging.Component("export")
	start := time.Now()
	err := w.write(ctx, t, dest)
	metrics.StageDuration.WithLabelValues(stageWrite).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StageFailuresTotal.WithLabelValues(stageWrite).Inc()
		log.Error("failed to save data", "destination", dest, "error", err)
		return err
	}
	log.Info("saved data", "destination", dest, "rows", t.Len(), "format", w.FormatFor(dest))
	return nil
}

func (w *Writer) write(ctx context.Context, t *models.Table, dest string) error {
	data, err := w.Encode(t, dest)
	if err != nil {
		return err
	}

	u, err := url.Parse(dest)
	if err != nil || len(u.Scheme) <= 1 {
		return writeLocal(dest, data)
	}

	bucketURL, key, err := splitBlobURL(u)
	if err != nil {
		return err
	}
	if u.Scheme == "file" {
		if err := os.MkdirAll(strings.TrimPrefix(bucketURL, "file://"), 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", dest, err)
		}
	}

	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	defer bucket.Close()

	return WriteBlob(ctx, bucket, key, data)
}

// WriteBlob uploads data to key in bucket.
func WriteBlob(ctx context.Context, bucket *blob.Bucket, key string, data []byte) error {
	bw, err := bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("create writer for %s: %w", key, err)
	}
	if _, err := bw.Write(data); err != nil {
		bw.Close()
		return fmt.Errorf("write data to %s: %w", key, err)
	}
	if err := bw.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key, err)
	}
	return nil
}

// writeLocal writes atomically through a temp file in the same directory.
func writeLocal(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tempPath := dest + ".tmp." + uuid.NewString()
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, dest); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename %s to %s: %w", tempPath, dest, err)
	}
	return nil
}

// splitBlobURL separates a destination URL into the bucket URL and the
// object key. For file:// the bucket is the parent directory.
func splitBlobURL(u *url.URL) (string, string, error) {
	if u.Scheme == "file" {
		dir, key := path.Split(u.Path)
		if key == "" {
			return "", "", fmt.Errorf("destination %s has no file name", u)
		}
		return "file://" + dir, key, nil
	}

	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("destination %s has no object key", u)
	}
	bucket := url.URL{Scheme: u.Scheme, Host: u.Host, RawQuery: u.RawQuery}
	return bucket.String(), key, nil
}

func stripQuery(dest string) string {
	if i := strings.IndexByte(dest, '?'); i >= 0 {
		return dest[:i]
	}
	return dest
}
