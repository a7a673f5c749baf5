package archive

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/newthinker/stratdesk/internal/core"
	"go.uber.org/zap"
)

const datasetRoot = "datasets"

// DatasetKey returns the archive key for a dataset uploaded at t:
// datasets/<yyyy>/<mm>/<dd>/<filename>. Directories in filename are dropped.
func DatasetKey(filename string, t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s", datasetRoot, t.Year(), t.Month(), t.Day(), path.Base(filename))
}

// Datasets files uploaded datasets by upload date.
type Datasets struct {
	storage Storage
	logger  *zap.Logger
	now     func() time.Time
}

// NewDatasets wraps a storage backend.
func NewDatasets(storage Storage, logger *zap.Logger) *Datasets {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Datasets{storage: storage, logger: logger, now: time.Now}
}

// Put archives data under today's key and returns that key. A dataset with
// the same name archived the same day is overwritten.
func (d *Datasets) Put(ctx context.Context, filename string, data []byte) (string, error) {
	key := DatasetKey(filename, d.now())
	replaced, err := d.storage.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if err := d.storage.Write(ctx, key, data); err != nil {
		return "", err
	}
	d.logger.Info("dataset archived",
		zap.String("key", key),
		zap.Int("bytes", len(data)),
		zap.Bool("replaced", replaced))
	return key, nil
}

// Get reads an archived dataset by key.
func (d *Datasets) Get(ctx context.Context, key string) ([]byte, error) {
	return d.storage.Read(ctx, key)
}

// Delete removes an archived dataset. Unlike Storage.Delete, a missing key
// is reported as ErrNotFound.
func (d *Datasets) Delete(ctx context.Context, key string) error {
	ok, err := d.storage.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return core.WrapError(core.ErrNotFound, fmt.Errorf("archive key %q", key))
	}
	if err := d.storage.Delete(ctx, key); err != nil {
		return err
	}
	d.logger.Info("archived dataset deleted", zap.String("key", key))
	return nil
}

// List returns archived dataset keys for one day, or all of them when day is zero.
func (d *Datasets) List(ctx context.Context, day time.Time) ([]string, error) {
	prefix := datasetRoot + "/"
	if !day.IsZero() {
		day = day.UTC()
		prefix = fmt.Sprintf("%s/%04d/%02d/%02d/", datasetRoot, day.Year(), day.Month(), day.Day())
	}
	return d.storage.List(ctx, prefix)
}
