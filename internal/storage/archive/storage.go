// Package archive keeps copies of uploaded datasets in cold storage.
package archive

import (
	"context"
	"fmt"

	"github.com/newthinker/stratdesk/internal/core"
)

// Storage is a flat key/blob store. Keys use forward slashes.
type Storage interface {
	Write(ctx context.Context, key string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	// List returns the keys under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Backend types accepted by Open.
const (
	TypeLocalFS = "localfs"
	TypeS3      = "s3"
)

// Options selects and configures a backend.
type Options struct {
	Type string
	Path string
	S3   S3Config
}

// Open builds the backend named by opts.Type. An empty type means localfs.
func Open(opts Options) (Storage, error) {
	switch opts.Type {
	case "", TypeLocalFS:
		if opts.Path == "" {
			return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("archive path required for localfs"))
		}
		return NewLocalFS(opts.Path)
	case TypeS3:
		if opts.S3.Bucket == "" {
			return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("archive s3 bucket required"))
		}
		return NewS3(opts.S3)
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown archive type %q", opts.Type))
	}
}
