// Package storage opens telemetry inputs and report outputs by URI.
// Supported: local paths, file:// URLs, "-" for stdin/stdout and s3://.
package storage

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	perrors "github.com/logflow/perfkit/pkg/errors"
	"github.com/logflow/perfkit/pkg/storage/s3"
)

// Scheme identifies where a location lives.
type Scheme string

const (
	SchemeFile  Scheme = "file"
	SchemeStdio Scheme = "stdio"
	SchemeS3    Scheme = "s3"
)

// Location is a parsed input or output URI.
type Location struct {
	Scheme Scheme
	Path   string // local path
	Bucket string // s3 only
	Key    string // s3 only
}

// String renders the location back to URI form.
func (l Location) String() string {
	switch l.Scheme {
	case SchemeStdio:
		return "-"
	case SchemeS3:
		return "s3://" + l.Bucket + "/" + l.Key
	default:
		return l.Path
	}
}

// Parse classifies uri.
func Parse(uri string) (Location, error) {
	if uri == "" {
		return Location{}, perrors.InvalidArgument("input", uri, "must not be empty")
	}
	if uri == "-" {
		return Location{Scheme: SchemeStdio}, nil
	}

	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Local file (or Windows drive letter)
		return Location{Scheme: SchemeFile, Path: uri}, nil
	}

	switch u.Scheme {
	case "file":
		return Location{Scheme: SchemeFile, Path: u.Path}, nil
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, perrors.InvalidArgument("input", uri, "s3 URIs need a bucket and a key")
		}
		return Location{Scheme: SchemeS3, Bucket: u.Host, Key: key}, nil
	default:
		return Location{}, perrors.InvalidArgument("input", uri, "unsupported scheme "+u.Scheme)
	}
}

// Opener resolves locations to readers and writers.
type Opener struct {
	S3 s3.Config

	Stdin  io.Reader
	Stdout io.Writer

	// s3Client is created on first s3:// access. mu guards it, since
	// pipelines may open inputs concurrently.
	mu       sync.Mutex
	s3Client *s3.Client
}

// NewOpener creates an opener bound to the process stdio.
func NewOpener(cfg s3.Config) *Opener {
	return &Opener{S3: cfg, Stdin: os.Stdin, Stdout: os.Stdout}
}

// WithS3Client installs a preconfigured client.
func (o *Opener) WithS3Client(c *s3.Client) *Opener {
	o.mu.Lock()
	o.s3Client = c
	o.mu.Unlock()
	return o
}

// client returns the S3 client, creating it on first use.
func (o *Opener) client(ctx context.Context) (*s3.Client, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.s3Client == nil {
		c, err := s3.NewClient(ctx, o.S3)
		if err != nil {
			return nil, err
		}
		o.s3Client = c
	}
	return o.s3Client, nil
}

// Open returns a reader for uri and its size in bytes, or -1 when the
// size is not known up front. The caller closes the reader.
func (o *Opener) Open(ctx context.Context, uri string) (io.ReadCloser, int64, error) {
	loc, err := Parse(uri)
	if err != nil {
		return nil, 0, err
	}

	switch loc.Scheme {
	case SchemeStdio:
		return io.NopCloser(o.Stdin), -1, nil
	case SchemeS3:
		c, err := o.client(ctx)
		if err != nil {
			return nil, 0, perrors.SourceUnavailable(uri, err)
		}
		return c.Reader(ctx, loc.Bucket, loc.Key)
	default:
		f, err := os.Open(loc.Path)
		if err != nil {
			return nil, 0, perrors.SourceUnavailable(uri, err)
		}
		size := int64(-1)
		if fi, err := f.Stat(); err == nil && fi.Mode().IsRegular() {
			size = fi.Size()
		}
		return f, size, nil
	}
}

// Create returns a writer for a local path or "-". Parent directories
// are created as needed.
func (o *Opener) Create(uri string) (io.WriteCloser, error) {
	loc, err := Parse(uri)
	if err != nil {
		return nil, err
	}

	switch loc.Scheme {
	case SchemeStdio:
		return nopWriteCloser{o.Stdout}, nil
	case SchemeFile:
		if err := os.MkdirAll(filepath.Dir(loc.Path), 0755); err != nil {
			return nil, perrors.Wrap(err, perrors.CodeWriteFailed, "create output directory")
		}
		f, err := os.Create(loc.Path)
		if err != nil {
			return nil, perrors.Wrap(err, perrors.CodeWriteFailed, "create output").WithContext("path", loc.Path)
		}
		return f, nil
	default:
		return nil, perrors.InvalidArgument("output", uri, "only local paths and - are writable")
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
