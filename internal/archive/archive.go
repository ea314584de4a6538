// Package archive stores exported backup documents outside the database,
// on local disk or in S3-compatible object storage.
package archive

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sink kinds.
const (
	KindLocal = "local"
	KindS3    = "s3"
)

var (
	// ErrNotFound is returned when a named archive does not exist.
	ErrNotFound = errors.New("archive not found")
	// ErrInvalidName is returned for names that are not safe object names.
	ErrInvalidName = errors.New("invalid archive name")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+\.json$`)

// ValidName reports whether name is an acceptable archive object name.
func ValidName(name string) bool {
	return namePattern.MatchString(name) && !strings.HasPrefix(name, ".")
}

// NewObjectName returns a unique archive name for a backup taken at t.
func NewObjectName(t time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("hearth-backup-%s-%s.json", t.UTC().Format("20060102T150405Z"), id[:8])
}

// Object describes a stored archive.
type Object struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// Sink is a place to store backup documents.
type Sink interface {
	// Kind returns KindLocal or KindS3.
	Kind() string
	Put(ctx context.Context, name string, data []byte) error
	// Get returns ErrNotFound when name does not exist.
	Get(ctx context.Context, name string) ([]byte, error)
	// List returns every archive, newest first.
	List(ctx context.Context) ([]Object, error)
	// Delete returns ErrNotFound when name does not exist.
	Delete(ctx context.Context, name string) error
}

// ErrNotConfigured is returned by OpenSink when neither a directory nor a
// bucket is given.
var ErrNotConfigured = errors.New("no archive sink configured")

// OpenSink opens the local sink when dir is set, otherwise the S3 sink when
// s3cfg names a bucket. Configuring both is an error.
func OpenSink(ctx context.Context, dir string, s3cfg S3Config) (Sink, error) {
	switch {
	case dir != "" && s3cfg.Enabled():
		return nil, errors.New("archive directory and S3 bucket are mutually exclusive")
	case dir != "":
		return NewLocalSink(dir)
	case s3cfg.Enabled():
		return NewS3Sink(ctx, s3cfg)
	default:
		return nil, ErrNotConfigured
	}
}

func checkName(name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// sortNewestFirst orders objects by modification time, newest first, breaking
// ties by name so the order is stable.
func sortNewestFirst(objects []Object) {
	sort.Slice(objects, func(i, j int) bool {
		if !objects[i].ModifiedAt.Equal(objects[j].ModifiedAt) {
			return objects[i].ModifiedAt.After(objects[j].ModifiedAt)
		}
		return objects[i].Name > objects[j].Name
	})
}
