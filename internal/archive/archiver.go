package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MacJediWizard/hearth/internal/export"
	"github.com/rs/zerolog"
)

// Exporter renders the current table set as a backup document.
type Exporter interface {
	ExportJSON(ctx context.Context) ([]byte, error)
}

// Importer restores a backup document.
type Importer interface {
	Import(ctx context.Context, body []byte) (*export.ImportResult, error)
}

// Recorder receives the outcome of archive creation.
type Recorder interface {
	RecordArchive(result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordArchive(string) {}

// RetentionPolicy decides which archives Prune removes. Zero values disable
// the corresponding rule.
type RetentionPolicy struct {
	MaxAge   time.Duration
	MaxCount int
}

// Archiver exports backups into a Sink and restores them from it.
type Archiver struct {
	sink     Sink
	exporter Exporter
	importer Importer
	recorder Recorder
	now      func() time.Time
	logger   zerolog.Logger
}

// NewArchiver creates a new Archiver.
func NewArchiver(sink Sink, exporter Exporter, importer Importer, logger zerolog.Logger) *Archiver {
	return &Archiver{
		sink:     sink,
		exporter: exporter,
		importer: importer,
		recorder: nopRecorder{},
		now:      time.Now,
		logger:   logger.With().Str("component", "backup_archiver").Str("sink", sink.Kind()).Logger(),
	}
}

// SetRecorder sets the recorder notified of every archive created.
func (a *Archiver) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	a.recorder = r
}

// Kind returns the kind of the underlying sink.
func (a *Archiver) Kind() string {
	return a.sink.Kind()
}

// List returns the stored archives, newest first.
func (a *Archiver) List(ctx context.Context) ([]Object, error) {
	return a.sink.List(ctx)
}

// Get returns the document stored under name.
func (a *Archiver) Get(ctx context.Context, name string) ([]byte, error) {
	return a.sink.Get(ctx, name)
}

// Delete removes the archive called name.
func (a *Archiver) Delete(ctx context.Context, name string) error {
	if err := a.sink.Delete(ctx, name); err != nil {
		return err
	}
	a.logger.Info().Str("name", name).Msg("backup archive deleted")
	return nil
}

// Create exports the table set and stores it under a new name.
func (a *Archiver) Create(ctx context.Context) (*Object, error) {
	data, err := a.exporter.ExportJSON(ctx)
	if err != nil {
		a.recorder.RecordArchive(export.ResultFailed)
		return nil, fmt.Errorf("export backup: %w", err)
	}

	now := a.now()
	obj := &Object{Name: NewObjectName(now), Size: int64(len(data)), ModifiedAt: now}
	if err := a.sink.Put(ctx, obj.Name, data); err != nil {
		a.recorder.RecordArchive(export.ResultFailed)
		return nil, fmt.Errorf("store archive: %w", err)
	}

	a.recorder.RecordArchive(export.ResultSuccess)
	a.logger.Info().Str("name", obj.Name).Int64("size", obj.Size).Msg("backup archived")
	return obj, nil
}

// Restore imports the archive called name.
func (a *Archiver) Restore(ctx context.Context, name string) (*export.ImportResult, error) {
	data, err := a.sink.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	result, err := a.importer.Import(ctx, data)
	if err != nil {
		return nil, err
	}

	a.logger.Info().Str("name", name).Int64("rows", result.Counts.Total()).Msg("backup restored from archive")
	return result, nil
}

// Prune deletes archives that fall outside policy and returns their names.
// It keeps going after a failed delete and reports all failures together.
func (a *Archiver) Prune(ctx context.Context, policy RetentionPolicy) ([]string, error) {
	if policy.MaxAge <= 0 && policy.MaxCount <= 0 {
		return nil, nil
	}

	objects, err := a.sink.List(ctx)
	if err != nil {
		return nil, err
	}

	now := a.now()
	var deleted []string
	var errs []error
	for i, obj := range objects {
		expired := policy.MaxAge > 0 && now.Sub(obj.ModifiedAt) > policy.MaxAge
		overflow := policy.MaxCount > 0 && i >= policy.MaxCount
		if !expired && !overflow {
			continue
		}
		if err := a.sink.Delete(ctx, obj.Name); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
			continue
		}
		deleted = append(deleted, obj.Name)
	}

	if len(deleted) > 0 {
		a.logger.Info().Int("deleted", len(deleted)).Int("kept", len(objects)-len(deleted)).Msg("pruned backup archives")
	}
	return deleted, errors.Join(errs...)
}
