package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"poolPriceFetcher/internal/model"
)

// MetadataFile is the run description written next to the records.
const MetadataFile = "metadata.json"

// ErrOutputExists reports a run directory that is already present.
var ErrOutputExists = errors.New("output directory already exists")

// OutputDir is a run directory checked before fetching and written after.
type OutputDir struct {
	Path string
}

// PrepareOutputDir checks that <writeDir>/<label> does not exist yet.
// Nothing is created on disk.
func PrepareOutputDir(writeDir, label string) (OutputDir, error) {
	if label == "" {
		return OutputDir{}, fmt.Errorf("%w: output label is empty", model.ErrConfiguration)
	}
	if filepath.Base(label) != label {
		return OutputDir{}, fmt.Errorf("%w: output label %q must not contain path separators", model.ErrConfiguration, label)
	}
	path := filepath.Join(writeDir, label)
	if _, err := os.Stat(path); err == nil {
		return OutputDir{}, fmt.Errorf("%w: %s", ErrOutputExists, path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return OutputDir{}, fmt.Errorf("stat output dir: %w", err)
	}
	return OutputDir{Path: path}, nil
}

// StagedRun is a fully written run waiting in a hidden sibling directory of
// its final path.
type StagedRun struct {
	tmp  string
	dest string
	done bool
}

// Stage writes all records with format and then metadata.json into a
// temporary directory next to the run directory. On error nothing is left
// on disk.
func (o OutputDir) Stage(format Format, records []model.PriceRecord, meta model.RunMetadata) (*StagedRun, error) {
	return o.stage(func(dir string) (Storage, error) {
		return Open(format, dir, meta.Precision)
	}, records, meta)
}

func (o OutputDir) stage(open func(dir string) (Storage, error), records []model.PriceRecord, meta model.RunMetadata) (*StagedRun, error) {
	parent := filepath.Dir(o.Path)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("create write dir: %w", err)
	}
	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(o.Path)+".tmp-")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	run := &StagedRun{tmp: tmp, dest: o.Path}
	if err := writeRun(tmp, open, records, meta); err != nil {
		run.Discard()
		return nil, err
	}
	return run, nil
}

func writeRun(dir string, open func(dir string) (Storage, error), records []model.PriceRecord, meta model.RunMetadata) error {
	if err := os.Chmod(dir, 0o755); err != nil {
		return fmt.Errorf("chmod staging dir: %w", err)
	}
	sink, err := open(dir)
	if err != nil {
		return err
	}
	if err := sink.PutPriceBatch(records); err != nil {
		sink.Close()
		return err
	}
	if err := sink.Close(); err != nil {
		return err
	}
	return writeMetadata(dir, meta)
}

// Commit moves the staged run to its final path. It fails if that path
// appeared since PrepareOutputDir.
func (r *StagedRun) Commit() error {
	if r.done {
		return fmt.Errorf("staged run %s already finished", r.dest)
	}
	if _, err := os.Lstat(r.dest); err == nil {
		return fmt.Errorf("%w: %s", ErrOutputExists, r.dest)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat output dir: %w", err)
	}
	if err := os.Rename(r.tmp, r.dest); err != nil {
		return fmt.Errorf("move run into place: %w", err)
	}
	r.done = true
	return nil
}

// Discard removes the staged files. It is a no-op after Commit.
func (r *StagedRun) Discard() error {
	if r.done {
		return nil
	}
	r.done = true
	return os.RemoveAll(r.tmp)
}

// WriteRun stages the run and commits it.
func (o OutputDir) WriteRun(format Format, records []model.PriceRecord, meta model.RunMetadata) error {
	run, err := o.Stage(format, records, meta)
	if err != nil {
		return err
	}
	defer run.Discard()
	return run.Commit()
}

func writeMetadata(dir string, meta model.RunMetadata) error {
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	b = append(b, '\n')
	if err := os.WriteFile(filepath.Join(dir, MetadataFile), b, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}
