package threshold

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/halo-guard/internal/config"
	"github.com/oshokin/halo-guard/internal/logger"
)

// SensitivityKey is the name the sensitivity is stored under.
const SensitivityKey = "sensitivity"

// reloadDelay coalesces the burst of events editors produce for one save.
const reloadDelay = 100 * time.Millisecond

// Repository defines persistence operations for the sensitivity.
type Repository interface {
	Load(ctx context.Context) (float64, error)
	Save(ctx context.Context, sensitivity float64) error
}

var (
	// ErrNotFound is returned when nothing has been persisted yet.
	ErrNotFound = errors.New("threshold not found")

	// errMissingSensitivity is returned when the file lacks a numeric sensitivity.
	errMissingSensitivity = errors.New("sensitivity is missing or not a number")
)

// FileRepository persists the sensitivity to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the JSON file.
	path string
	// mu serializes file access.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the file location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the persisted sensitivity.
func (r *FileRepository) Load(_ context.Context) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrNotFound
		}

		return 0, fmt.Errorf("read threshold file: %w", err)
	}

	var document structpb.Struct
	if err = protojson.Unmarshal(contents, &document); err != nil {
		return 0, fmt.Errorf("decode threshold file: %w", err)
	}

	value, ok := document.GetFields()[SensitivityKey]
	if !ok {
		return 0, errMissingSensitivity
	}

	number, ok := value.GetKind().(*structpb.Value_NumberValue)
	if !ok || math.IsNaN(number.NumberValue) || math.IsInf(number.NumberValue, 0) {
		return 0, errMissingSensitivity
	}

	return number.NumberValue, nil
}

// Save writes the sensitivity to disk.
func (r *FileRepository) Save(_ context.Context, sensitivity float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	document := &structpb.Struct{
		Fields: map[string]*structpb.Value{
			SensitivityKey: structpb.NewNumberValue(sensitivity),
		},
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
	}

	data, err := marshalOptions.Marshal(document)
	if err != nil {
		return fmt.Errorf("encode threshold: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write threshold file: %w", err)
	}

	return nil
}

// Watch calls onChange with the reloaded sensitivity whenever the file is
// written. The watch is registered before Watch returns and stops when ctx is
// done. Unreadable contents are logged and skipped.
func (r *FileRepository) Watch(ctx context.Context, onChange func(float64)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Watch the directory: editors often replace the file instead of writing it.
	if err = watcher.Add(filepath.Dir(r.path)); err != nil {
		_ = watcher.Close()

		return fmt.Errorf("watch %s: %w", filepath.Dir(r.path), err)
	}

	go r.watchLoop(ctx, watcher, onChange)

	return nil
}

// watchLoop debounces file events and reloads the value.
func (r *FileRepository) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, onChange func(float64)) {
	defer func() {
		_ = watcher.Close()
	}()

	reload := time.NewTimer(reloadDelay)
	reload.Stop()

	defer reload.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != r.path {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			reload.Reset(reloadDelay)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}

			logger.WarnKV(ctx, "Threshold watcher error", "error", err)
		case <-reload.C:
			sensitivity, err := r.Load(ctx)
			if err != nil {
				logger.WarnKV(ctx, "Ignoring unreadable threshold file", "path", r.path, "error", err)

				continue
			}

			onChange(sensitivity)
		}
	}
}
