package models

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/pep299/news-analyzer/internal/apperror"
	"github.com/pep299/news-analyzer/internal/logging"
)

// Task is the inference task a model is loaded for
type Task string

const (
	TaskSummarization  Task = "summarization"
	TaskClassification Task = "text-classification"
	TaskEmbedding      Task = "feature-extraction"
)

// Device is where inference is requested to run
type Device string

const (
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

// ParseDevice maps a MODEL_DEVICE value to a Device, defaulting to cpu
func ParseDevice(s string) Device {
	if Device(s) == DeviceCUDA {
		return DeviceCUDA
	}
	return DeviceCPU
}

// Spec describes a model and the options it is loaded with
type Spec struct {
	ID             string
	Task           Task
	Device         Device
	MaxInputLength int // characters accepted per inference call, 0 for unlimited
}

// Validate checks that s names a model and a known task
func (s Spec) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("model id is required")
	}
	switch s.Task {
	case TaskSummarization, TaskClassification, TaskEmbedding:
	default:
		return fmt.Errorf("unknown task %q", s.Task)
	}
	switch s.Device {
	case "", DeviceCPU, DeviceCUDA:
	default:
		return fmt.Errorf("unknown device %q", s.Device)
	}
	return nil
}

// Handle is a loaded model. It is owned by the Loader and shared read-only.
type Handle struct {
	spec        Spec
	revision    string
	pipelineTag string
	loadedAt    time.Time
}

// NewHandle creates a handle for a model resolved by a Backend
func NewHandle(spec Spec, revision, pipelineTag string, loadedAt time.Time) *Handle {
	return &Handle{
		spec:        spec,
		revision:    revision,
		pipelineTag: pipelineTag,
		loadedAt:    loadedAt,
	}
}

func (h *Handle) ID() string          { return h.spec.ID }
func (h *Handle) Task() Task          { return h.spec.Task }
func (h *Handle) Revision() string    { return h.revision }
func (h *Handle) PipelineTag() string { return h.pipelineTag }
func (h *Handle) LoadedAt() time.Time { return h.loadedAt }

// Backend performs the expensive part of loading a model
type Backend interface {
	Load(ctx context.Context, spec Spec) (*Handle, error)
}

// Info describes a configured model for status endpoints
type Info struct {
	ID          string    `json:"id"`
	Task        Task      `json:"task"`
	Device      Device    `json:"device"`
	Loaded      bool      `json:"loaded"`
	Revision    string    `json:"revision,omitempty"`
	PipelineTag string    `json:"pipeline_tag,omitempty"`
	LoadedAt    time.Time `json:"loaded_at,omitempty"`
}

// Loader lazily loads models and keeps them for the life of the process.
// Concurrent first requests for the same model share a single load.
type Loader struct {
	backend Backend
	specs   []Spec
	logger  *slog.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	handles map[string]*Handle
}

// NewLoader creates a loader. specs are the models reported by Info and
// loaded by Warm; Get accepts any spec.
func NewLoader(backend Backend, logger *slog.Logger, specs ...Spec) *Loader {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Loader{
		backend: backend,
		specs:   specs,
		logger:  logger,
		handles: make(map[string]*Handle),
	}
}

// Get returns the handle for spec, loading it on first use. Failed loads are
// not remembered, so the next call retries.
func (l *Loader) Get(ctx context.Context, spec Spec) (*Handle, error) {
	if h := l.lookup(spec.ID); h != nil {
		return h, nil
	}
	if err := spec.Validate(); err != nil {
		return nil, apperror.Model(spec.ID, "load", err)
	}

	// The shared load must not die with the first caller's context
	loadCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(spec.ID, func() (interface{}, error) {
		if h := l.lookup(spec.ID); h != nil {
			return h, nil
		}

		start := time.Now()
		h, err := l.backend.Load(loadCtx, spec)
		if err != nil {
			l.logger.Error("model load failed", "model", spec.ID, "task", spec.Task, "error", err)
			return nil, apperror.Model(spec.ID, "load", err)
		}

		l.mu.Lock()
		l.handles[spec.ID] = h
		l.mu.Unlock()

		l.logger.Info("model loaded",
			"model", spec.ID,
			"task", spec.Task,
			"revision", h.Revision(),
			"duration", time.Since(start))
		return h, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Handle), nil
	case <-ctx.Done():
		return nil, apperror.Model(spec.ID, "load", ctx.Err())
	}
}

func (l *Loader) lookup(id string) *Handle {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.handles[id]
}

// Loaded returns the loaded handles ordered by model id
func (l *Loader) Loaded() []*Handle {
	l.mu.RLock()
	handles := make([]*Handle, 0, len(l.handles))
	for _, h := range l.handles {
		handles = append(handles, h)
	}
	l.mu.RUnlock()

	sort.Slice(handles, func(i, j int) bool {
		return handles[i].ID() < handles[j].ID()
	})
	return handles
}

// Info reports the configured models and whether each one is loaded
func (l *Loader) Info() []Info {
	infos := make([]Info, 0, len(l.specs))
	for _, spec := range l.specs {
		info := Info{
			ID:     spec.ID,
			Task:   spec.Task,
			Device: ParseDevice(string(spec.Device)),
		}
		if h := l.lookup(spec.ID); h != nil {
			info.Loaded = true
			info.Revision = h.Revision()
			info.PipelineTag = h.PipelineTag()
			info.LoadedAt = h.LoadedAt()
		}
		infos = append(infos, info)
	}
	return infos
}

// Warm loads every configured model concurrently
func (l *Loader) Warm(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, spec := range l.specs {
		spec := spec
		g.Go(func() error {
			_, err := l.Get(ctx, spec)
			return err
		})
	}
	return g.Wait()
}
