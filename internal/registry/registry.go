// internal/registry/registry.go

package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/emirpasic/gods/trees/redblacktree"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by Go once Shutdown has been called.
var ErrClosed = errors.New("registry is shut down")

// TaskID uniquely identifies a task within a registry.
type TaskID uint64

// Registry owns the background tasks spawned by the simulation and joins them
// at shutdown.
//
// All tasks share one context. It is cancelled by Shutdown, or as soon as any
// task returns a non-nil error.
type Registry struct {
	mu     sync.Mutex         // protects the fields below
	closed bool               // set by Shutdown, rejects new tasks
	nextID TaskID             // last allocated ID
	tasks  *redblacktree.Tree // TaskID -> *TaskInfo, ordered by ID

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	logger *zap.Logger
}

// New returns a registry whose tasks run under a context derived from ctx.
func New(ctx context.Context, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)

	return &Registry{
		tasks:  redblacktree.NewWith(cmp),
		ctx:    ctx,
		cancel: cancel,
		group:  group,
		logger: logger,
	}
}

// Go starts fn on its own goroutine and records it under the given name.
//
// fn must return when its context is done. Returning context.Canceled is
// treated as a clean exit.
func (r *Registry) Go(name string, fn func(ctx context.Context) error) (TaskID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrClosed
	}

	r.nextID++
	id := r.nextID
	r.tasks.Put(id, &TaskInfo{
		ID:      id,
		Name:    name,
		Started: time.Now(),
		State:   StateRunning,
	})

	// NOTE: group.Go is called under the lock so that it can never race with
	// the group.Wait in Shutdown.
	r.group.Go(func() error {
		err := fn(r.ctx)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		r.finish(id, err)

		if err != nil {
			return fmt.Errorf("task %d (%s): %w", id, name, err)
		}
		return nil
	})

	r.logger.Debug(
		"task started",
		zap.Uint64("task_id", uint64(id)),
		zap.String("task", name),
	)

	return id, nil
}

// Tasks returns a snapshot of every task ever started, ordered by ID.
func (r *Registry) Tasks() []TaskInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]TaskInfo, 0, r.tasks.Size())
	it := r.tasks.Iterator()
	for it.Next() {
		out = append(out, *it.Value().(*TaskInfo))
	}
	return out
}

// Shutdown cancels every task and waits for all of them to return. It
// returns the first task error, if any.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	err := r.group.Wait()

	r.logger.Debug("registry shut down", zap.Int("tasks", len(r.Tasks())), zap.Error(err))
	return err
}

func (r *Registry) finish(id TaskID, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.tasks.Get(id)
	if !ok {
		return
	}

	info := v.(*TaskInfo)
	info.Stopped = time.Now()
	info.Err = err
	info.State = StateFinished
	if err != nil {
		info.State = StateFailed
	}

	level := zap.DebugLevel
	if err != nil {
		level = zap.ErrorLevel
	}
	r.logger.Log(
		level,
		"task stopped",
		zap.Uint64("task_id", uint64(id)),
		zap.String("task", info.Name),
		zap.Duration("ran", info.Stopped.Sub(info.Started)),
		zap.Error(err),
	)
}

// cmp orders tasks in the tree by ID.
func cmp(a, b any) int {
	ia, ib := a.(TaskID), b.(TaskID)
	switch {
	case ia < ib:
		return -1
	case ia > ib:
		return 1
	default:
		return 0
	}
}
