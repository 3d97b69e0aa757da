package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// LifecycleHook observes committed (or about-to-commit) quote lifecycle
// events. UI push channels and notification projectors subscribe here
// instead of polling or relying on implicit side effects.
type LifecycleHook interface {
	Name() string
	OnEvent(ctx context.Context, event LifecycleEvent) error
}

type LifecycleHookFunc struct {
	HookName string
	Fn       func(ctx context.Context, event LifecycleEvent) error
}

func (h LifecycleHookFunc) Name() string { return h.HookName }

func (h LifecycleHookFunc) OnEvent(ctx context.Context, event LifecycleEvent) error {
	if h.Fn == nil {
		return nil
	}
	return h.Fn(ctx, event)
}

type LifecycleHookCoordinator struct {
	mu         sync.RWMutex
	preCommit  []LifecycleHook
	postCommit []LifecycleHook
}

func NewLifecycleHookCoordinator() *LifecycleHookCoordinator {
	return &LifecycleHookCoordinator{
		preCommit:  make([]LifecycleHook, 0),
		postCommit: make([]LifecycleHook, 0),
	}
}

func (c *LifecycleHookCoordinator) RegisterPreCommit(hook LifecycleHook) {
	if c == nil || hook == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.preCommit = append(c.preCommit, hook)
}

func (c *LifecycleHookCoordinator) RegisterPostCommit(hook LifecycleHook) {
	if c == nil || hook == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.postCommit = append(c.postCommit, hook)
}

// ExecutePreCommit runs strict hooks synchronously in registration order.
// The first hook error is returned so the caller can fail the transition
// before anything is written.
func (c *LifecycleHookCoordinator) ExecutePreCommit(ctx context.Context, event LifecycleEvent) error {
	for _, hook := range c.preHooks() {
		if hook == nil {
			continue
		}
		if err := hook.OnEvent(ctx, event); err != nil {
			return fmt.Errorf("core: pre-commit lifecycle hook %q failed: %w", hookName(hook), err)
		}
	}
	return nil
}

// ExecutePostCommit runs non-transactional hooks after the write landed.
// Failures are aggregated for observability without implying rollback.
func (c *LifecycleHookCoordinator) ExecutePostCommit(ctx context.Context, event LifecycleEvent) error {
	var hookErr error
	for _, hook := range c.postHooks() {
		if hook == nil {
			continue
		}
		if err := hook.OnEvent(ctx, event); err != nil {
			hookErr = errors.Join(hookErr, fmt.Errorf("post-commit lifecycle hook %q failed: %w", hookName(hook), err))
		}
	}
	return hookErr
}

func (c *LifecycleHookCoordinator) preHooks() []LifecycleHook {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]LifecycleHook, len(c.preCommit))
	copy(out, c.preCommit)
	return out
}

func (c *LifecycleHookCoordinator) postHooks() []LifecycleHook {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]LifecycleHook, len(c.postCommit))
	copy(out, c.postCommit)
	return out
}

func hookName(hook LifecycleHook) string {
	if hook == nil {
		return "unknown"
	}
	name := strings.TrimSpace(hook.Name())
	if name == "" {
		return "unnamed"
	}
	return name
}
