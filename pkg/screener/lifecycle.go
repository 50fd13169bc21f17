package screener

import (
	"context"
	"sync"
)

const (
	lifecycleDOMContentLoaded = "DOMContentLoaded"
	lifecycleNetworkIdle      = "networkIdle"
)

// lifecycle records page lifecycle events per loader so a waiter can observe
// events that fired before it started waiting. Events of other loaders, such
// as the initial about:blank document, never satisfy a wait.
type lifecycle struct {
	mu     sync.Mutex
	seen   map[string]map[string]bool
	notify chan struct{}
}

func newLifecycle() *lifecycle {
	return &lifecycle{
		seen:   make(map[string]map[string]bool),
		notify: make(chan struct{}, 1),
	}
}

func (l *lifecycle) record(loaderID, name string) {
	l.mu.Lock()
	names := l.seen[loaderID]
	if names == nil {
		names = make(map[string]bool)
		l.seen[loaderID] = names
	}
	names[name] = true
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *lifecycle) has(loaderID, name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seen[loaderID][name]
}

// wait blocks until name has fired for loaderID or ctx is done.
func (l *lifecycle) wait(ctx context.Context, loaderID, name string) error {
	for !l.has(loaderID, name) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.notify:
		}
	}
	return nil
}
