package cache

import (
	"path/filepath"
	"strings"

	"github.com/rjeczalik/notify"

	"github.com/wudi/ember/internal/diag"
)

// Watcher is the optional hot-reload collaborator: a filesystem
// watcher, built on rjeczalik/notify, that calls Invalidate(path) for
// script-suffix files under a directory as they change on disk.
type Watcher struct {
	cache  *Cache
	events chan notify.EventInfo
	done   chan struct{}
	exited chan struct{}
}

// EnableHotReload starts watching dir (recursively) for writes,
// removes, and renames of files ending in suffix, invalidating their
// cache entry as they change. Call Stop to rejoin the watcher thread
//.
func (c *Cache) EnableHotReload(dir, suffix string) (*Watcher, error) {
	events := make(chan notify.EventInfo, 64)
	if err := notify.Watch(filepath.Join(dir, "..."), events, notify.Write, notify.Remove, notify.Rename); err != nil {
		return nil, err
	}
	w := &Watcher{cache: c, events: events, done: make(chan struct{}), exited: make(chan struct{})}
	go w.run(suffix)
	diag.Logf(diag.Cache, "hot reload enabled for %s (*%s)", dir, suffix)
	return w, nil
}

func (w *Watcher) run(suffix string) {
	defer close(w.exited)
	for {
		select {
		case ev := <-w.events:
			if strings.HasSuffix(ev.Path(), suffix) {
				w.cache.Invalidate(ev.Path())
				diag.Logf(diag.Cache, "hot reload invalidated %s (%s)", ev.Path(), ev.Event())
			}
		case <-w.done:
			notify.Stop(w.events)
			return
		}
	}
}

// Stop disables the watcher and rejoins its goroutine.
func (w *Watcher) Stop() {
	close(w.done)
	<-w.exited
}
