package teng

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/juju/loggo"
)

var cacheLogger = loggo.GetLogger("teng.cache")

// programCache memoizes compiled Programs by their resolved template
// name so a busy render path doesn't re-lex/re-parse the same template
// on every request. When watch is enabled, a fsnotify watcher
// invalidates an entry as soon as its backing file changes on disk,
// matching how a long-running template server wants hot-reload without
// a cache that silently serves a stale compile.
type programCache struct {
	mu      sync.RWMutex
	entries map[string]*Program

	watcher *fsnotify.Watcher
	watched map[string]bool
}

func newProgramCache() *programCache {
	return &programCache{entries: make(map[string]*Program), watched: make(map[string]bool)}
}

func (c *programCache) get(name string) (*Program, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.entries[name]
	return p, ok
}

func (c *programCache) put(name string, p *Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = p
}

func (c *programCache) invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
}

// enableWatch starts a fsnotify watcher that invalidates cache entries
// for files that change on disk. It's a no-op to call more than once.
func (c *programCache) enableWatch() error {
	if c.watcher != nil {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	c.watcher = w
	go c.watchLoop()
	return nil
}

func (c *programCache) watchLoop() {
	for {
		select {
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				cacheLogger.Infof("invalidating cached template %q (%s)", ev.Name, ev.Op)
				c.invalidate(ev.Name)
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			cacheLogger.Warningf("template watcher error: %v", err)
		}
	}
}

// watchFile adds name to the watch set so future writes invalidate it.
// Safe to call repeatedly for the same name.
func (c *programCache) watchFile(name string) {
	if c.watcher == nil {
		return
	}
	c.mu.Lock()
	already := c.watched[name]
	c.watched[name] = true
	c.mu.Unlock()
	if already {
		return
	}
	if err := c.watcher.Add(name); err != nil {
		cacheLogger.Warningf("could not watch %q: %v", name, err)
	}
}

func (c *programCache) close() error {
	if c.watcher == nil {
		return nil
	}
	return c.watcher.Close()
}
