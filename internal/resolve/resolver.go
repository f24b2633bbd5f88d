package resolve

import (
	"path/filepath"
	"sync"

	"github.com/softstation/icon-ctld/internal/icons"
	"github.com/softstation/icon-ctld/internal/index"
	"github.com/softstation/icon-ctld/internal/pkgdb"
)

// asyncWorkers bounds concurrently running asynchronous resolutions.
const asyncWorkers = 3

// Callback receives an asynchronous resolution result. It is always
// invoked on the privileged loop.
type Callback func(label string, icon *icons.CachedIcon)

// Resolver determines a display label and themed icon for a package name
// by falling through the curated table, the package-to-desktop map, the
// desktop-entry index, and finally the bare package name. The index and
// mapper are optional; a missing or failing collaborator contributes
// nothing and never aborts the chain.
type Resolver struct {
	curated CuratedTable
	index   *index.Index
	mapper  *pkgdb.Mapper
	cache   *icons.Cache

	sem chan struct{}

	mu       sync.Mutex
	inflight map[inflightKey][]Callback
}

type inflightKey struct {
	pkg  string
	size int
}

// New creates a resolver. index and mapper may be nil.
func New(curated CuratedTable, ix *index.Index, mapper *pkgdb.Mapper, cache *icons.Cache) *Resolver {
	return &Resolver{
		curated:  curated,
		index:    ix,
		mapper:   mapper,
		cache:    cache,
		sem:      make(chan struct{}, asyncWorkers),
		inflight: make(map[inflightKey][]Callback),
	}
}

// determine decides (label, icon name) without touching the icon cache.
// Pure lookups, callable from any goroutine.
func (r *Resolver) determine(pkg string) (label, iconName string) {
	// 1) Curated table wins outright for whatever it provides.
	if entry, ok := r.curated[pkg]; ok {
		label = entry.Name
		iconName = entry.Icon
	}

	// 2) Package -> descriptor file -> index record.
	if (label == "" || iconName == "") && r.mapper != nil && r.index != nil {
		if path, ok := r.mapper.DesktopForPkg(pkg); ok {
			if rec, ok := r.index.BestGuess(filepath.Base(path)); ok {
				if label == "" {
					label = rec.Name
				}
				if iconName == "" {
					iconName = rec.Icon
				}
			}
		}
	}

	// 3) The bare package name as an index token.
	if (label == "" || iconName == "") && r.index != nil {
		if rec, ok := r.index.BestGuess(pkg); ok {
			if label == "" {
				label = rec.Name
			}
			if iconName == "" {
				iconName = rec.Icon
			}
		}
	}

	// 4) The package name labels itself.
	if label == "" {
		label = pkg
	}
	return label, iconName
}

// ResolveSync resolves label and icon. The caller must already be on the
// privileged loop; the icon materialization asserts it.
func (r *Resolver) ResolveSync(pkg string, size int) (string, *icons.CachedIcon) {
	label, iconName := r.determine(pkg)
	return label, r.cache.Resolve(iconName, size)
}

// ResolveAsync resolves off-thread and delivers the result to cb on the
// privileged loop. Concurrent requests for the same (package, size) are
// coalesced onto one worker.
func (r *Resolver) ResolveAsync(pkg string, size int, cb Callback) {
	key := inflightKey{pkg: pkg, size: size}

	r.mu.Lock()
	if waiters, ok := r.inflight[key]; ok {
		r.inflight[key] = append(waiters, cb)
		r.mu.Unlock()
		return
	}
	r.inflight[key] = []Callback{cb}
	r.mu.Unlock()

	go func() {
		r.sem <- struct{}{}
		label, iconName := r.determine(pkg)
		<-r.sem

		r.cache.Loop().Post(func() {
			icon := r.cache.Resolve(iconName, size)

			r.mu.Lock()
			waiters := r.inflight[key]
			delete(r.inflight, key)
			r.mu.Unlock()

			for _, waiter := range waiters {
				waiter(label, icon)
			}
		})
	}()
}

// Label resolves only the display label. Callable from any goroutine.
func (r *Resolver) Label(pkg string) string {
	label, _ := r.determine(pkg)
	return label
}
