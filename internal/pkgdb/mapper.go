package pkgdb

import (
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/softstation/icon-ctld/internal/desktop"
	"github.com/softstation/icon-ctld/internal/pkgcache"
)

// Mapper builds and serves the package-to-desktop-entry map: for each
// installed package, the first descriptor file it installed, if any. The
// build runs once in the background over a fixed-size worker pool; lookups
// are safe at any time and miss while the build is still running.
type Mapper struct {
	query   Query
	workers int
	cache   *pkgcache.Cache // optional warm cache, may be nil

	mu sync.RWMutex
	m  map[string]string

	ready     chan struct{}
	readyOnce sync.Once
}

// NewMapper creates a mapper. workers bounds the concurrent package-file
// queries; cache may be nil.
func NewMapper(query Query, workers int, cache *pkgcache.Cache) *Mapper {
	if workers <= 0 {
		workers = 4
	}
	return &Mapper{
		query:   query,
		workers: workers,
		cache:   cache,
		m:       make(map[string]string),
		ready:   make(chan struct{}),
	}
}

// BuildAsync starts the background build. The readiness signal is always
// set when the build finishes, even when every query failed.
func (mp *Mapper) BuildAsync() {
	go func() {
		defer mp.readyOnce.Do(func() { close(mp.ready) })
		mp.build()
	}()
}

func (mp *Mapper) build() {
	pkgs := mp.query.InstalledNames()
	if len(pkgs) == 0 {
		// Nothing installed, or the database is unavailable. Either way
		// there is nothing to map.
		return
	}

	// Seed from the persistent cache where the recorded descriptor still
	// exists; stale entries are dropped and re-queried.
	var pending []string
	if mp.cache != nil {
		cached := mp.cache.All()
		for _, pkg := range pkgs {
			path, ok := cached[pkg]
			if !ok {
				pending = append(pending, pkg)
				continue
			}
			if _, err := os.Stat(path); err != nil {
				mp.cache.Delete(pkg)
				pending = append(pending, pkg)
				continue
			}
			mp.insert(pkg, path)
		}
	} else {
		pending = pkgs
	}

	if len(pending) == 0 {
		return
	}

	type result struct {
		pkg  string
		path string
	}

	jobs := make(chan string)
	results := make(chan result)

	var wg sync.WaitGroup
	for i := 0; i < mp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pkg := range jobs {
				results <- result{pkg: pkg, path: mp.firstDesktopFile(pkg)}
			}
		}()
	}

	go func() {
		for _, pkg := range pending {
			jobs <- pkg
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	for res := range results {
		if res.path == "" {
			continue
		}
		mp.insert(res.pkg, res.path)
		if mp.cache != nil {
			if err := mp.cache.Put(res.pkg, res.path); err != nil {
				log.Printf("[WARN] Failed to cache desktop path for %s: %v", res.pkg, err)
			}
		}
	}
	log.Printf("[DEBUG] Package map built: %d packages, %d with desktop entries", len(pkgs), mp.Count())
}

// firstDesktopFile scans a package's file listing for the first
// descriptor path. Empty listings and failures yield "".
func (mp *Mapper) firstDesktopFile(pkg string) string {
	for _, line := range mp.query.PackageFiles(pkg) {
		if strings.HasSuffix(line, desktop.Suffix) {
			return line
		}
	}
	return ""
}

func (mp *Mapper) insert(pkg, path string) {
	mp.mu.Lock()
	mp.m[pkg] = path
	mp.mu.Unlock()
}

// DesktopForPkg returns the known descriptor path for a package. Absence
// is the only negative signal; it covers "no descriptor", "query failed"
// and "not mapped yet" alike.
func (mp *Mapper) DesktopForPkg(pkg string) (string, bool) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	path, ok := mp.m[pkg]
	return path, ok
}

// Rebuild runs a fresh build synchronously. Serves the daemon's reindex
// command.
func (mp *Mapper) Rebuild() int {
	mp.mu.Lock()
	mp.m = make(map[string]string)
	mp.mu.Unlock()
	mp.build()
	mp.readyOnce.Do(func() { close(mp.ready) })
	return mp.Count()
}

// WaitReady blocks until the build completes or the timeout elapses.
func (mp *Mapper) WaitReady(timeout time.Duration) bool {
	select {
	case <-mp.ready:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Ready reports whether the build has completed.
func (mp *Mapper) Ready() bool {
	select {
	case <-mp.ready:
		return true
	default:
		return false
	}
}

// Count returns the number of mapped packages.
func (mp *Mapper) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return len(mp.m)
}
