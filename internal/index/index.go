package index

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/softstation/icon-ctld/internal/desktop"
)

// Record is what a token lookup yields: the descriptor's localized display
// name, its icon hint, and the descriptor id the values came from. Name
// and Icon may each be empty.
type Record struct {
	Name      string
	Icon      string
	DesktopID string
}

// Index maps lookup tokens to descriptor records. It is populated by a
// single background build pass; lookups are safe from any goroutine at any
// time and simply miss while the build is still running.
type Index struct {
	localeMu sync.RWMutex
	locale   string

	dirs func() []string

	mu     sync.RWMutex
	tokens map[string]Record
	memo   *sync.Map // token -> memoized lookup; swapped together with tokens

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates an empty index. dirs is called at build time so that rc
// changes between builds are picked up; it must return directories in
// least-specific-first order (later directories win token ties).
func New(locale string, dirs func() []string) *Index {
	return &Index{
		locale: locale,
		dirs:   dirs,
		tokens: make(map[string]Record),
		memo:   &sync.Map{},
		ready:  make(chan struct{}),
	}
}

// BuildAsync kicks off the background build pass. The readiness signal is
// set when the pass finishes, whether or not any descriptor parsed.
func (ix *Index) BuildAsync() {
	go func() {
		ix.build()
		ix.readyOnce.Do(func() { close(ix.ready) })
	}()
}

// SetLocale changes the locale used for localized names. Takes effect on
// the next build pass.
func (ix *Index) SetLocale(locale string) {
	ix.localeMu.Lock()
	ix.locale = locale
	ix.localeMu.Unlock()
}

func (ix *Index) build() {
	fresh := make(map[string]Record)

	ix.localeMu.RLock()
	locale := ix.locale
	ix.localeMu.RUnlock()

	for _, dir := range ix.dirs() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			// Directory absence is expected on most systems.
			log.Printf("[DEBUG] Desktop directory not scanned: %s: %v", dir, err)
			continue
		}

		names := make([]string, 0, len(entries))
		for _, ent := range entries {
			if ent.IsDir() || !strings.HasSuffix(ent.Name(), desktop.Suffix) {
				continue
			}
			names = append(names, ent.Name())
		}
		// Lexical order makes last-writer-wins deterministic within a
		// directory tier.
		sort.Strings(names)

		for _, name := range names {
			path := filepath.Join(dir, name)
			entry, err := desktop.ParseFile(path)
			if err != nil {
				log.Printf("[DEBUG] Skipping descriptor %s: %v", path, err)
				continue
			}
			rec := Record{
				Name:      entry.LocalizedName(locale),
				Icon:      entry.Icon,
				DesktopID: entry.ID(),
			}
			for _, token := range entry.Tokens() {
				fresh[token] = rec
			}
		}
	}

	ix.mu.Lock()
	ix.tokens = fresh
	ix.memo = &sync.Map{}
	ix.mu.Unlock()
}

// Rebuild runs a fresh build pass synchronously. The build installs a new
// lookup memo together with the new token map. Serves the daemon's
// reindex command.
func (ix *Index) Rebuild() int {
	ix.build()
	ix.readyOnce.Do(func() { close(ix.ready) })
	return ix.Count()
}

// WaitReady blocks until the first build pass completes or the timeout
// elapses. Returns whether the index is ready.
func (ix *Index) WaitReady(timeout time.Duration) bool {
	select {
	case <-ix.ready:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Ready reports whether the first build pass has completed.
func (ix *Index) Ready() bool {
	select {
	case <-ix.ready:
		return true
	default:
		return false
	}
}

type lookup struct {
	rec Record
	ok  bool
}

// BestGuess returns the record for a token, or absent. Results are
// memoized per token once the build has completed; before that the live
// map is consulted so an early miss is not cached forever.
func (ix *Index) BestGuess(token string) (Record, bool) {
	if !ix.Ready() {
		return ix.get(token)
	}

	ix.mu.RLock()
	memo := ix.memo
	if cached, ok := memo.Load(token); ok {
		ix.mu.RUnlock()
		l := cached.(lookup)
		return l.rec, l.ok
	}
	rec, ok := ix.tokens[token]
	ix.mu.RUnlock()

	// memo and tokens were read under the same lock, so this entry can
	// only land in the memo of the build it was read from. A rebuild in
	// between swaps in a fresh memo and never sees this store.
	memo.Store(token, lookup{rec: rec, ok: ok})
	return rec, ok
}

func (ix *Index) get(token string) (Record, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	rec, ok := ix.tokens[token]
	return rec, ok
}

// Count returns the number of distinct tokens.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.tokens)
}
