package config

import (
	"bufio"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/kelseyhightower/envconfig"
)

const icondrc = "~/.config/softstation/icond.rc"

// Change describes what a configuration reload touched. The icon cache
// subscribes to these to trigger wholesale invalidation.
type Change struct {
	Theme bool
	Scale bool
	Dirs  bool
}

type (
	env struct {
		UnixSocket    string `envconfig:"STATION_ICON_SOCK"`
		Workers       int    `envconfig:"STATION_ICON_WORKERS" default:"4"`
		DisablePkgMap bool   `envconfig:"STATION_DISABLE_PKG_MAP"`
		ThemeName     string `envconfig:"STATION_ICON_THEME" default:"hicolor"`
		ScaleFactor   int    `envconfig:"STATION_SCALE_FACTOR" default:"1"`
		FallbackIcon  string `envconfig:"STATION_ICON_FALLBACK" default:"package-x-generic"`
		CuratedTable  string `envconfig:"STATION_CURATED_TABLE"`
		LCAll         string `envconfig:"LC_ALL"`
		Lang          string `envconfig:"LANG"`
	}
	rc struct {
		sync.RWMutex
		additionalDirs []string
		themeOverride  string
		scaleOverride  int
	}
)

// Config carries the daemon configuration: static environment values plus
// the dynamic rc file, which may change while the daemon runs.
type Config struct {
	static  env
	dynamic rc
	rcPath  string
	watcher *fsnotify.Watcher

	subMu sync.Mutex
	subs  []chan Change
}

// Load reads the environment and the default rc file.
func Load() (*Config, error) {
	return LoadWithRC(expandPath(icondrc))
}

// LoadWithRC reads the environment and the given rc file path. Used by
// tests to point the config at a temp directory.
func LoadWithRC(rcPath string) (*Config, error) {
	c := &Config{rcPath: rcPath}

	if err := envconfig.Process("", &c.static); err != nil {
		return nil, err
	}

	// Default socket path is per-user under /tmp
	if c.static.UnixSocket == "" {
		currentUser, err := user.Current()
		if err != nil {
			return nil, err
		}
		c.static.UnixSocket = fmt.Sprintf("/tmp/softstation-%s/icond", currentUser.Uid)
	}

	if strings.HasPrefix(c.static.UnixSocket, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		c.static.UnixSocket = strings.Replace(c.static.UnixSocket, "~", home, 1)
	}

	if err := c.loadRC(); err != nil {
		return nil, err
	}

	return c, nil
}

// Run sets up the rc file watcher and starts the reload loop.
func (c *Config) Run() error {
	if err := c.setupWatcher(); err != nil {
		return err
	}
	go c.watchLoop()
	return nil
}

// Close stops the watcher, if running.
func (c *Config) Close() error {
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

// Subscribe returns a channel that receives a Change for every rc reload
// that altered the theme name, scale factor or directory list.
func (c *Config) Subscribe() <-chan Change {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	ch := make(chan Change, 4)
	c.subs = append(c.subs, ch)
	return ch
}

func (c *Config) notify(ch Change) {
	if !ch.Theme && !ch.Scale && !ch.Dirs {
		return
	}
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, sub := range c.subs {
		select {
		case sub <- ch:
		default:
			// Slow subscriber; a pending change event already covers it.
		}
	}
}

// loadRC parses the rc file. Bare lines are additional desktop-entry
// directories; "theme = NAME" and "scale = N" override the environment
// values at runtime, which is how theme and DPI changes reach a running
// daemon.
func (c *Config) loadRC() error {
	rcDir := filepath.Dir(c.rcPath)
	if err := os.MkdirAll(rcDir, 0750); err != nil {
		return err
	}

	file, err := os.Open(c.rcPath)
	if err != nil {
		if os.IsNotExist(err) {
			file, err = os.Create(c.rcPath)
			if err != nil {
				return err
			}
			file.Close()
			return nil
		}
		return err
	}
	defer file.Close()

	var (
		dirs  []string
		theme string
		scale int
	)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if key, value, ok := strings.Cut(line, "="); ok {
			key = strings.TrimSpace(key)
			value = strings.TrimSpace(value)
			switch key {
			case "theme":
				theme = value
			case "scale":
				if n, err := strconv.Atoi(value); err == nil && n > 0 {
					scale = n
				}
			}
			continue
		}
		dirs = append(dirs, expandPath(line))
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	c.dynamic.Lock()
	change := Change{
		Theme: theme != c.dynamic.themeOverride,
		Scale: scale != c.dynamic.scaleOverride,
		Dirs:  !equalStrings(dirs, c.dynamic.additionalDirs),
	}
	c.dynamic.additionalDirs = dirs
	c.dynamic.themeOverride = theme
	c.dynamic.scaleOverride = scale
	c.dynamic.Unlock()

	c.notify(change)
	return nil
}

func (c *Config) setupWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	c.watcher = watcher

	// Watch the directory rather than the file so editors that replace the
	// file are still seen.
	return watcher.Add(filepath.Dir(c.rcPath))
}

func (c *Config) watchLoop() {
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if event.Name == c.rcPath && (event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create) {
				if err := c.loadRC(); err != nil {
					fmt.Fprintf(os.Stderr, "Error reloading config: %v\n", err)
				}
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "Config watcher error: %v\n", err)
		}
	}
}

// DesktopDirs returns the descriptor directories in scan order:
// least-specific first, so that with last-writer-wins insertion the most
// specific directory ends up winning token ties.
func (c *Config) DesktopDirs() []string {
	c.dynamic.RLock()
	defer c.dynamic.RUnlock()

	dirs := []string{
		"/usr/share/applications",
		"/usr/local/share/applications",
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".local/share/applications"))
	}
	dirs = append(dirs, c.dynamic.additionalDirs...)
	return dirs
}

// ThemeName returns the active icon theme name; the rc override wins.
func (c *Config) ThemeName() string {
	c.dynamic.RLock()
	defer c.dynamic.RUnlock()
	if c.dynamic.themeOverride != "" {
		return c.dynamic.themeOverride
	}
	return c.static.ThemeName
}

// ScaleFactor returns the current display scale factor, at least 1.
func (c *Config) ScaleFactor() int {
	c.dynamic.RLock()
	defer c.dynamic.RUnlock()
	if c.dynamic.scaleOverride > 0 {
		return c.dynamic.scaleOverride
	}
	if c.static.ScaleFactor > 0 {
		return c.static.ScaleFactor
	}
	return 1
}

// FallbackIcon returns the generic icon name used when a lookup misses.
func (c *Config) FallbackIcon() string {
	if c.static.FallbackIcon != "" {
		return c.static.FallbackIcon
	}
	return "package-x-generic"
}

// Locale returns the locale used for localized descriptor names.
func (c *Config) Locale() string {
	if c.static.LCAll != "" {
		return c.static.LCAll
	}
	if c.static.Lang != "" {
		return c.static.Lang
	}
	return "en_US"
}

// UnixSocket returns the daemon socket path.
func (c *Config) UnixSocket() string {
	return c.static.UnixSocket
}

// Workers returns the number of mapper worker goroutines.
func (c *Config) Workers() int {
	if c.static.Workers <= 0 {
		return 4
	}
	return c.static.Workers
}

// DisablePkgMap reports whether the package-to-desktop map build is
// switched off.
func (c *Config) DisablePkgMap() bool {
	return c.static.DisablePkgMap
}

// CuratedTable returns the curated table override path, if set.
func (c *Config) CuratedTable() string {
	return c.static.CuratedTable
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return strings.Replace(path, "~", home, 1)
	}
	return path
}
