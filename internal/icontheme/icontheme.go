package icontheme

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Icon is a successful theme lookup.
type Icon struct {
	// Short name of the icon
	Name string

	// Full path of the icon file
	Path string

	// Unscaled size of the directory the icon was found in; 0 if unknown
	Size int

	// Scale of the directory the icon was found in; 0 if unknown
	Scale int
}

// Extensions considered, in preference order.
var extensions = []string{".png", ".svg", ".xpm"}

// Lookup resolves icon names against an icon theme and its inheritance
// chain, following the freedesktop icon-theme layout.
type Lookup struct {
	themeName string
	baseDirs  []string
}

// NewLookup creates a lookup for the named theme using the standard base
// directories.
func NewLookup(themeName string) *Lookup {
	return NewLookupWithDirs(themeName, BaseDirs())
}

// NewLookupWithDirs creates a lookup with explicit base directories. Used
// by tests.
func NewLookupWithDirs(themeName string, baseDirs []string) *Lookup {
	return &Lookup{themeName: themeName, baseDirs: baseDirs}
}

// BaseDirs returns the directories searched for themes: $HOME/.icons,
// then icons/ under XDG data dirs, then the flat pixmaps directory.
func BaseDirs() []string {
	var dirs []string
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".icons"))
	}
	dataDirs := os.Getenv("XDG_DATA_DIRS")
	if dataDirs == "" {
		dataDirs = "/usr/local/share:/usr/share"
	}
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		dataDirs = dataHome + ":" + dataDirs
	}
	for _, d := range strings.Split(dataDirs, ":") {
		if d != "" {
			dirs = append(dirs, filepath.Join(d, "icons"))
		}
	}
	dirs = append(dirs, "/usr/share/pixmaps")
	return dirs
}

// FindIcon finds the named icon at the requested size and scale. The
// theme chain is searched first (exact size match, then closest), then
// the unthemed fallback directories.
func (l *Lookup) FindIcon(name string, size, scale int) (Icon, bool) {
	if name == "" {
		return Icon{}, false
	}
	if scale < 1 {
		scale = 1
	}

	for _, th := range l.chain() {
		if icon, ok := l.findInTheme(th, name, size, scale); ok {
			return icon, true
		}
	}

	// Unthemed: a bare file directly under a base dir, e.g.
	// /usr/share/pixmaps/vlc.png.
	for _, base := range l.baseDirs {
		for _, ext := range extensions {
			path := filepath.Join(base, name+ext)
			if fileExists(path) {
				return Icon{Name: name, Path: path}, true
			}
		}
	}

	return Icon{}, false
}

// chain returns the theme inheritance chain, hicolor last.
func (l *Lookup) chain() []*theme {
	var (
		out     []*theme
		visited = map[string]bool{}
		queue   = []string{l.themeName}
	)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if name == "" || visited[name] {
			continue
		}
		visited[name] = true
		th, ok := l.loadTheme(name)
		if !ok {
			continue
		}
		out = append(out, th)
		queue = append(queue, th.inherits...)
	}
	if !visited["hicolor"] {
		if th, ok := l.loadTheme("hicolor"); ok {
			out = append(out, th)
		}
	}
	return out
}

func (l *Lookup) findInTheme(th *theme, name string, size, scale int) (Icon, bool) {
	// Exact pass.
	for _, sub := range th.dirs {
		if !sub.matchesSize(size, scale) {
			continue
		}
		if icon, ok := l.iconInSubDir(th, sub, name); ok {
			return icon, true
		}
	}

	// Closest pass.
	var (
		best     Icon
		bestDist = -1
	)
	for _, sub := range th.dirs {
		dist := sub.sizeDistance(size, scale)
		if bestDist >= 0 && dist >= bestDist {
			continue
		}
		if icon, ok := l.iconInSubDir(th, sub, name); ok {
			best = icon
			bestDist = dist
		}
	}
	if bestDist >= 0 {
		return best, true
	}
	return Icon{}, false
}

func (l *Lookup) iconInSubDir(th *theme, sub subDir, name string) (Icon, bool) {
	for _, base := range l.baseDirs {
		for _, ext := range extensions {
			path := filepath.Join(base, th.name, sub.path, name+ext)
			if fileExists(path) {
				return Icon{Name: name, Path: path, Size: sub.size, Scale: sub.scale}, true
			}
		}
	}
	return Icon{}, false
}

// theme is the parsed index.theme of one theme.
type theme struct {
	name     string
	inherits []string
	dirs     []subDir
}

// subDir describes one icon directory section of an index.theme.
type subDir struct {
	path      string
	size      int
	scale     int
	typ       string
	minSize   int
	maxSize   int
	threshold int
}

func (s subDir) matchesSize(size, scale int) bool {
	if s.scale != scale {
		return false
	}
	switch s.typ {
	case "Fixed":
		return s.size == size
	case "Scalable":
		return s.minSize <= size && size <= s.maxSize
	default: // Threshold
		return s.size-s.threshold <= size && size <= s.size+s.threshold
	}
}

func (s subDir) sizeDistance(size, scale int) int {
	want := size * scale
	switch s.typ {
	case "Fixed":
		return abs(s.size*s.scale - want)
	case "Scalable":
		if want < s.minSize*s.scale {
			return s.minSize*s.scale - want
		}
		if want > s.maxSize*s.scale {
			return want - s.maxSize*s.scale
		}
		return 0
	default: // Threshold
		if want < (s.size-s.threshold)*s.scale {
			return (s.size-s.threshold)*s.scale - want
		}
		if want > (s.size+s.threshold)*s.scale {
			return want - (s.size+s.threshold)*s.scale
		}
		return 0
	}
}

// loadTheme parses the first index.theme found for a theme name across
// the base directories.
func (l *Lookup) loadTheme(name string) (*theme, bool) {
	for _, base := range l.baseDirs {
		indexPath := filepath.Join(base, name, "index.theme")
		sections, order, err := parseIndexFile(indexPath)
		if err != nil {
			continue
		}

		main, ok := sections["Icon Theme"]
		if !ok {
			continue
		}

		th := &theme{name: name}
		for _, inh := range strings.Split(main["Inherits"], ",") {
			if inh = strings.TrimSpace(inh); inh != "" {
				th.inherits = append(th.inherits, inh)
			}
		}

		listed := map[string]bool{}
		for _, field := range []string{"Directories", "ScaledDirectories"} {
			for _, d := range strings.Split(main[field], ",") {
				if d = strings.TrimSpace(d); d != "" {
					listed[d] = true
				}
			}
		}

		for _, section := range order {
			if !listed[section] {
				continue
			}
			kv := sections[section]
			sub := subDir{
				path:      section,
				size:      atoiDefault(kv["Size"], 0),
				scale:     atoiDefault(kv["Scale"], 1),
				typ:       kv["Type"],
				threshold: atoiDefault(kv["Threshold"], 2),
			}
			if sub.typ == "" {
				sub.typ = "Threshold"
			}
			sub.minSize = atoiDefault(kv["MinSize"], sub.size)
			sub.maxSize = atoiDefault(kv["MaxSize"], sub.size)
			th.dirs = append(th.dirs, sub)
		}
		return th, true
	}
	return nil, false
}

// parseIndexFile reads a key/value group file into per-section maps,
// preserving section order.
func parseIndexFile(path string) (map[string]map[string]string, []string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	sections := make(map[string]map[string]string)
	var order []string
	var current map[string]string

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			name := strings.Trim(line, "[]")
			current = make(map[string]string)
			sections[name] = current
			order = append(order, name)
			continue
		}
		if current == nil {
			continue
		}
		if key, value, ok := strings.Cut(line, "="); ok {
			current[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return sections, order, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
