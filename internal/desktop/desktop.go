package desktop

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
)

const (
	// Suffix carried by descriptor files.
	Suffix = ".desktop"

	primaryGroup = "Desktop Entry"
)

// Entry represents a parsed desktop-entry descriptor file.
type Entry struct {
	Name    string            // Unsuffixed Name key
	Names   map[string]string // Localized names (locale -> name)
	Icon    string            // Icon hint
	Exec    string            // Exec command line
	TryExec string            // TryExec executable path
	Path    string            // Path to the descriptor file
}

// ID returns the descriptor id: the base filename, e.g. "firefox.desktop".
func (e *Entry) ID() string {
	return filepath.Base(e.Path)
}

// Tokens returns the lookup tokens under which this descriptor should be
// findable: its own id, the first word of its Exec line, and the base name
// of its TryExec value.
func (e *Entry) Tokens() []string {
	tokens := []string{e.ID()}
	if e.Exec != "" {
		if fields := strings.Fields(e.Exec); len(fields) > 0 {
			tokens = append(tokens, fields[0])
		}
	}
	if e.TryExec != "" {
		tokens = append(tokens, filepath.Base(e.TryExec))
	}
	return tokens
}

// ParseFile parses a single descriptor file. Files without the primary
// group are rejected.
func ParseFile(path string) (*Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	entry := &Entry{
		Path:  path,
		Names: make(map[string]string),
	}

	scanner := bufio.NewScanner(file)
	var inPrimary, sawPrimary bool

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section := strings.Trim(line, "[]")
			inPrimary = section == primaryGroup
			if inPrimary {
				sawPrimary = true
			}
			continue
		}

		if !inPrimary {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "Name":
			entry.Name = value
		case "Icon":
			entry.Icon = value
		case "Exec":
			entry.Exec = value
		case "TryExec":
			entry.TryExec = value
		default:
			if strings.HasPrefix(key, "Name[") && strings.HasSuffix(key, "]") {
				locale := key[5 : len(key)-1]
				entry.Names[locale] = value
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if !sawPrimary {
		return nil, fmt.Errorf("%s: missing [%s] group", path, primaryGroup)
	}

	return entry, nil
}

// LocalizedName returns the best name for the given locale, probing the
// full locale tag, the tag without encoding, the bare language code, and
// finally the unsuffixed Name key. An empty string means the descriptor
// carries no usable name at all.
func (e *Entry) LocalizedName(locale string) string {
	for _, probe := range LocaleProbes(locale) {
		if name, ok := e.Names[probe]; ok {
			return name
		}
	}
	return e.Name
}

// LocaleProbes derives the Name[...] key candidates for a locale string
// such as "en_US.UTF-8", most specific first.
func LocaleProbes(locale string) []string {
	if locale == "" {
		return nil
	}

	probes := []string{locale}

	// en_US.UTF-8 -> en_US
	trimmed := locale
	if i := strings.Index(trimmed, "."); i > 0 {
		trimmed = trimmed[:i]
		probes = append(probes, trimmed)
	}

	// en_US -> en, via BCP 47 so that three-letter and script-qualified
	// tags are reduced correctly too.
	lang := ""
	if tag, err := language.Parse(strings.ReplaceAll(trimmed, "_", "-")); err == nil {
		if base, conf := tag.Base(); conf != language.No {
			lang = base.String()
		}
	}
	if lang == "" {
		if i := strings.Index(trimmed, "_"); i > 0 {
			lang = trimmed[:i]
		}
	}
	if lang != "" {
		probes = append(probes, lang)
	}

	// Drop duplicates while preserving order.
	seen := make(map[string]bool, len(probes))
	out := probes[:0]
	for _, p := range probes {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
