package pkgdb

import (
	"bytes"
	"io"
	"os/exec"
	"strings"
)

// Query abstracts the two package-database operations the mapper needs.
// Any failure is represented as empty output, never as an error.
type Query interface {
	// InstalledNames lists all installed package names.
	InstalledNames() []string
	// PackageFiles lists the files installed by a package.
	PackageFiles(pkg string) []string
}

// ExecQuery runs the real pkg(8) commands.
type ExecQuery struct{}

func (ExecQuery) InstalledNames() []string {
	return runLines("pkg", "query", "%n")
}

func (ExecQuery) PackageFiles(pkg string) []string {
	return runLines("pkg", "info", "-l", pkg)
}

// runLines invokes a command with argv semantics and returns its stdout
// split into trimmed lines. Stderr is discarded and a non-zero exit still
// yields whatever stdout was produced.
func runLines(name string, args ...string) []string {
	var out bytes.Buffer
	cmd := exec.Command(name, args...)
	cmd.Stdout = &out
	cmd.Stderr = io.Discard
	_ = cmd.Run()

	if out.Len() == 0 {
		return nil
	}

	var lines []string
	for _, line := range strings.Split(out.String(), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
