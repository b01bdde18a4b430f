package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var fileNamePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

// Scanner reads migration files from a directory of an fs.FS.
type Scanner struct {
	fsys fs.FS
	dir  string
}

// NewScanner returns a Scanner rooted at dir inside fsys.
func NewScanner(fsys fs.FS, dir string) *Scanner {
	return &Scanner{fsys: fsys, dir: dir}
}

// Scan returns every migration ordered by numeric version.
func (s *Scanner) Scan() ([]Migration, error) {
	entries, err := fs.ReadDir(s.fsys, s.dir)
	if err != nil {
		return nil, fmt.Errorf("read migration directory %s: %w", s.dir, err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		m, err := s.parse(entry.Name())
		if err != nil {
			return nil, err
		}
		version, _ := strconv.Atoi(m.Version)
		if existing, dup := seen[version]; dup {
			return nil, newMigrationError(m, "scan",
				fmt.Errorf("%w: version %s found in both %s and %s", ErrDuplicateVersion, m.Version, existing, entry.Name()))
		}
		seen[version] = entry.Name()
		migrations = append(migrations, m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return versionNumber(migrations[i].Version) < versionNumber(migrations[j].Version)
	})
	return migrations, nil
}

func (s *Scanner) parse(name string) (Migration, error) {
	filePath := path.Join(s.dir, name)
	matches := fileNamePattern.FindStringSubmatch(name)
	if matches == nil {
		return Migration{}, &MigrationError{FilePath: filePath, Operation: "validate filename",
			Err: fmt.Errorf("%w: %q does not match {version}_{description}.sql", ErrInvalidMigrationFile, name)}
	}

	content, err := fs.ReadFile(s.fsys, filePath)
	if err != nil {
		return Migration{}, &MigrationError{Version: matches[1], FilePath: filePath, Operation: "read file", Err: err}
	}
	m := Migration{
		Version:     matches[1],
		Description: strings.ReplaceAll(matches[2], "_", " "),
		SQL:         string(content),
		FilePath:    filePath,
		Checksum:    Checksum(content),
	}
	if len(splitStatements(m.SQL)) == 0 {
		return Migration{}, newMigrationError(m, "parse SQL", fmt.Errorf("%w: no statements", ErrInvalidMigrationFile))
	}
	return m, nil
}

// Checksum returns the hex sha256 of a migration file.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func versionNumber(version string) int {
	n, _ := strconv.Atoi(version)
	return n
}

// splitStatements splits a script on semicolons and drops comment-only lines.
// Migration files must not contain semicolons inside string literals or triggers.
func splitStatements(script string) []string {
	var statements []string
	for _, raw := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(raw, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "--") {
				continue
			}
			lines = append(lines, line)
		}
		if len(lines) > 0 {
			statements = append(statements, strings.Join(lines, "\n"))
		}
	}
	return statements
}
