package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// sheetColumns is the expected header row of a discipline spreadsheet.
var sheetColumns = []string{"id", "name", "board", "level", "duration", "tags", "prerequisites"}

// Loader loads and caches disciplines from the filesystem.
type Loader struct {
	rootDir     string
	disciplines map[string]Discipline
	mu          sync.RWMutex
}

// NewLoader creates a new catalog loader and loads all content under rootDir.
func NewLoader(rootDir string) (*Loader, error) {
	l := &Loader{
		rootDir:     rootDir,
		disciplines: make(map[string]Discipline),
	}

	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	slog.Info("catalog loaded", "disciplines", len(l.disciplines))
	return l, nil
}

// NewStatic builds a catalog from in-memory disciplines.
func NewStatic(disciplines []Discipline) (*Loader, error) {
	l := &Loader{disciplines: make(map[string]Discipline, len(disciplines))}
	for _, d := range disciplines {
		if err := l.add(d); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Get returns a discipline by ID.
func (l *Loader) Get(id string) (Discipline, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.disciplines[id]
	return d, ok
}

// All returns all loaded disciplines ordered by ID.
func (l *Loader) All() []Discipline {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Discipline, 0, len(l.disciplines))
	for _, d := range l.disciplines {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of disciplines.
func (l *Loader) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.disciplines)
}

func (l *Loader) loadAll() error {
	return filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			if strings.HasSuffix(path, "templates.yaml") {
				return nil // Planner templates, not disciplines
			}
			return l.loadYAML(path)
		case ".xlsx":
			return l.loadSheet(path)
		}
		return nil
	})
}

func (l *Loader) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		slog.Warn("skipping invalid discipline YAML", "path", path, "error", err)
		return nil
	}

	entries := f.Disciplines
	if f.ID != "" {
		entries = append(entries, f.Discipline)
	}
	for _, d := range entries {
		if err := l.add(d); err != nil {
			slog.Warn("skipping discipline", "path", path, "id", d.ID, "error", err)
		}
	}
	return nil
}

func (l *Loader) loadSheet(path string) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		slog.Warn("skipping unreadable spreadsheet", "path", path, "error", err)
		return nil
	}
	defer func() { _ = f.Close() }()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			slog.Warn("skipping sheet", "path", path, "sheet", sheet, "error", err)
			continue
		}
		if len(rows) == 0 {
			continue
		}

		cols := headerIndex(rows[0])
		if _, ok := cols["id"]; !ok {
			continue // Not a discipline sheet
		}

		for n, row := range rows[1:] {
			d, err := disciplineFromRow(row, cols)
			if err == nil {
				err = l.add(d)
			}
			if err != nil {
				slog.Warn("skipping sheet row", "path", path, "sheet", sheet, "row", n+2, "error", err)
			}
		}
	}
	return nil
}

func (l *Loader) add(d Discipline) error {
	d.ID = strings.TrimSpace(d.ID)
	if d.ID == "" {
		return fmt.Errorf("discipline id is required")
	}
	if strings.TrimSpace(d.Name) == "" {
		d.Name = d.ID
	}
	level, err := ParseLevel(string(d.Level))
	if err != nil {
		return err
	}
	d.Level = level
	if d.DefaultDuration < 0 {
		return fmt.Errorf("duration must not be negative, got %d", d.DefaultDuration)
	}

	l.mu.Lock()
	l.disciplines[d.ID] = d
	l.mu.Unlock()
	return nil
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		for _, want := range sheetColumns {
			if name == want {
				idx[name] = i
			}
		}
	}
	return idx
}

func disciplineFromRow(row []string, cols map[string]int) (Discipline, error) {
	cell := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	d := Discipline{
		ID:            cell("id"),
		Name:          cell("name"),
		Board:         cell("board"),
		Level:         Level(cell("level")),
		Tags:          splitList(cell("tags")),
		Prerequisites: splitList(cell("prerequisites")),
	}
	if v := cell("duration"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Discipline{}, fmt.Errorf("invalid duration %q", v)
		}
		d.DefaultDuration = n
	}
	return d, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
