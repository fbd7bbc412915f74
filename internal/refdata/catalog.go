package refdata

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

//go:embed data/*.csv
var embedded embed.FS

const (
	FirstNames   = "first_names"
	LastNames    = "last_names"
	Cities       = "cities"
	Zips         = "zips"
	Ages         = "ages"
	Streets      = "streets"
	EmailDomains = "email_domains"
	Banks        = "banks"
)

var ErrUnknownTable = errors.New("unknown reference table")

var tableNames = []string{FirstNames, LastNames, Cities, Zips, Ages, Streets, EmailDomains, Banks}

// Catalog is the set of reference tables shared by one generation session.
type Catalog struct {
	tables map[string]*Table
	origin map[string]string
}

// LoadCatalog reads <dir>/<table>.csv for every known table. Tables missing
// from dir (or all of them when dir is empty) come from the embedded copies.
func LoadCatalog(dir string) (*Catalog, error) {
	c := &Catalog{
		tables: make(map[string]*Table, len(tableNames)),
		origin: make(map[string]string, len(tableNames)),
	}
	for _, name := range tableNames {
		t, origin, err := loadOne(dir, name)
		if err != nil {
			return nil, err
		}
		if name == Cities {
			if !t.HasColumn("ZipCodes") {
				return nil, fmt.Errorf("table %s: %w %q", name, ErrUnknownColumn, "ZipCodes")
			}
			t = t.Where(func(r Row) bool { return len(r.List("ZipCodes")) > 0 })
		}
		c.tables[name] = t
		c.origin[name] = origin
	}
	return c, nil
}

// EmbeddedCatalog loads only the tables compiled into the binary.
func EmbeddedCatalog() (*Catalog, error) {
	return LoadCatalog("")
}

func loadOne(dir, name string) (*Table, string, error) {
	file := name + ".csv"
	if dir != "" {
		path := filepath.Join(dir, file)
		f, err := os.Open(path)
		switch {
		case err == nil:
			defer f.Close()
			t, err := LoadCSV(name, f)
			return t, path, err
		case !errors.Is(err, fs.ErrNotExist):
			return nil, "", fmt.Errorf("open %s: %w", path, err)
		}
	}
	f, err := embedded.Open("data/" + file)
	if err != nil {
		return nil, "", fmt.Errorf("embedded table %s: %w", name, err)
	}
	defer f.Close()
	t, err := LoadCSV(name, f)
	return t, "embedded", err
}

func (c *Catalog) Table(name string) (*Table, error) {
	t, ok := c.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownTable, name)
	}
	return t, nil
}

// MustTable is for call sites that only ask for the built-in table names.
func (c *Catalog) MustTable(name string) *Table {
	t, err := c.Table(name)
	if err != nil {
		panic(err)
	}
	return t
}

// Origins maps each table to the file it was read from, or "embedded".
func (c *Catalog) Origins() map[string]string {
	out := make(map[string]string, len(c.origin))
	for k, v := range c.origin {
		out[k] = v
	}
	return out
}

func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.tables))
	for k := range c.tables {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
