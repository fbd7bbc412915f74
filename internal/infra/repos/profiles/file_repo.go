package profiles

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mmrzaf/taxgen/internal/profile"
)

const DefaultID = "default"

var (
	ErrNotFound    = errors.New("profile not found")
	ErrOutsideBase = errors.New("profile path escapes the profiles directory")
)

type Profile struct {
	ID   string
	Path string
	Tree *profile.Tree
}

type Repository interface {
	List() ([]*Profile, error)
	Get(id string) (*Profile, error)
	GetByPath(path string) (*Profile, error)
}

// FileRepository reads profiles from one directory. The embedded default
// profile is always available under DefaultID unless a file overrides it.
type FileRepository struct {
	baseDir string
}

func NewFileRepository(baseDir string) *FileRepository {
	return &FileRepository{baseDir: baseDir}
}

func (r *FileRepository) List() ([]*Profile, error) {
	out := make([]*Profile, 0)
	if _, err := os.Stat(r.baseDir); err == nil {
		entries, err := os.ReadDir(r.baseDir)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() || !isProfileFile(entry.Name()) {
				continue
			}
			p, err := r.load(filepath.Join(r.baseDir, entry.Name()))
			if err != nil {
				continue
			}
			out = append(out, p)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	hasDefault := false
	for _, p := range out {
		if p.ID == DefaultID {
			hasDefault = true
		}
	}
	if !hasDefault {
		out = append(out, Default())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get matches a profile's name key or its file name without extension.
func (r *FileRepository) Get(id string) (*Profile, error) {
	if id == "" {
		id = DefaultID
	}
	list, err := r.List()
	if err != nil {
		return nil, err
	}
	for _, p := range list {
		if p.ID == id || (p.Path != "" && stem(p.Path) == id) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// GetByPath loads a file by path relative to the profiles directory. Paths
// resolving outside it are rejected.
func (r *FileRepository) GetByPath(path string) (*Profile, error) {
	full, err := r.resolve(path)
	if err != nil {
		return nil, err
	}
	return r.load(full)
}

func (r *FileRepository) resolve(path string) (string, error) {
	base, err := filepath.Abs(r.baseDir)
	if err != nil {
		return "", err
	}
	p := path
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(base, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideBase, path)
	}
	return p, nil
}

func (r *FileRepository) load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tree, err := profile.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	id, err := tree.String("name")
	if err != nil || id == "" {
		id = stem(path)
	}
	return &Profile{ID: id, Path: path, Tree: tree}, nil
}

// Default returns the embedded profile.
func Default() *Profile {
	return &Profile{ID: DefaultID, Tree: profile.Default()}
}

func isProfileFile(name string) bool {
	switch filepath.Ext(name) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
