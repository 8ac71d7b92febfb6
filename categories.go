package organizer

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultFallbackCategory receives every file no other category claims.
const DefaultFallbackCategory = "Others"

// Category routes files with any of its extensions into a folder of the same name.
type Category struct {
	Name       string   `yaml:"name" toml:"name" json:"name"`
	Extensions []string `yaml:"extensions" toml:"extensions" json:"extensions"`
}

// CategoryTable is an ordered, immutable extension lookup. When an extension is
// listed by more than one category the first one in declaration order wins.
type CategoryTable struct {
	categories []Category
	lookup     map[string]string
	fallback   string
}

func NewCategoryTable(categories []Category, fallback string) (*CategoryTable, error) {
	fallback = strings.TrimSpace(fallback)
	if err := validateCategoryName(fallback); err != nil {
		return nil, fmt.Errorf("fallback category: %w", err)
	}

	table := &CategoryTable{
		lookup:   make(map[string]string),
		fallback: fallback,
	}

	seen := make(map[string]bool)
	for _, category := range categories {
		name := strings.TrimSpace(category.Name)
		if err := validateCategoryName(name); err != nil {
			return nil, err
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate category %q", name)
		}
		seen[name] = true

		if name == fallback {
			if len(category.Extensions) > 0 {
				return nil, fmt.Errorf("fallback category %q must not list extensions", name)
			}
			continue
		}
		if len(category.Extensions) == 0 {
			return nil, fmt.Errorf("category %q has no extensions", name)
		}

		normalized := make([]string, 0, len(category.Extensions))
		for _, ext := range category.Extensions {
			ext = NormalizeExtension(ext)
			if ext == "" || ext == "." {
				return nil, fmt.Errorf("category %q has an empty extension", name)
			}
			normalized = append(normalized, ext)
			if _, exists := table.lookup[ext]; !exists {
				table.lookup[ext] = name
			}
		}
		table.categories = append(table.categories, Category{Name: name, Extensions: normalized})
	}

	table.categories = append(table.categories, Category{Name: fallback, Extensions: []string{}})
	return table, nil
}

// Classify returns the category for a file name or path.
func (t *CategoryTable) Classify(filename string) string {
	if name, ok := t.lookup[Extension(filename)]; ok {
		return name
	}
	return t.fallback
}

// Fallback returns the name of the catch-all category.
func (t *CategoryTable) Fallback() string {
	return t.fallback
}

// Categories returns a copy of the table in declaration order, fallback last.
func (t *CategoryTable) Categories() []Category {
	out := make([]Category, len(t.categories))
	for i, c := range t.categories {
		out[i] = Category{Name: c.Name, Extensions: append([]string{}, c.Extensions...)}
	}
	return out
}

// Extension returns the lowercased extension of the base name including the
// leading dot. Names without a dot, or whose only dots are leading (".bashrc"),
// have no extension.
func Extension(filename string) string {
	_, ext := splitName(filepath.Base(filename))
	return strings.ToLower(ext)
}

// NormalizeExtension lowercases ext and ensures it starts with a dot.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// splitName splits a base name into stem and extension. Leading dots belong to
// the stem, so ".bashrc" has no extension and "a.tar.gz" splits as "a.tar" + ".gz".
func splitName(base string) (string, string) {
	trimmed := strings.TrimLeft(base, ".")
	idx := strings.LastIndex(trimmed, ".")
	if idx < 0 {
		return base, ""
	}
	offset := len(base) - len(trimmed)
	return base[:offset+idx], base[offset+idx:]
}

func validateCategoryName(name string) error {
	if name == "" {
		return fmt.Errorf("category name cannot be empty")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("category name %q is not a valid folder name", name)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("category name %q must not contain path separators", name)
	}
	return nil
}
