package organizer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const DefaultIgnoreFile = ".organizeignore"

type Config struct {
	Categories       []Category `yaml:"categories" toml:"categories"`
	FallbackCategory string     `yaml:"fallback_category" toml:"fallback_category"`
	ExcludeDirs      []string   `yaml:"exclude_dirs" toml:"exclude_dirs"`
	ExcludePatterns  []string   `yaml:"exclude_patterns" toml:"exclude_patterns"`
	IgnoreFile       string     `yaml:"ignore_file" toml:"ignore_file"`
	MaxCollisions    int        `yaml:"max_collisions" toml:"max_collisions"`
	PruneKeepRoot    bool       `yaml:"prune_keep_root" toml:"prune_keep_root"`
	JournalPath      string     `yaml:"journal_path" toml:"journal_path"`
	LockDir          string     `yaml:"lock_dir" toml:"lock_dir"`
	LogLevel         string     `yaml:"log_level" toml:"log_level"`
	LogFormat        string     `yaml:"log_format" toml:"log_format"`
}

func DefaultConfig() *Config {
	return &Config{
		Categories: []Category{
			{Name: "Images", Extensions: []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff"}},
			{Name: "Documents", Extensions: []string{".pdf", ".doc", ".docx", ".txt", ".xls", ".xlsx", ".ppt", ".pptx"}},
			{Name: "Videos", Extensions: []string{".mp4", ".mov", ".avi", ".mkv", ".flv", ".wmv"}},
			{Name: "Music", Extensions: []string{".mp3", ".wav", ".aac", ".flac"}},
			{Name: "Archives", Extensions: []string{".zip", ".rar", ".tar", ".gz", ".7z"}},
			{Name: "Scripts", Extensions: []string{".py", ".js", ".sh", ".bat", ".pl"}},
			{Name: "Executables", Extensions: []string{".exe", ".msi", ".bin", ".apk"}},
		},
		FallbackCategory: DefaultFallbackCategory,
		IgnoreFile:       DefaultIgnoreFile,
		MaxCollisions:    DefaultMaxCollisions,
		PruneKeepRoot:    true,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// LoadConfig reads a YAML or TOML (by .toml extension) file over the defaults.
// An empty path returns the defaults. A categories list in the file replaces
// the default table entirely.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	defaults := config.Categories
	config.Categories = nil
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if config.Categories == nil {
		config.Categories = defaults
	}

	return config, nil
}

// CategoryTable builds the classifier for this configuration.
func (c *Config) CategoryTable() (*CategoryTable, error) {
	fallback := c.FallbackCategory
	if strings.TrimSpace(fallback) == "" {
		fallback = DefaultFallbackCategory
	}
	return NewCategoryTable(c.Categories, fallback)
}
