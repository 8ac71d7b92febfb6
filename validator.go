package organizer

import (
	"fmt"
	"path/filepath"
	"strings"
)

type Validator interface {
	ValidatePath(path string) error
	ValidateRoot(path string) error
	ValidateConfig(config *Config) error
}

type DefaultValidator struct {
	fs FileSystem
}

func NewDefaultValidator(fsys FileSystem) *DefaultValidator {
	if fsys == nil {
		fsys = OSFileSystem{}
	}
	return &DefaultValidator{fs: fsys}
}

func (v *DefaultValidator) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		return fmt.Errorf("path must be absolute")
	}

	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("path contains directory traversal")
		}
	}

	return nil
}

// ValidateRoot checks that path is an existing, writable directory. Any
// failure is a ConfigurationError so callers can stop before doing work.
func (v *DefaultValidator) ValidateRoot(path string) error {
	if err := v.ValidatePath(path); err != nil {
		return NewConfigurationError(path, err.Error())
	}

	info, err := v.fs.Stat(path)
	if err != nil {
		return NewConfigurationError(path, fmt.Sprintf("cannot access directory: %v", err))
	}
	if !info.IsDir() {
		return NewConfigurationError(path, "not a directory")
	}
	if !isWritableDir(path) {
		return NewConfigurationError(path, "directory is not writable")
	}
	return nil
}

func (v *DefaultValidator) ValidateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if config.MaxCollisions < 1 {
		return fmt.Errorf("max_collisions must be at least 1")
	}

	if _, err := config.CategoryTable(); err != nil {
		return fmt.Errorf("invalid categories: %w", err)
	}

	for _, dir := range config.ExcludeDirs {
		if strings.TrimSpace(dir) == "" || strings.ContainsAny(dir, `/\`) {
			return fmt.Errorf("exclude_dirs entry %q must be a plain directory name", dir)
		}
	}

	if strings.ContainsAny(config.IgnoreFile, `/\`) {
		return fmt.Errorf("ignore_file %q must be a file name, not a path", config.IgnoreFile)
	}

	switch strings.ToLower(strings.TrimSpace(config.LogFormat)) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", config.LogFormat)
	}

	if _, err := parseLevel(config.LogLevel); err != nil {
		return err
	}

	return nil
}
