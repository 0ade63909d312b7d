// ABOUTME: Global variable file loader, loading the workflow's frozen string environment
// ABOUTME: Supports plain key=value files and YAML maps, merged in declaration order

package variables

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileLoader loads raw global-variable definitions from disk, before
// internal/globalvars resolves @name@ references among them.
type FileLoader struct {
	basePath string
}

// New creates a loader that resolves relative paths against basePath.
func New(basePath string) *FileLoader {
	return &FileLoader{basePath: basePath}
}

// LoadVariableFile loads one file into a flat string map.
func (fl *FileLoader) LoadVariableFile(filePath string) (map[string]string, error) {
	resolved := filePath
	if !filepath.IsAbs(resolved) && fl.basePath != "" {
		resolved = filepath.Join(fl.basePath, resolved)
	}

	if _, err := os.Stat(resolved); os.IsNotExist(err) {
		return nil, fmt.Errorf("variable file not found: %s", resolved)
	}

	switch strings.ToLower(filepath.Ext(resolved)) {
	case ".yaml", ".yml":
		return fl.loadYAMLFile(resolved)
	default:
		return fl.loadKeyValueFile(resolved)
	}
}

// LoadVariableFiles loads and merges multiple files; later files
// override earlier ones on key collision.
func (fl *FileLoader) LoadVariableFiles(filePaths []string) (map[string]string, error) {
	merged := make(map[string]string)
	for _, filePath := range filePaths {
		vars, err := fl.LoadVariableFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load variable file %q: %w", filePath, err)
		}
		for k, v := range vars {
			merged[k] = v
		}
	}
	return merged, nil
}

func (fl *FileLoader) loadYAMLFile(path string) (map[string]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML %q: %w", path, err)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out, nil
}

// loadKeyValueFile reads key=value lines, the same grammar the task
// file itself uses for records (see internal/parser).
func (fl *FileLoader) loadKeyValueFile(path string) (map[string]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}

	out := make(map[string]string)
	for lineNum, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid variable line in %q at line %d: %s", path, lineNum+1, line)
		}
		out[strings.TrimSpace(parts[0])] = parts[1]
	}
	return out, nil
}
