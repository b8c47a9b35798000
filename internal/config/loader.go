package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ZanzyTHEbar/taskweave"
)

// DocumentLoader reads a configuration document in one format.
type DocumentLoader interface {
	Load(path string) (taskweave.Document, error)
	Format() string
}

var (
	loaderMu       sync.RWMutex
	loaderRegistry = make(map[string]DocumentLoader)
)

// RegisterLoader makes loader available for files whose extension is its format.
func RegisterLoader(loader DocumentLoader) {
	loaderMu.Lock()
	defer loaderMu.Unlock()
	loaderRegistry[loader.Format()] = loader
}

// GetLoader returns the loader registered for format.
func GetLoader(format string) (DocumentLoader, bool) {
	loaderMu.RLock()
	defer loaderMu.RUnlock()
	loader, ok := loaderRegistry[strings.ToLower(format)]
	return loader, ok
}

// Formats lists the registered formats.
func Formats() []string {
	loaderMu.RLock()
	defer loaderMu.RUnlock()
	out := make([]string, 0, len(loaderRegistry))
	for f := range loaderRegistry {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// JSONLoader reads JSON documents.
type JSONLoader struct{}

func (JSONLoader) Format() string { return "json" }

func (JSONLoader) Load(path string) (taskweave.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return taskweave.Document{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return taskweave.ParseDocument(data)
}

// YAMLLoader reads YAML documents. It checks that the file is YAML before
// handing it to the shared document parser.
type YAMLLoader struct {
	format string
}

func (l YAMLLoader) Format() string { return l.format }

func (YAMLLoader) Load(path string) (taskweave.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return taskweave.Document{}, fmt.Errorf("failed to read config file: %w", err)
	}
	var probe yaml.Node
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return taskweave.Document{}, taskweave.NewInvalidConfigError("failed to parse config YAML", err)
	}
	return taskweave.ParseDocument(data)
}

func init() {
	RegisterLoader(JSONLoader{})
	RegisterLoader(YAMLLoader{format: "yaml"})
	RegisterLoader(YAMLLoader{format: "yml"})
}

// LoadDocument loads path with the loader matching its extension.
func LoadDocument(path string) (taskweave.Document, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	loader, ok := GetLoader(ext)
	if !ok {
		return taskweave.Document{}, taskweave.NewInvalidConfigError(
			fmt.Sprintf("no loader for '%s' files (supported: %s)", ext, strings.Join(Formats(), ", ")), nil)
	}
	return loader.Load(path)
}
