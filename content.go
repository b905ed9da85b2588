package main

import (
	"bytes"
	"embed"
	"fmt"
	"os"
)

//go:embed content/catalog.yaml
var defaultCatalog []byte

//go:embed templates/*.html
var templateFS embed.FS

// OpenCatalog loads the catalog from path, or the built-in one when path is
// empty.
func OpenCatalog(path string) (*Catalog, error) {
	if path == "" {
		return LoadCatalog(bytes.NewReader(defaultCatalog))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	c, err := LoadCatalog(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
