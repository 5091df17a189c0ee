// Package inventory loads the ordered list of servers to survey.
package inventory

import (
	"fmt"
	"io"
	"os"

	"github.com/Leonid-98/optimize-table/internal/target"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the inventory file read when none is configured
const DefaultPath = "servers.yml"

// Document represents the structure of a servers inventory file:
//
//	servers:
//	  - root@db1.example.com
//	  - root@db2.example.com
type Document struct {
	Servers []string `yaml:"servers"`
}

// FileInventory reads server specifications from a YAML document on disk
type FileInventory struct {
	path string
	port int
}

// NewFileInventory creates a new file-backed inventory provider. Every target
// it produces uses port.
func NewFileInventory(path string, port int) *FileInventory {
	if path == "" {
		path = DefaultPath
	}
	return &FileInventory{path: path, port: port}
}

// Path returns the inventory file location
func (fi *FileInventory) Path() string {
	return fi.path
}

// LoadTargets loads targets from the inventory file
func (fi *FileInventory) LoadTargets() ([]target.Target, error) {
	file, err := os.Open(fi.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory file: %w", err)
	}
	defer file.Close()

	doc, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse inventory file %s: %w", fi.path, err)
	}

	return target.ParseServers(doc.Servers, fi.port)
}

// Decode parses an inventory document from r
func Decode(r io.Reader) (*Document, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, err
	}

	if doc.Servers == nil {
		return nil, fmt.Errorf("missing top-level 'servers' key")
	}

	return &doc, nil
}
