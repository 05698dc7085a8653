package tree

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"okr-cli/internal/model"
)

// Document is the wire format of one user's goal forest:
// { "nodes": { id: Node, ... }, "rootIds": [id, ...] }.
type Document struct {
	Nodes   map[string]*model.Node `json:"nodes"`
	RootIDs []string               `json:"rootIds"`
}

func NewDocument() *Document {
	return &Document{
		Nodes:   map[string]*model.Node{},
		RootIDs: []string{},
	}
}

// LoadDocument reads a tree document from path. A missing file yields an
// empty document; malformed JSON is an error, not silent data loss.
func LoadDocument(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDocument(), nil
		}
		return nil, err
	}
	var d Document
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	if d.Nodes == nil {
		d.Nodes = map[string]*model.Node{}
	}
	if d.RootIDs == nil {
		d.RootIDs = []string{}
	}
	return &d, nil
}

// Save writes the document as UTF-8 JSON via a temp file + rename so a
// crash mid-write never truncates the only tree copy.
func (d *Document) Save(path string) error {
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, 0o644)
	return os.Rename(tmp, path)
}

// LiveIDs returns the set of every node id currently in the document.
// This is the authoritative snapshot the cleanup sweep reconciles against.
func (d *Document) LiveIDs() map[string]bool {
	out := make(map[string]bool, len(d.Nodes))
	for id := range d.Nodes {
		out[id] = true
	}
	return out
}
