// Package quirks loads per-GUID control annotations for vendor extension
// units. Consumer cameras rarely document their XU controls; the quirk files
// carry the reverse-engineered names, type hints and expected capabilities so
// they can be surfaced alongside live GET_INFO data.
package quirks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ControlType hints how a quirk control's payload should be interpreted.
type ControlType string

const (
	ControlTypeBool  ControlType = "bool"
	ControlTypeRange ControlType = "range"
	ControlTypeEnum  ControlType = "enum"
	ControlTypeRaw   ControlType = "raw"
)

// Control is one annotated selector of an extension unit.
type Control struct {
	Selector      *int        `json:"selector"`
	Name          string      `json:"name"`
	Type          ControlType `json:"type"`
	Notes         string      `json:"notes,omitempty"`
	GetInfoExpect *int        `json:"get_info_expect,omitempty"`
	PayloadLen    *int        `json:"payload_len,omitempty"`
}

// Document is one quirk file, keyed by extension unit GUID.
type Document struct {
	SchemaVersion int       `json:"schema_version"`
	GUID          string    `json:"guid"`
	Name          string    `json:"name"`
	Controls      []Control `json:"controls"`
}

// Registry is the immutable quirk lookup table, built once at startup.
type Registry struct {
	docs     map[uuid.UUID]*Document
	controls map[key]*Control
}

type key struct {
	guid     uuid.UUID
	selector int
}

// LoadDir reads every *.json file of a quirks directory. Files that fail to
// parse or lack a GUID are skipped; a missing directory yields an empty
// registry.
func LoadDir(dir string) (*Registry, error) {
	r := &Registry{
		docs:     make(map[uuid.UUID]*Document),
		controls: make(map[key]*Control),
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("reading quirks directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if err := r.Add(data); err != nil {
			continue
		}
	}
	return r, nil
}

// Add parses one quirk document into the registry.
func (r *Registry) Add(data []byte) error {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	guid, err := uuid.Parse(doc.GUID)
	if err != nil {
		return fmt.Errorf("quirk document without valid guid: %w", err)
	}
	r.docs[guid] = &doc
	for i := range doc.Controls {
		c := &doc.Controls[i]
		if c.Selector == nil {
			continue
		}
		r.controls[key{guid: guid, selector: *c.Selector}] = c
	}
	return nil
}

// Unit returns the document for an extension unit GUID, if any.
func (r *Registry) Unit(guid uuid.UUID) (*Document, bool) {
	doc, ok := r.docs[guid]
	return doc, ok
}

// Lookup returns the annotation for (guid, selector), if any.
func (r *Registry) Lookup(guid uuid.UUID, selector int) (*Control, bool) {
	c, ok := r.controls[key{guid: guid, selector: selector}]
	return c, ok
}

// Len reports how many documents are loaded.
func (r *Registry) Len() int { return len(r.docs) }
