package style

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"io"
)

var ErrInvalidManifest = errors.New("invalid layer manifest")

// ManifestEntry carries the identity and color of one bundled file.
type ManifestEntry struct {
	File  string `json:"file"`
	ID    string `json:"id"`
	Color string `json:"color"`
}

type Manifest struct {
	Layers []ManifestEntry `json:"layers"`
}

// LoadManifest decodes and validates a manifest. Files and IDs must be
// unique; an empty ID defaults to the file name.
func LoadManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	files := make(map[string]bool, len(m.Layers))
	ids := make(map[string]bool, len(m.Layers))
	for i := range m.Layers {
		e := &m.Layers[i]
		if e.File == "" {
			return nil, fmt.Errorf("%w: entry %d has no file", ErrInvalidManifest, i)
		}
		if e.ID == "" {
			e.ID = e.File
		}
		if files[e.File] {
			return nil, fmt.Errorf("%w: duplicate file %s", ErrInvalidManifest, e.File)
		}
		if ids[e.ID] {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidManifest, e.ID)
		}
		if e.Color != "" {
			if _, err := ParseHexColor(e.Color); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, e.File, err)
			}
		}
		files[e.File] = true
		ids[e.ID] = true
	}
	return &m, nil
}

type manifestRecord struct {
	id    string
	color color.NRGBA
	set   bool
}

// ManifestPolicy resolves layers from manifest records and falls back to
// another policy for files the manifest does not list.
type ManifestPolicy struct {
	byFile   map[string]manifestRecord
	byID     map[string]manifestRecord
	fallback ColorPolicy
}

func NewManifestPolicy(m *Manifest, fallback ColorPolicy) *ManifestPolicy {
	if fallback == nil {
		fallback = FilenamePolicy{}
	}
	p := &ManifestPolicy{
		byFile:   make(map[string]manifestRecord, len(m.Layers)),
		byID:     make(map[string]manifestRecord, len(m.Layers)),
		fallback: fallback,
	}
	for _, e := range m.Layers {
		rec := manifestRecord{id: e.ID}
		if c, err := ParseHexColor(e.Color); err == nil {
			rec.color = c
			rec.set = true
		}
		p.byFile[e.File] = rec
		p.byID[e.ID] = rec
	}
	return p
}

// ColorFor accepts either a manifest ID or a file name.
func (p *ManifestPolicy) ColorFor(name string) color.NRGBA {
	if rec, ok := p.byID[name]; ok && rec.set {
		return rec.color
	}
	if rec, ok := p.byFile[name]; ok && rec.set {
		return rec.color
	}
	return p.fallback.ColorFor(name)
}

func (p *ManifestPolicy) Describe(file string) Descriptor {
	rec, ok := p.byFile[file]
	if !ok {
		return NewDescriptor(file, p.fallback.ColorFor(file))
	}
	c := rec.color
	if !rec.set {
		c = p.fallback.ColorFor(file)
	}
	return NewDescriptor(rec.id, c)
}
