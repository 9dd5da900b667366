package mapengine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Bundle is saved instance state. Values must survive a JSON round trip.
type Bundle map[string]any

// Float reads a number regardless of how it was stored.
func (b Bundle) Float(key string) (float64, bool) {
	switch v := b[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// LoadBundle reads a bundle saved by SaveBundle. A missing file yields an
// empty bundle.
func LoadBundle(path string) (Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Bundle{}, nil
		}
		return nil, err
	}

	b := Bundle{}
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse saved state: %w", err)
	}
	return b, nil
}

func SaveBundle(path string, b Bundle) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
