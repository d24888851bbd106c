package reptran

import (
	"gopkg.in/yaml.v3"
)

// Target describes the machine the representation transformation
// lowers for.
type Target struct {
	Name     string `yaml:"name"`
	WordBits uint64 `yaml:"word_bits"`
	PtrBytes uint64 `yaml:"ptr_bytes"`
}

// Builtin targets.
var (
	W32 = &Target{Name: "w32", WordBits: 32, PtrBytes: 4}
	W64 = &Target{Name: "w64", WordBits: 64, PtrBytes: 8}
)

// LoadTarget decodes a YAML target description.
func LoadTarget(data []byte) (*Target, error) {
	var t Target
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	if t.WordBits == 0 {
		t.WordBits = 64
	}
	if t.PtrBytes == 0 {
		t.PtrBytes = t.WordBits / 8
	}
	return &t, nil
}
