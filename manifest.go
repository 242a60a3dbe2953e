package hwcodec

import (
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// ManifestEntry marks one (driver, format) pair as available.
type ManifestEntry struct {
	Driver Driver     `yaml:"driver" msgpack:"driver"`
	Format DataFormat `yaml:"format" msgpack:"format"`
}

// Manifest is a persisted record of which drivers worked for which formats,
// per direction. Used as an allow-list it restricts probing to candidates
// known to work. A nil *Manifest allows everything.
type Manifest struct {
	Encode []ManifestEntry `yaml:"encode" msgpack:"encode"`
	Decode []ManifestEntry `yaml:"decode" msgpack:"decode"`
}

// manifestWire has Manifest's layout without its BinaryMarshaler methods.
type manifestWire Manifest

// ManifestFromInfos builds the manifest describing the given probe results.
// Software codecs are not recorded since they are never filtered.
func ManifestFromInfos(encoders, decoders []CodecInfo) *Manifest {
	m := &Manifest{}
	for _, info := range encoders {
		if d, ok := manifestDriver(info); ok {
			m.Add(true, d, info.Format)
		}
	}
	for _, info := range decoders {
		if d, ok := manifestDriver(info); ok {
			m.Add(false, d, info.Format)
		}
	}
	return m
}

// manifestDriver returns the driver a codec is recorded under in a
// manifest. FFmpeg-named vendor codecs count as their vendor's driver;
// codecs without a vendor runtime are not subject to the manifest.
func manifestDriver(info CodecInfo) (Driver, bool) {
	if info.Driver != DriverFFmpeg {
		return info.Driver, true
	}
	return info.Vendor.driver()
}

// Add records (driver, format) as available in the given direction.
func (m *Manifest) Add(encode bool, d Driver, f DataFormat) {
	if m.Contains(encode, d, f) {
		return
	}
	entry := ManifestEntry{Driver: d, Format: f}
	if encode {
		m.Encode = append(m.Encode, entry)
	} else {
		m.Decode = append(m.Decode, entry)
	}
}

func (m *Manifest) entries(encode bool) []ManifestEntry {
	if encode {
		return m.Encode
	}
	return m.Decode
}

// Contains reports whether (driver, format) is marked available in the
// given direction. A nil manifest contains everything.
func (m *Manifest) Contains(encode bool, d Driver, f DataFormat) bool {
	if m == nil {
		return true
	}
	for _, e := range m.entries(encode) {
		if e.Driver == d && e.Format == f {
			return true
		}
	}
	return false
}

// Allows reports whether a candidate codec passes the manifest.
func (m *Manifest) Allows(encode bool, info CodecInfo) bool {
	d, ok := manifestDriver(info)
	if !ok {
		return true
	}
	return m.Contains(encode, d, info.Format)
}

// Filter returns the entries of infos the manifest allows.
func (m *Manifest) Filter(encode bool, infos []CodecInfo) []CodecInfo {
	if m == nil {
		return infos
	}
	out := make([]CodecInfo, 0, len(infos))
	for _, info := range infos {
		if m.Allows(encode, info) {
			out = append(out, info)
		}
	}
	return out
}

// Serialize returns the manifest as YAML text.
func (m *Manifest) Serialize() (string, error) {
	data, err := yaml.Marshal((*manifestWire)(m))
	if err != nil {
		return "", fmt.Errorf("hwcodec: serialize manifest: %w", err)
	}
	return string(data), nil
}

// ParseManifest parses YAML manifest text. Empty or unparseable text
// yields nil, which filters nothing.
func ParseManifest(text string) *Manifest {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var m manifestWire
	if err := yaml.Unmarshal([]byte(text), &m); err != nil {
		newLogger(scopeRoot).Warnf("ignoring unparseable capability manifest: %v", err)
		return nil
	}
	return (*Manifest)(&m)
}

func (m *Manifest) MarshalBinary() ([]byte, error) {
	return msgpack.Marshal((*manifestWire)(m))
}

func (m *Manifest) UnmarshalBinary(data []byte) error {
	return msgpack.Unmarshal(data, (*manifestWire)(m))
}
