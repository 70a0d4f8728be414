package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wonny/aegis-risk/internal/contracts"
)

// Formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// FileSource reads a snapshot from a JSON or YAML file
type FileSource struct {
	path string
}

// NewFileSource creates a file-backed source
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name returns the source identifier
func (s *FileSource) Name() string {
	return "file:" + s.path
}

// Load reads and decodes the snapshot file
func (s *FileSource) Load(ctx context.Context) (*contracts.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", s.path, err)
	}

	return Decode(data, FormatFromPath(s.path))
}

// FormatFromPath picks the decoder by file extension (기본 JSON)
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode parses a snapshot document
// 알 수 없는 필드는 거부 (입력 오타를 조용히 무시하지 않음)
func Decode(data []byte, format string) (*contracts.Snapshot, error) {
	var snap contracts.Snapshot

	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&snap); err != nil {
			return nil, fmt.Errorf("%w: snapshot yaml: %v", contracts.ErrInvalidInput, err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&snap); err != nil {
			return nil, fmt.Errorf("%w: snapshot json: %v", contracts.ErrInvalidInput, err)
		}
	default:
		return nil, fmt.Errorf("unsupported snapshot format %q", format)
	}

	return &snap, nil
}

// WriteFile encodes a snapshot to path (format by extension)
func WriteFile(path string, snap *contracts.Snapshot) error {
	var (
		data []byte
		err  error
	)
	if FormatFromPath(path) == FormatYAML {
		data, err = yaml.Marshal(snap)
	} else {
		data, err = json.MarshalIndent(snap, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
