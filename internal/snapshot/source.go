// Package snapshot loads protocol snapshots from files or the shared
// key-value store.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hylo-so/hylo-engine/internal/quote"
	"github.com/hylo-so/hylo-engine/pkg/kv"
)

// KeyLatest is where the current snapshot lives in the KV store.
const KeyLatest = "hylo:snapshot:latest"

var (
	ErrNotFound      = errors.New("snapshot not found")
	ErrUnknownFormat = errors.New("unknown snapshot format")
)

// Source produces the latest protocol snapshot.
type Source interface {
	Load(ctx context.Context) (*quote.Snapshot, error)
	Name() string
}

type Format int

const (
	FormatYAML Format = iota
	FormatJSON
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
}

// Decode parses and validates a snapshot.
func Decode(data []byte, format Format) (*quote.Snapshot, error) {
	var snap quote.Snapshot
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&snap); err != nil {
			return nil, fmt.Errorf("decode json snapshot: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&snap); err != nil {
			return nil, fmt.Errorf("decode yaml snapshot: %w", err)
		}
	default:
		return nil, ErrUnknownFormat
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Encode renders a snapshot in the given format.
func Encode(snap *quote.Snapshot, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(snap, "", "  ")
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, ErrUnknownFormat
}

// LoadFile reads a YAML or JSON snapshot from disk.
func LoadFile(path string) (*quote.Snapshot, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	return Decode(data, format)
}

// FileSource rereads the file on every Load so edits are picked up by the
// refresher.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (f *FileSource) Load(ctx context.Context) (*quote.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadFile(f.Path)
}

func (f *FileSource) Name() string { return "file" }

// KVSource reads JSON snapshots published by an indexer into the KV store.
type KVSource struct {
	Store kv.Store
	Key   string
}

func NewKVSource(store kv.Store) *KVSource {
	return &KVSource{Store: store, Key: KeyLatest}
}

func (s *KVSource) Load(ctx context.Context) (*quote.Snapshot, error) {
	data, err := s.Store.Get(ctx, s.Key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, fmt.Errorf("%w: key %s", ErrNotFound, s.Key)
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Decode(data, FormatJSON)
}

func (s *KVSource) Name() string { return "kv" }

// Publish validates snap and stores it under key for KVSource readers.
func Publish(ctx context.Context, store kv.Store, key string, snap *quote.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return store.Set(ctx, key, data)
}
