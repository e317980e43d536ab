package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Archive is a read-only view of a finalized archive.
type Archive struct {
	manifest Manifest
	names    []string
	files    map[string][]byte
}

// Open parses a finalized archive.
func Open(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	a := &Archive{files: make(map[string][]byte, len(zr.File))}
	for _, f := range zr.File {
		content, err := readFile(f)
		if err != nil {
			return nil, err
		}
		a.names = append(a.names, f.Name)
		a.files[f.Name] = content
	}

	raw, ok := a.files[ManifestName]
	if !ok {
		return nil, ErrMissingManifest
	}
	if err := json.Unmarshal(raw, &a.manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	return a, nil
}

// Manifest returns the decoded index.json.
func (a *Archive) Manifest() Manifest {
	return a.manifest
}

// Names returns the entry names in archive order.
func (a *Archive) Names() []string {
	return append([]string(nil), a.names...)
}

// File returns the content of a named entry.
func (a *Archive) File(name string) ([]byte, bool) {
	b, ok := a.files[name]
	return b, ok
}

// DecodeFile unmarshals a named JSON entry into v.
func (a *Archive) DecodeFile(name string, v any) error {
	b, ok := a.files[name]
	if !ok {
		return fmt.Errorf("entry %s not found", name)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read entry %s: %w", f.Name, err)
	}
	return b, nil
}
