// Package archive assembles dictionary archives: a ZIP container holding
// one index.json manifest plus any number of named JSON bank entries.
//
// A Builder owns its entries until Finalize, which serializes them in one
// step and retires the builder. Nothing is written anywhere before that,
// so a build abandoned half-way leaves no artifact behind.
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ManifestName is the reserved entry name of the manifest.
const ManifestName = "index.json"

var (
	// ErrDuplicateEntry is returned when an entry name is added twice.
	ErrDuplicateEntry = errors.New("duplicate archive entry")

	// ErrReservedName is returned when a data entry uses the manifest name.
	ErrReservedName = errors.New("entry name is reserved for the manifest")

	// ErrFinalized is returned when a builder is used after Finalize.
	ErrFinalized = errors.New("archive already finalized")

	// ErrMissingManifest is returned by Open for archives without index.json.
	ErrMissingManifest = errors.New("archive has no manifest")
)

// Manifest describes the archive itself.
type Manifest struct {
	Title     string `json:"title"`
	Format    int    `json:"format"`
	Revision  string `json:"revision"`
	Sequenced bool   `json:"sequenced"`
}

// DefaultManifest is the manifest of the WaniKani dictionary.
var DefaultManifest = Manifest{
	Title:     "WaniKani",
	Format:    3,
	Revision:  "wanikani1",
	Sequenced: false,
}

// Entry is a named blob inside the archive.
type Entry struct {
	Name    string
	Content []byte
}

// BankName returns the entry name of a bank page, e.g. kanji_bank_3.json.
func BankName(bank string, page int) string {
	return fmt.Sprintf("%s_bank_%d.json", bank, page)
}

// Builder accumulates entries for a single archive.
type Builder struct {
	manifest  Manifest
	entries   []Entry
	names     map[string]struct{}
	modified  time.Time
	finalized bool
}

// NewBuilder creates a builder for an archive with the given manifest.
func NewBuilder(m Manifest) *Builder {
	return &Builder{
		manifest: m,
		names:    make(map[string]struct{}),
		modified: time.Now(),
	}
}

// Add appends a data entry. Names must be unique and must not be the
// manifest name.
func (b *Builder) Add(name string, content []byte) error {
	if b.finalized {
		return ErrFinalized
	}
	if name == "" {
		return fmt.Errorf("entry name is required")
	}
	if name == ManifestName {
		return fmt.Errorf("%w: %s", ErrReservedName, name)
	}
	if _, exists := b.names[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, name)
	}

	b.names[name] = struct{}{}
	b.entries = append(b.entries, Entry{Name: name, Content: content})
	return nil
}

// AddJSON marshals v and appends it as a data entry.
func (b *Builder) AddJSON(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	return b.Add(name, data)
}

// Len returns the number of data entries, excluding the manifest.
func (b *Builder) Len() int {
	return len(b.entries)
}

// Names returns all entry names in archive order, manifest first.
func (b *Builder) Names() []string {
	names := make([]string, 0, len(b.entries)+1)
	names = append(names, ManifestName)
	for _, e := range b.entries {
		names = append(names, e.Name)
	}
	return names
}

// Finalize serializes the manifest and all entries into a ZIP archive.
// It can be called once; the builder rejects any use afterwards.
func (b *Builder) Finalize() ([]byte, error) {
	if b.finalized {
		return nil, ErrFinalized
	}
	b.finalized = true

	manifest, err := json.Marshal(b.manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	if err := b.write(zw, ManifestName, manifest); err != nil {
		return nil, err
	}
	for _, e := range b.entries {
		if err := b.write(zw, e.Name, e.Content); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}

	b.entries = nil
	b.names = nil
	return buf.Bytes(), nil
}

func (b *Builder) write(zw *zip.Writer, name string, content []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: b.modified,
	})
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	if _, err := w.Write(content); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	return nil
}
