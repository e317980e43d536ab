package store

import "time"

// Entry is a stored archive.
type Entry struct {
	// Data is the serialized archive.
	Data []byte `json:"data"`

	// Revision is the manifest revision of Data.
	Revision string `json:"revision"`

	// Size is len(Data) at save time.
	Size int `json:"size"`

	// CreatedAt is when the archive was saved.
	CreatedAt time.Time `json:"created_at"`
}

// Age returns how long ago the entry was saved.
func (e *Entry) Age() time.Duration {
	return time.Since(e.CreatedAt)
}

// valid reports whether the decoded entry is consistent.
func (e *Entry) valid() bool {
	return len(e.Data) > 0 && e.Size == len(e.Data)
}
