package model

import "time"

// Document describes a stored file in the document store.
// The content itself is never held here; it is streamed to and from storage.
type Document struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Extension string    `json:"extension"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"mod_time"`
}
