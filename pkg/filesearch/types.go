package filesearch

import (
	"encoding/json"
	"time"
)

// Store is a remote File Search store.
type Store struct {
	ID               string    `json:"id"`
	DisplayName      string    `json:"display_name"`
	CreateTime       time.Time `json:"create_time"`
	ActiveDocuments  int64     `json:"active_documents"`
	PendingDocuments int64     `json:"pending_documents"`
	FailedDocuments  int64     `json:"failed_documents"`
	SizeBytes        int64     `json:"size_bytes"`
}

// DocumentStatus is the import/index state of a document.
type DocumentStatus string

const (
	StatusUploading DocumentStatus = "uploading"
	StatusImporting DocumentStatus = "importing"
	StatusIndexed   DocumentStatus = "indexed"
	StatusFailed    DocumentStatus = "failed"
)

func (s DocumentStatus) rank() int {
	switch s {
	case StatusUploading:
		return 0
	case StatusImporting:
		return 1
	case StatusIndexed, StatusFailed:
		return 2
	default:
		return -1
	}
}

// Terminal reports whether no further transition is possible.
func (s DocumentStatus) Terminal() bool {
	return s == StatusIndexed || s == StatusFailed
}

// CanAdvance reports whether moving from s to next is a forward transition.
func (s DocumentStatus) CanAdvance(next DocumentStatus) bool {
	if s.Terminal() || next.rank() < 0 {
		return false
	}
	return next.rank() > s.rank()
}

// Document is a single file inside a store.
type Document struct {
	ID         string         `json:"id"`
	Filename   string         `json:"filename"`
	SizeBytes  int64          `json:"size_bytes"`
	MIMEType   string         `json:"mime_type,omitempty"`
	Status     DocumentStatus `json:"status"`
	StoreID    string         `json:"store_id"`
	CreateTime time.Time      `json:"create_time,omitempty"`
	UpdateTime time.Time      `json:"update_time,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Advance moves the document to next. Backward or sideways moves are refused.
func (d *Document) Advance(next DocumentStatus) bool {
	if !d.Status.CanAdvance(next) {
		return false
	}
	d.Status = next
	return true
}

// UploadHandle references raw bytes already pushed to the remote service
// but not yet imported into a store.
type UploadHandle struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	MIMEType    string `json:"mime_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// AnswerRequest is everything the remote needs to generate a grounded answer.
type AnswerRequest struct {
	Model             string   `json:"model"`
	Query             string   `json:"query"`
	SystemInstruction string   `json:"system_instruction,omitempty"`
	StoreIDs          []string `json:"store_ids"`
}

// Answer is the model's reply plus the untouched remote payload.
type Answer struct {
	Text  string          `json:"text"`
	Model string          `json:"model"`
	Raw   json.RawMessage `json:"raw,omitempty"`
}
