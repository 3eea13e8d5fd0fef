package gemini

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mikeboe/filesearch-dashboard/pkg/filesearch"
	"google.golang.org/genai"
)

func toStore(s *genai.FileSearchStore) filesearch.Store {
	if s == nil {
		return filesearch.Store{}
	}
	return filesearch.Store{
		ID:               s.Name,
		DisplayName:      s.DisplayName,
		CreateTime:       s.CreateTime,
		ActiveDocuments:  s.ActiveDocumentsCount,
		PendingDocuments: s.PendingDocumentsCount,
		FailedDocuments:  s.FailedDocumentsCount,
		SizeBytes:        s.SizeBytes,
	}
}

func toDocument(storeID string, d *genai.Document) filesearch.Document {
	if d == nil {
		return filesearch.Document{StoreID: storeID}
	}
	return filesearch.Document{
		ID:         d.Name,
		Filename:   d.DisplayName,
		SizeBytes:  d.SizeBytes,
		MIMEType:   d.MIMEType,
		Status:     documentStatus(d.State),
		StoreID:    storeID,
		CreateTime: d.CreateTime,
		UpdateTime: d.UpdateTime,
	}
}

func documentStatus(state genai.DocumentState) filesearch.DocumentStatus {
	switch state {
	case genai.DocumentStateActive:
		return filesearch.StatusIndexed
	case genai.DocumentStateFailed:
		return filesearch.StatusFailed
	default:
		// pending and unspecified documents are still being processed
		return filesearch.StatusImporting
	}
}

// classify wraps err as a RemoteError and marks 404 responses as not found.
func classify(op string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return &filesearch.RemoteError{Op: op, Err: fmt.Errorf("%w: %s", filesearch.ErrNotFound, apiErr.Message)}
	}
	return filesearch.WrapRemote(op, err)
}

// operationError turns the status map of a finished operation into an error.
func operationError(status map[string]any) error {
	msg, _ := status["message"].(string)
	if msg == "" {
		msg = fmt.Sprintf("%v", status)
	}
	var code int
	switch v := status["code"].(type) {
	case float64:
		code = int(v)
	case int:
		code = v
	}
	// google.rpc.Code 5 is NOT_FOUND
	if code == 5 {
		return fmt.Errorf("%w: %s", filesearch.ErrNotFound, msg)
	}
	return errors.New(msg)
}
