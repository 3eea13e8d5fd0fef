package session

import (
	"context"

	"github.com/mikeboe/filesearch-dashboard/pkg/filesearch"
)

// FileInput is one local file to push into the active store.
type FileInput struct {
	Filename string
	Data     []byte
}

// FileResult is the outcome of one file of a batch. Document is nil when the
// upload itself failed.
type FileResult struct {
	Filename string               `json:"filename"`
	MIMEType string               `json:"mime_type"`
	Document *filesearch.Document `json:"document,omitempty"`
	Error    string               `json:"error,omitempty"`
	Err      error                `json:"-"`
}

// UploadAndIndex uploads data and imports it into the active store.
//
// An upload failure registers nothing. An import failure registers the
// document with status failed and returns it together with the error, so
// the caller can show it and upload the file again.
func (s *Session) UploadAndIndex(ctx context.Context, data []byte, filename string) (filesearch.Document, error) {
	store, err := s.requireActive()
	if err != nil {
		return filesearch.Document{}, err
	}

	doc := filesearch.Document{
		Filename:  filename,
		SizeBytes: int64(len(data)),
		MIMEType:  filesearch.GuessMIME(filename),
		Status:    filesearch.StatusUploading,
		StoreID:   store.ID,
	}

	s.Logger.Info("Uploading file", "file", filename, "mime_type", doc.MIMEType, "size", doc.SizeBytes)
	upload, err := s.Client.UploadFile(ctx, data, filename)
	if err != nil {
		s.Logger.Error("Upload failed", "file", filename, "error", err)
		return filesearch.Document{}, filesearch.WrapRemote("upload file", err)
	}
	doc.ID = upload.Name
	doc.Advance(filesearch.StatusImporting)

	s.Logger.Info("Importing file", "file", filename, "store", store.ID, "upload", upload.Name)
	imported, err := s.Client.ImportFile(ctx, store.ID, upload)
	if err != nil {
		doc.Advance(filesearch.StatusFailed)
		doc.Error = err.Error()
		s.documents = append(s.documents, doc)
		s.Logger.Error("Import failed", "file", filename, "store", store.ID, "error", err)
		return doc, filesearch.WrapRemote("import file", err)
	}

	if imported.ID != "" {
		doc.ID = imported.ID
	}
	if imported.SizeBytes > 0 {
		doc.SizeBytes = imported.SizeBytes
	}
	doc.CreateTime = imported.CreateTime
	doc.UpdateTime = imported.UpdateTime
	doc.Advance(filesearch.StatusIndexed)
	s.documents = append(s.documents, doc)

	s.Logger.Info("Indexed", "file", filename, "document", doc.ID)
	return doc, nil
}

// UploadBatch runs UploadAndIndex for each file in order. A failing file is
// recorded in its result and the batch moves on.
func (s *Session) UploadBatch(ctx context.Context, files []FileInput) ([]FileResult, error) {
	if _, err := s.requireActive(); err != nil {
		return nil, err
	}

	results := make([]FileResult, 0, len(files))
	for _, f := range files {
		res := FileResult{
			Filename: f.Filename,
			MIMEType: filesearch.GuessMIME(f.Filename),
		}

		doc, err := s.UploadAndIndex(ctx, f.Data, f.Filename)
		if doc.Status != "" {
			res.Document = &doc
		}
		if err != nil {
			res.Err = err
			res.Error = err.Error()
		}
		results = append(results, res)

		if s.OnUpload != nil {
			s.OnUpload(ctx, res)
		}
	}

	s.Logger.Info("Batch finished", "files", len(files))
	return results, nil
}
