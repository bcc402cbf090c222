package handler

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"social-service/internal/apperror"
	"social-service/internal/pagination"
	"social-service/internal/storage"
)

const (
	maxMultipartMemory = 32 << 20
	maxAttachments     = 10
)

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

func parseMultipart(r *http.Request) error {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return apperror.BadRequest("Invalid multipart form")
	}
	return nil
}

// openFiles opens every upload under field. The returned closer releases them.
func openFiles(r *http.Request, field string, limit int) ([]storage.File, func(), error) {
	if r.MultipartForm == nil {
		return nil, func() {}, nil
	}
	headers := r.MultipartForm.File[field]
	if len(headers) > limit {
		return nil, func() {}, apperror.BadRequest("Too many files", apperror.Context{"field": field, "max": limit})
	}

	var opened []io.Closer
	closeAll := func() {
		for _, c := range opened {
			_ = c.Close()
		}
	}
	files := make([]storage.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, apperror.BadRequest("Unable to read uploaded file")
		}
		opened = append(opened, f)
		files = append(files, toStorageFile(fh, f))
	}
	return files, closeAll, nil
}

// openFile reads a single required upload.
func openFile(r *http.Request, field string) (storage.File, func(), error) {
	f, fh, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return storage.File{}, func() {}, apperror.BadRequest("No file uploaded")
		}
		return storage.File{}, func() {}, apperror.BadRequest("Invalid multipart form")
	}
	return toStorageFile(fh, f), func() { _ = f.Close() }, nil
}

func toStorageFile(fh *multipart.FileHeader, body io.Reader) storage.File {
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return storage.File{Name: fh.Filename, ContentType: contentType, Size: fh.Size, Body: body}
}

// formList reads a repeated form field, also accepting one comma separated value.
func formList(r *http.Request, field string) []string {
	var out []string
	for _, v := range r.MultipartForm.Value[field] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func formBool(r *http.Request, field string) (*bool, error) {
	v := r.FormValue(field)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, apperror.BadRequest("Validation Error", apperror.Context{
			"validationErrors": []FieldError{{Field: field, Message: field + " must be a boolean"}},
		})
	}
	return &b, nil
}

func pageParams(r *http.Request) pagination.Params {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return pagination.Params{Page: page, Limit: limit}.Normalize()
}
