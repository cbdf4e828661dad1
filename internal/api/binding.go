package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jogardn/laptop-store/pkg/models"
)

var (
	errInvalidBody  = errors.New("invalid request body")
	errUploadFailed = errors.New("upload failed")
)

// bindPatch decodes a JSON, urlencoded or multipart body into a patch. An
// absent body yields the zero patch so callers can reject it as empty.
// fromForm converts form values for the non-JSON encodings.
func bindPatch[P any](r *http.Request, maxBytes int64, fromForm func(url.Values) (P, error)) (P, error) {
	var patch P

	mediaType := ""
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return patch, errInvalidBody
		}
		mediaType = mt
	}

	switch mediaType {
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			return patch, fmt.Errorf("%w: %v", errUploadFailed, err)
		}
		p, err := fromForm(url.Values(r.MultipartForm.Value))
		if err != nil {
			return patch, fmt.Errorf("%w: %v", errInvalidBody, err)
		}
		return p, nil

	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)
		if err := r.ParseForm(); err != nil {
			return patch, fmt.Errorf("%w: %v", errInvalidBody, err)
		}
		p, err := fromForm(r.PostForm)
		if err != nil {
			return patch, fmt.Errorf("%w: %v", errInvalidBody, err)
		}
		return p, nil

	case "", "application/json":
		dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBytes))
		if err := dec.Decode(&patch); err != nil {
			if errors.Is(err, io.EOF) {
				return patch, nil
			}
			return patch, fmt.Errorf("%w: %v", errInvalidBody, err)
		}
		return patch, nil

	default:
		return patch, errInvalidBody
	}
}

// formFile returns the named file part of a parsed multipart request.
func formFile(r *http.Request, field string) *multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return nil
	}
	return files[0]
}

// formReader pulls typed optional fields out of form values. The first
// conversion error sticks and is returned by err.
type formReader struct {
	values url.Values
	failed error
}

func (f *formReader) lookup(key string) (string, bool) {
	vs, ok := f.values[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

func (f *formReader) string(key string) *string {
	v, ok := f.lookup(key)
	if !ok {
		return nil
	}
	return &v
}

func (f *formReader) int(key string) *int {
	v, ok := f.lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		f.fail(key, err)
		return nil
	}
	return &n
}

func (f *formReader) int64(key string) *int64 {
	v, ok := f.lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		f.fail(key, err)
		return nil
	}
	return &n
}

func (f *formReader) decimal(key string) *decimal.Decimal {
	v, ok := f.lookup(key)
	if !ok {
		return nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		f.fail(key, err)
		return nil
	}
	return &d
}

func (f *formReader) date(key string) *models.Date {
	v, ok := f.lookup(key)
	if !ok {
		return nil
	}
	if v == "" {
		return &models.Date{}
	}
	d, err := models.ParseDate(v)
	if err != nil {
		f.fail(key, err)
		return nil
	}
	return &d
}

func (f *formReader) fail(key string, err error) {
	if f.failed == nil {
		f.failed = fmt.Errorf("field %s: %w", key, err)
	}
}

func (f *formReader) err() error {
	return f.failed
}
