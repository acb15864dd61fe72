package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// errBadRequest marks malformed input caught before it reaches the service.
var errBadRequest = errors.New("bad request")

// maxJSONBody caps admin JSON payloads.
const maxJSONBody = 1 << 20

// multipartOverhead is allowed on top of a file's own size limit.
const multipartOverhead = 64 << 10

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// idParam parses a positive integer route parameter.
func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, raw)
	}
	return id, nil
}

// decodeJSON reads a JSON body into v. Unknown fields are rejected for typed
// targets so a misspelt form field is not silently dropped.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.UseNumber()
	if _, isMap := v.(*map[string]any); !isMap {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	return nil
}

// formFile opens the named multipart file, bounding the whole request body
// to maxSize plus form overhead.
func formFile(w http.ResponseWriter, r *http.Request, field string, maxSize int64, tooLarge error) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, nil, fmt.Errorf("%w: limit is %d bytes", tooLarge, maxSize)
		}
		return nil, nil, fmt.Errorf("%w: invalid form: %v", errBadRequest, err)
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: no file provided", errBadRequest)
	}
	return file, header, nil
}
