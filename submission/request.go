package submission

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/tbxark/formstate/fieldpath"
	"github.com/tbxark/formstate/types"
)

// DefaultMaxMemory bounds how much of a request body ReadRequest buffers.
const DefaultMaxMemory = 32 << 20

// ErrBodyTooLarge is returned for a request body over DefaultMaxMemory.
var ErrBodyTooLarge = fmt.Errorf("request body exceeds %d bytes", DefaultMaxMemory)

// ParseQuery parses a urlencoded payload, keeping entry order.
func ParseQuery(raw string, opts ...Option) (*types.Submission, error) {
	entries, err := QueryEntries(raw)
	if err != nil {
		return nil, err
	}
	return Parse(entries, opts...)
}

// QueryEntries splits a urlencoded payload into ordered entries. Unlike
// url.ParseQuery it does not group values by name.
func QueryEntries(raw string) ([]fieldpath.Entry, error) {
	var entries []fieldpath.Entry
	for raw != "" {
		var pair string
		pair, raw, _ = strings.Cut(raw, "&")
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		name, err := url.QueryUnescape(key)
		if err != nil {
			return nil, fmt.Errorf("failed to unescape name %q: %w", key, err)
		}
		text, err := url.QueryUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("failed to unescape value of %q: %w", name, err)
		}
		entries = append(entries, fieldpath.Entry{Name: name, Value: text})
	}
	return entries, nil
}

// ReadRequest parses the form carried by r: the query string for GET and
// HEAD, a urlencoded or multipart body otherwise. File parts become
// types.Blob values.
func ReadRequest(r *http.Request, opts ...Option) (*types.Submission, error) {
	entries, err := RequestEntries(r)
	if err != nil {
		return nil, err
	}
	return Parse(entries, opts...)
}

func RequestEntries(r *http.Request) ([]fieldpath.Entry, error) {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return QueryEntries(r.URL.RawQuery)
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse content type: %w", err)
	}
	switch mediaType {
	case "application/x-www-form-urlencoded":
		body, err := io.ReadAll(io.LimitReader(r.Body, DefaultMaxMemory+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read form body: %w", err)
		}
		if len(body) > DefaultMaxMemory {
			return nil, ErrBodyTooLarge
		}
		return QueryEntries(string(body))
	case "multipart/form-data":
		return multipartEntries(r)
	default:
		return nil, fmt.Errorf("unsupported content type %q", mediaType)
	}
}

func multipartEntries(r *http.Request) ([]fieldpath.Entry, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("failed to open multipart body: %w", err)
	}
	var (
		entries []fieldpath.Entry
		budget  int64 = DefaultMaxMemory
	)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read multipart body: %w", err)
		}
		name := part.FormName()
		if name == "" {
			_ = part.Close()
			continue
		}
		data, err := io.ReadAll(io.LimitReader(part, budget+1))
		_ = part.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read part %q: %w", name, err)
		}
		budget -= int64(len(data))
		if budget < 0 {
			return nil, ErrBodyTooLarge
		}
		if filename := part.FileName(); filename != "" {
			entries = append(entries, fieldpath.Entry{Name: name, Value: types.Blob{
				Filename:    filename,
				ContentType: part.Header.Get("Content-Type"),
				Data:        data,
			}})
			continue
		}
		entries = append(entries, fieldpath.Entry{Name: name, Value: string(data)})
	}
}
