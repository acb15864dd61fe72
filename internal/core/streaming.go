package core

// streaming.go holds the io.Reader wrappers applied to uploaded CSV files
// before they reach encoding/csv:
//
//   - bomReader drops the UTF-8 byte order mark spreadsheet exports prepend
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?'
//   - limitedReader fails with ErrFileTooLarge past a byte budget
//
// WrapCSVReader applies them in that order.

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ErrFileTooLarge is returned once a file exceeds the import size limit.
var ErrFileTooLarge = errors.New("file too large")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WrapCSVReader prepares r for CSV parsing. maxBytes <= 0 disables the limit.
func WrapCSVReader(r io.Reader, maxBytes int64) io.Reader {
	if maxBytes > 0 {
		r = &limitedReader{r: r, remaining: maxBytes, limit: maxBytes}
	}
	return newUTF8Sanitizer(newBOMReader(r))
}

type bomReader struct {
	br      *bufio.Reader
	checked bool
}

func newBOMReader(r io.Reader) *bomReader {
	return &bomReader{br: bufio.NewReader(r)}
}

func (r *bomReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true
		head, err := r.br.Peek(len(utf8BOM))
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		if bytes.Equal(head, utf8BOM) {
			_, _ = r.br.Discard(len(utf8BOM))
		}
	}
	return r.br.Read(p)
}

// utf8Sanitizer replaces invalid UTF-8 bytes with '?'. A multi-byte
// sequence split across two reads of the source is carried over instead of
// being treated as invalid.
type utf8Sanitizer struct {
	r     io.Reader
	in    []byte
	carry int
	out   []byte
	err   error
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r, in: make([]byte, 4096)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	for len(s.out) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		s.fill()
	}
	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

func (s *utf8Sanitizer) fill() {
	n, err := s.r.Read(s.in[s.carry:])
	s.err = err
	data := s.in[:s.carry+n]
	final := err != nil

	out := s.out[:0]
	i := 0
	for i < len(data) {
		c := data[i]
		if c < utf8.RuneSelf {
			out = append(out, c)
			i++
			continue
		}
		if !final && !utf8.FullRune(data[i:]) {
			break
		}
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			out = append(out, '?')
			i++
			continue
		}
		out = append(out, data[i:i+size]...)
		i += size
	}
	s.carry = copy(s.in, data[i:])
	s.out = out
}

type limitedReader struct {
	r         io.Reader
	remaining int64
	limit     int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		// probe one byte to tell "exactly at the limit" from "over it"
		var probe [1]byte
		n, err := l.r.Read(probe[:])
		if n > 0 {
			return 0, fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, l.limit)
		}
		return 0, err
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	return n, err
}
