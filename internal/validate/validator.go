// Package validate decides whether a source document is processed at all.
package validate

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/ppiankov/nesach/internal/textnorm"
)

// Kind separates rejections of the object itself from rejections of its text
type Kind string

const (
	KindInput   Kind = "input"
	KindContent Kind = "content"
)

var (
	ErrNotPDF    = errors.New("not a pdf")
	ErrTooSmall  = errors.New("object too small to be a valid pdf")
	ErrNoText    = errors.New("no text found in pdf (possible scanned file)")
	ErrNotHebrew = errors.New("no hebrew detected in text")
)

// RejectionError reports why a document was refused before extraction
type RejectionError struct {
	Kind   Kind
	Err    error
	Detail string
}

func (e *RejectionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s rejected: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s rejected: %v (%s)", e.Kind, e.Err, e.Detail)
}

func (e *RejectionError) Unwrap() error { return e.Err }

// IsRejection reports whether err is a RejectionError and returns it
func IsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// Input checks the key and head size before anything is downloaded
func Input(key string, size, minBytes int64) error {
	if !strings.EqualFold(path.Ext(key), ".pdf") {
		return &RejectionError{Kind: KindInput, Err: ErrNotPDF, Detail: "key does not end with .pdf: " + key}
	}
	if size < minBytes {
		return &RejectionError{Kind: KindInput, Err: ErrTooSmall, Detail: fmt.Sprintf("%d bytes, minimum %d", size, minBytes)}
	}
	return nil
}

var pdfMagic = []byte("%PDF-")

// Header checks the downloaded bytes carry a PDF signature within the first
// kilobyte, where readers tolerate leading junk
func Header(data []byte) error {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if !bytes.Contains(head, pdfMagic) {
		return &RejectionError{Kind: KindInput, Err: ErrNotPDF, Detail: "missing %PDF- header"}
	}
	return nil
}

// Content checks the sampled text is present and contains Hebrew
func Content(sample string) error {
	if strings.TrimSpace(sample) == "" {
		return &RejectionError{Kind: KindContent, Err: ErrNoText}
	}
	if !textnorm.HasHebrew(sample) {
		return &RejectionError{Kind: KindContent, Err: ErrNotHebrew}
	}
	return nil
}
