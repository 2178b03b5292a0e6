// Package extract converts raw file bytes into plain text, dispatching on
// the lowercased filename extension.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var ErrInvalidEncoding = errors.New("content is not valid UTF-8")

type Kind string

const (
	KindPDF      Kind = "pdf"
	KindDOCX     Kind = "docx"
	KindMarkdown Kind = "markdown"
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindOther    Kind = "other"
)

var kinds = map[string]Kind{
	".pdf":      KindPDF,
	".docx":     KindDOCX,
	".md":       KindMarkdown,
	".markdown": KindMarkdown,
	".txt":      KindText,
	".jpg":      KindImage,
	".jpeg":     KindImage,
	".png":      KindImage,
	".gif":      KindImage,
	".bmp":      KindImage,
	".webp":     KindImage,
}

// Ext returns the lowercased extension of filename, including the dot.
func Ext(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

func KindOf(filename string) Kind {
	kind, ok := kinds[Ext(filename)]
	if !ok {
		return KindOther
	}

	return kind
}

// Extract returns the text of a file. Failures are returned to the caller;
// ingestion treats them as fatal for the document.
func Extract(data []byte, filename string) (string, error) {
	switch KindOf(filename) {
	case KindPDF:
		return extractPDF(data)

	case KindDOCX:
		return extractDOCX(data)

	case KindMarkdown:
		return extractMarkdown(data)

	case KindText:
		if !utf8.Valid(data) {
			return "", ErrInvalidEncoding
		}

		return string(data), nil

	case KindImage:
		return imagePlaceholder(filename), nil

	default:
		if !utf8.Valid(data) {
			return binaryPlaceholder(filename), nil
		}

		return string(data), nil
	}
}

// View is the content-viewing variant of Extract: it never fails and
// degrades to a message embedding the failure reason.
func View(data []byte, filename string) string {
	text, err := Extract(data, filename)
	if err != nil {
		return "Error reading file content: " + err.Error()
	}

	return text
}

func imagePlaceholder(filename string) string {
	return fmt.Sprintf("[Image file: %s]\nImage content cannot be displayed as text.", filename)
}

func binaryPlaceholder(filename string) string {
	return fmt.Sprintf("[Binary file: %s]\nContent cannot be displayed as text.", filename)
}
