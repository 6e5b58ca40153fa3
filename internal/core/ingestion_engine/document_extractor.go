package ingestion_engine

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
	log "github.com/sirupsen/logrus"

	"github.com/markdave123-py/ragchat/internal/core"
	"github.com/markdave123-py/ragchat/internal/models"
)

var _ core.DocumentExtractor = (*DocconvExtractor)(nil)

// DocconvExtractor implements core.DocumentExtractor using sajari/docconv.
type DocconvExtractor struct {
	useReadability bool
}

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

// ParseFormat maps a format tag or a file name/extension to a models.Format.
func ParseFormat(tagOrName string) (models.Format, error) {
	s := strings.ToLower(strings.TrimSpace(tagOrName))
	if ext := filepath.Ext(s); ext != "" {
		s = ext
	}
	switch strings.TrimPrefix(s, ".") {
	case "text", "txt", "md", "markdown", "text/plain", "text/markdown":
		return models.FormatText, nil
	case "pdf", "application/pdf":
		return models.FormatPDF, nil
	case "html", "htm", "text/html":
		return models.FormatHTML, nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, tagOrName)
}

// Extract returns the document text. Text passes through verbatim; pdf and html
// are converted with docconv and have whitespace runs collapsed to single spaces.
func (e *DocconvExtractor) Extract(data []byte, format models.Format, source string) (*models.Document, error) {
	var (
		text string
		err  error
	)

	switch format {
	case models.FormatText:
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%w: %s is not valid UTF-8", core.ErrExtraction, source)
		}
		text = string(data)
	case models.FormatPDF:
		text, _, err = docconv.ConvertPDF(bytes.NewReader(data))
	case models.FormatHTML:
		text, _, err = docconv.ConvertHTML(bytes.NewReader(data), e.useReadability)
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, format)
	}
	if err != nil {
		log.Warnf("docconv: extraction failed for %s (%s): %v", source, format, err)
		return nil, fmt.Errorf("%w: %s: %w", core.ErrExtraction, source, err)
	}

	if format != models.FormatText {
		text = normalizeWhitespace(text)
		if text == "" {
			log.Warnf("docconv: extracted empty text for %s (%s)", source, format)
		}
	}

	return &models.Document{Source: source, Format: format, Text: text}, nil
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
