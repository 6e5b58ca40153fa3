package core

import (
	"github.com/markdave123-py/ragchat/internal/models"
)

// DocumentExtractor turns raw document bytes into flat text.
type DocumentExtractor interface {
	Extract(data []byte, format models.Format, source string) (*models.Document, error)
}
