package core

import "errors"

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrExtraction        = errors.New("text extraction failed")
	ErrEmbedding         = errors.New("embedding request failed")
	ErrTransport         = errors.New("completion request failed")
	ErrToolArgument      = errors.New("malformed tool call")
	ErrDimension         = errors.New("embedding dimension mismatch")
	ErrQueueUnavailable  = errors.New("ingestion queue unavailable")

	ErrSessionNotFound = errors.New("session not found")
	ErrSessionBusy     = errors.New("session is already answering")
)
