package util

import "errors"

var (
	ErrNoExtractableText = errors.New("no extractable text found in input document")
	ErrUnsupportedInput  = errors.New("unsupported input document type")
	ErrInvalidRunID      = errors.New("invalid run id")
)
