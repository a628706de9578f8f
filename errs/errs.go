// Package errs holds the sentinel errors shared by the resolution packages.
package errs

import (
	"errors"
)

var (
	// ErrUnsupportedStart indicates a balanced scan was asked to start on
	// something other than '[' or '{'.
	ErrUnsupportedStart = errors.New("unsupported start character")
	// ErrUnbalancedBrackets indicates the text ended before the opening bracket was closed.
	ErrUnbalancedBrackets = errors.New("unbalanced brackets")
	// ErrAnchorNotFound indicates a fixed anchor substring is missing from the player bundle.
	ErrAnchorNotFound = errors.New("anchor not found")
	// ErrExtractionFailed indicates a routine could not be extracted from the player bundle.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrEvaluationFailed indicates an extracted routine did not produce a string.
	ErrEvaluationFailed = errors.New("evaluation failed")
	// ErrTokenGrammarMismatch indicates the fallback grammars found nothing to decode.
	ErrTokenGrammarMismatch = errors.New("token grammar mismatch")
	// ErrIndexOutOfRange indicates a token referenced a position outside the signature.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrCipherFailed indicates failure during signature deciphering.
	ErrCipherFailed = errors.New("cipher failed")
	// ErrPlayerFetch indicates the player bundle or watch page could not be retrieved.
	ErrPlayerFetch = errors.New("player fetch failed")
	// ErrNoFormat indicates no resolved format satisfied the selector.
	ErrNoFormat = errors.New("no suitable format")
)
