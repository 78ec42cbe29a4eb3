package parser

import "fmt"

// ErrorKind classifies document-level parse failures.
type ErrorKind int

const (
	// Malformed means the bytes are not a usable PDF: no header, no
	// structure the resolver or the recovery scan could latch onto.
	Malformed ErrorKind = iota
	// Truncated means the file looks like a PDF that was cut short.
	Truncated
	// EncryptedUnsupported means the document declares /Encrypt.
	// Encrypted documents are rejected up front rather than half-parsed.
	EncryptedUnsupported
)

func (k ErrorKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case Truncated:
		return "truncated"
	case EncryptedUnsupported:
		return "encrypted_unsupported"
	}
	return "unknown"
}

// ParseError is the only error type Parse returns for document-level
// failures. Per-object failures never surface here; they land in
// Document.Malformed instead.
type ParseError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

func malformedErr(msg string, err error) *ParseError {
	return &ParseError{Kind: Malformed, Msg: msg, Err: err}
}

func truncatedErr(msg string, err error) *ParseError {
	return &ParseError{Kind: Truncated, Msg: msg, Err: err}
}
