package extractor

import (
	"errors"
	"fmt"
	"net"
)

var errHTMLBody = errors.New("server answered with an HTML page")

// ErrorCode classifies errors that leave the pipeline
type ErrorCode string

const (
	CodeInput    ErrorCode = "input"
	CodeNetwork  ErrorCode = "network"
	CodeNotFound ErrorCode = "not_found"
)

// Coder is implemented by every error the pipeline returns to its caller
type Coder interface {
	error
	Code() ErrorCode
}

// InputError means the submitted text contained no URL. No network call is
// made when it is returned.
type InputError struct {
	Text string
}

func (e *InputError) Error() string {
	return "no URL found in input text"
}

func (e *InputError) Code() ErrorCode { return CodeInput }

// NetworkError wraps a failed redirect resolution or markup fetch
type NetworkError struct {
	Op     string // "resolve" or "fetch"
	URL    string
	Status int // HTTP status when the server answered
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Op, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Code() ErrorCode { return CodeNetwork }

// Timeout reports whether the underlying failure was a timeout
func (e *NetworkError) Timeout() bool {
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// NoCandidatesError means every strategy came back empty. The content may be
// gone or may need a logged-in session.
type NoCandidatesError struct {
	TargetURL string
	Platform  Platform
}

func (e *NoCandidatesError) Error() string {
	return fmt.Sprintf("no media found at %s", e.TargetURL)
}

func (e *NoCandidatesError) Code() ErrorCode { return CodeNotFound }

// DecodeError is one failed loose decoding attempt. It never leaves the decoder.
type DecodeError struct {
	Step string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Step, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ProbeError is a failed reachability probe. It never leaves the selector.
type ProbeError struct {
	URL    string
	Status int
	Err    error
}

func (e *ProbeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("probe %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("probe %s: status %d", e.URL, e.Status)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// CodeOf returns the code of a pipeline error, or "" for anything else
func CodeOf(err error) ErrorCode {
	var c Coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}
