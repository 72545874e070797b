// Package errkind classifies sync failures so callers can react to the
// class of a failure (and the CLI can pick an exit status) without parsing
// error strings.
package errkind

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// Kind is the class of a failure.
type Kind int

const (
	Unknown Kind = iota
	// NotFound covers a missing manifest, project root, template or declared source path.
	NotFound
	// Conflict covers a non-empty directory where a clean one is required,
	// a busy project lock, or two copy edges writing the same target.
	Conflict
	// InvalidData covers malformed manifests, build descriptions and paths.
	InvalidData
	// Network covers fetch transport failures and non-2xx responses.
	Network
	// ExternalTool covers a non-zero exit from git, gradlew or ninja.
	ExternalTool
	// Cancelled covers a declined interactive confirmation.
	Cancelled
)

var kindNames = map[Kind]string{
	Unknown:      "unknown",
	NotFound:     "not found",
	Conflict:     "conflict",
	InvalidData:  "invalid data",
	Network:      "network",
	ExternalTool: "external tool failure",
	Cancelled:    "cancelled",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error carries a Kind alongside the wrapped cause.
type Error struct {
	Kind Kind
	// Path is the file, URL or key the failure relates to, if any.
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Path != "" {
		if msg == "" {
			msg = e.Path
		} else {
			msg = fmt.Sprintf("%s '%s'", msg, e.Path)
		}
	}
	switch {
	case msg == "" && e.Err != nil:
		return e.Err.Error()
	case msg == "":
		return e.Kind.String()
	case e.Err != nil:
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind from a format string.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and a message to err. It returns nil if err is nil.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// WithPath attaches a kind and the path the failure relates to.
func WithPath(kind Kind, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Path: path, Err: err}
}

// maxToolOutput bounds how much subprocess output is kept in an error.
const maxToolOutput = 2048

// Tool reports a failed subprocess. The tail of its combined output is kept
// for diagnosis. A failure caused by a cancelled context is Cancelled.
func Tool(ctx context.Context, name string, err error, output []byte) error {
	if err == nil {
		return nil
	}
	if ctx != nil && ctx.Err() != nil {
		return &Error{Kind: Cancelled, Msg: name + " interrupted", Err: ctx.Err()}
	}
	out := strings.TrimSpace(string(output))
	if len(out) > maxToolOutput {
		out = "..." + out[len(out)-maxToolOutput:]
	}
	if out == "" {
		return &Error{Kind: ExternalTool, Msg: name + " failed", Err: err}
	}
	return &Error{Kind: ExternalTool, Msg: name + " failed", Err: fmt.Errorf("%w: %s", err, out)}
}

// KindOf returns the first Kind found in the error chain. Bare filesystem
// errors are classified as well, so os.Stat failures do not need wrapping.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != Unknown {
		return e.Kind
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return NotFound
	case errors.Is(err, fs.ErrExist):
		return Conflict
	case errors.Is(err, context.Canceled):
		return Cancelled
	}
	return Unknown
}

// Is reports whether err is of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case NotFound:
		return 2
	case Conflict:
		return 3
	case InvalidData:
		return 4
	case Network:
		return 5
	case ExternalTool:
		return 6
	case Cancelled:
		return 130
	}
	return 1
}
