package lode

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
)

// Storage failure kinds, matched with errors.Is.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrDiskFull         = errors.New("no space left on device")
	ErrTimeout          = errors.New("operation timed out")
	// ErrThrottled is rate limiting by the object store (429, SlowDown).
	ErrThrottled = errors.New("rate limited")
	// ErrAuth is missing or rejected credentials.
	ErrAuth = errors.New("authentication failed")
	// ErrAccessDenied is valid credentials without permission on the bucket.
	ErrAccessDenied = errors.New("access denied")
	ErrNetwork      = errors.New("network error")
	ErrUnclassified = errors.New("storage error")
)

// StorageError is a classified failure of a dataset operation. The cause
// stays in the chain for errors.As; Kind matches through errors.Is.
type StorageError struct {
	Kind error
	// Op is "write", "read" or "init".
	Op string
	// Path is the dataset path or partition involved, if any.
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	where := e.Op
	if e.Path != "" {
		where += " " + e.Path
	}
	return fmt.Sprintf("%s: %v: %v", where, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// NewStorageError creates a classified storage error.
func NewStorageError(kind error, op, path string, err error) *StorageError {
	return &StorageError{Kind: kind, Op: op, Path: path, Err: err}
}

// WrapWriteError classifies a failed row or sidecar write. Returns nil if
// err is nil.
func WrapWriteError(err error, path string) error {
	return wrap("write", path, err)
}

// WrapReadError classifies a failed snapshot or file read. Returns nil if
// err is nil.
func WrapReadError(err error, path string) error {
	return wrap("read", path, err)
}

// WrapInitError classifies a failed dataset or store setup. Returns nil if
// err is nil.
func WrapInitError(err error, dataset string) error {
	return wrap("init", dataset, err)
}

func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewStorageError(classifyError(err), op, path, err)
}

// errorRule maps a failure to a kind by the typed causes found in the chain
// or by lower-case message fragments. Typed causes are checked for every
// rule before any message is matched.
type errorRule struct {
	kind      error
	causes    []error
	fragments []string
}

// errorRules are tried in order. Bucket-level denials go before generic
// permission failures because S3 reports both with "access denied" wording.
var errorRules = []errorRule{
	{kind: ErrAccessDenied, fragments: []string{"accessdenied", "forbidden", "403"}},
	{kind: ErrPermissionDenied, causes: []error{os.ErrPermission},
		fragments: []string{"permission denied", "eacces", "access denied"}},
	{kind: ErrNotFound, causes: []error{os.ErrNotExist},
		fragments: []string{"no such file", "does not exist", "not found", "enoent", "404", "nosuchkey"}},
	{kind: ErrDiskFull, causes: []error{syscall.ENOSPC},
		fragments: []string{"no space left", "disk full", "enospc", "quota exceeded"}},
	{kind: ErrTimeout, causes: []error{os.ErrDeadlineExceeded},
		fragments: []string{"timeout", "timed out", "deadline exceeded"}},
	{kind: ErrThrottled, fragments: []string{"slowdown", "rate exceeded", "throttl", "429", "toomanyrequests"}},
	{kind: ErrAuth, fragments: []string{"nocredentialproviders", "credentials", "invalidaccesskeyid",
		"signaturedoesnotmatch", "expiredtoken", "401", "unauthorized"}},
	{kind: ErrNetwork, fragments: []string{"connection refused", "no route to host", "network unreachable",
		"dns", "dial tcp"}},
}

func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return ErrTimeout
	}

	for _, rule := range errorRules {
		for _, cause := range rule.causes {
			if errors.Is(err, cause) {
				return rule.kind
			}
		}
	}
	msg := strings.ToLower(err.Error())
	for _, rule := range errorRules {
		for _, frag := range rule.fragments {
			if strings.Contains(msg, frag) {
				return rule.kind
			}
		}
	}
	return ErrUnclassified
}
