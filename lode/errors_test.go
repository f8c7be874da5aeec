package lode

import (
	"errors"
	"io/fs"
	"syscall"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"context deadline exceeded", ErrTimeout},
		{"AccessDenied: you do not have access", ErrAccessDenied},
		{"received status 403", ErrAccessDenied},
		{"open /data/rows: permission denied", ErrPermissionDenied},
		{"write /data/rows: no space left on device", ErrDiskFull},
		{"NoSuchKey: The specified key does not exist", ErrNotFound},
		{"SlowDown: please reduce request rate", ErrThrottled},
		{"ExpiredToken: the security token has expired", ErrAuth},
		{"dial tcp 127.0.0.1:9000: connection refused", ErrNetwork},
		{"something completely unexpected happened", ErrUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := classifyError(errors.New(tt.msg)); !errors.Is(got, tt.want) {
				t.Errorf("classifyError(%q) = %v, want %v", tt.msg, got, tt.want)
			}
		})
	}

	if got := classifyError(nil); got != nil {
		t.Errorf("classifyError(nil) = %v, want nil", got)
	}
}

func TestWrapWriteError(t *testing.T) {
	if WrapWriteError(nil, "p") != nil {
		t.Error("nil error must stay nil")
	}

	cause := errors.New("write /data: no space left on device")
	err := WrapWriteError(cause, "engine=e/day=d/run_id=r")

	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StorageError, got %T", err)
	}
	if se.Op != "write" || se.Path != "engine=e/day=d/run_id=r" {
		t.Errorf("StorageError = %+v", se)
	}
	if !errors.Is(err, ErrDiskFull) {
		t.Error("expected ErrDiskFull kind")
	}
	if !errors.Is(err, cause) {
		t.Error("cause must stay in the chain")
	}
}

func TestClassifyError_TypedCauses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"missing file", &fs.PathError{Op: "open", Path: "/data/403/rows", Err: syscall.ENOENT}, ErrNotFound},
		{"unreadable file", &fs.PathError{Op: "open", Path: "/data/rows", Err: syscall.EACCES}, ErrPermissionDenied},
		{"full disk", &fs.PathError{Op: "write", Path: "/data/rows", Err: syscall.ENOSPC}, ErrDiskFull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyError(tt.err); !errors.Is(got, tt.want) {
				t.Errorf("classifyError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestStorageError_Message(t *testing.T) {
	err := NewStorageError(ErrNotFound, "read", "sparring/snapshots", errors.New("gone"))
	if got, want := err.Error(), "read sparring/snapshots: not found: gone"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	bare := NewStorageError(ErrAuth, "init", "", errors.New("no creds"))
	if got, want := bare.Error(), "init: authentication failed: no creds"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
