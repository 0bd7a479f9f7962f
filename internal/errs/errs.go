// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errs implements the error taxonomy from §7: a closed set of
// error kinds the metadata layer can return, each translating to a
// specific POSIX errno (or to EIO) at the FUSE adapter boundary.
package errs

import (
	"fmt"
	"syscall"

	"github.com/pkg/errors"
)

// Kind is one of the five error classes named in §7.
type Kind int

const (
	// KindPosix is user-visible and surfaced to the kernel verbatim.
	KindPosix Kind = iota
	// KindInconsistentFS means an invariant from §3 was violated.
	KindInconsistentFS
	// KindTransactionConflict means the KV runner exhausted its retries.
	KindTransactionConflict
	// KindBackendError means the S3/KV transport failed after local retries.
	KindBackendError
	// KindConfigError means a configuration or request is rejected outright.
	KindConfigError
)

// Error is the single error type the metadata layer returns; every
// non-nil error surfaced above internal/kv, internal/objstore, or
// internal/metaops is an *Error.
type Error struct {
	Kind  Kind
	Errno syscall.Errno
	Op    string
	Ino   uint64
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Errno)
}

func (e *Error) Unwrap() error { return e.cause }

// ToErrno returns the syscall.Errno this error surfaces to the kernel.
func (e *Error) ToErrno() syscall.Errno {
	switch e.Kind {
	case KindPosix, KindConfigError:
		return e.Errno
	default:
		return syscall.EIO
	}
}

// Posix builds a user-visible PosixError for errno, during op.
func Posix(op string, errno syscall.Errno) *Error {
	return &Error{Kind: KindPosix, Errno: errno, Op: op}
}

// Inconsistent builds an InconsistentFS error: an invariant from §3
// was violated. Always surfaces as EIO.
func Inconsistent(op string, ino uint64, cause error) *Error {
	return &Error{
		Kind:  KindInconsistentFS,
		Errno: syscall.EIO,
		Op:    op,
		Ino:   ino,
		cause: errors.Wrapf(cause, "inconsistent filesystem state at inode %d in %s", ino, op),
	}
}

// TxnRetryExceeded builds the error the KV runner returns after its
// 5th conflicting retry.
func TxnRetryExceeded(op string) *Error {
	return &Error{
		Kind:  KindTransactionConflict,
		Errno: syscall.EIO,
		Op:    op,
		cause: errors.Errorf("%s: exceeded transaction retry limit", op),
	}
}

// Backend wraps a KV/S3/cache transport failure that has exhausted
// its own local retries.
func Backend(op string, cause error) *Error {
	return &Error{
		Kind:  KindBackendError,
		Errno: syscall.EIO,
		Op:    op,
		cause: errors.Wrapf(cause, "backend error in %s", op),
	}
}

// Config builds a ConfigError/Unsupported error, e.g. mknod of an
// unsupported node kind.
func Config(op string, errno syscall.Errno, msg string) *Error {
	return &Error{
		Kind:  KindConfigError,
		Errno: errno,
		Op:    op,
		cause: errors.Errorf("%s: %s", op, msg),
	}
}

// IsConflict reports whether err is the optimistic-concurrency
// conflict internal/kv signals for a single txn attempt (not yet the
// retry-exceeded terminal error).
type ConflictError struct{ Op string }

func (c *ConflictError) Error() string { return fmt.Sprintf("%s: transaction conflict", c.Op) }

func IsConflict(err error) bool {
	_, ok := err.(*ConflictError)
	return ok
}
