// Copyright 2015 Google Inc. All Rights Reserved.
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

// Package perms implements the POSIX three-class permission check and
// the sticky-bit check (component F), plus discovery of the mounting
// process's own uid/gid.
package perms

import (
	"os/user"
	"strconv"
	"syscall"
)

// MyUserAndGroup returns the uid/gid of the process running the
// daemon, used as the default owner of the root inode at bootstrap.
func MyUserAndGroup() (uid uint32, gid uint32, err error) {
	u, err := user.Current()
	if err != nil {
		return 0, 0, err
	}

	uidN, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return 0, 0, err
	}

	gidN, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return 0, 0, err
	}

	return uint32(uidN), uint32(gidN), nil
}

// Access bits, as named in the original spec's check_perm contract.
const (
	Read    = 0o4
	Write   = 0o2
	Execute = 0o1
)

// CheckPerm implements the classical POSIX three-class (owner/group/
// other) permission check over mode. want is a bitmask of Read/Write/
// Execute. Root (uid 0) always passes.
func CheckPerm(uid, gid, fileUID, fileGID uint32, mode uint32, want uint32) bool {
	if uid == 0 {
		return true
	}

	var shift uint32
	switch {
	case uid == fileUID:
		shift = 6
	case gid == fileGID:
		shift = 3
	default:
		shift = 0
	}

	bits := (mode >> shift) & 0o7
	return bits&want == want
}

// CheckStickyBit implements the original spec's check_sticky_bit:
// a directory with mode bit 01000 set restricts rename/unlink of its
// entries to root, the directory owner, or the entry's own owner.
// Returns true (permitted) unless all three conditions hold, in which
// case it returns false and the caller should surface EACCES.
func CheckStickyBit(ctxUID, parentMode, parentUID, childUID uint32) bool {
	if parentMode&0o1000 == 0 {
		return true
	}
	if ctxUID == 0 {
		return true
	}
	if ctxUID == parentUID {
		return true
	}
	if ctxUID == childUID {
		return true
	}
	return false
}

// ToErrno maps a permission-check result to an errno: EACCES, unless
// ok is true.
func ToErrno(ok bool) syscall.Errno {
	if ok {
		return 0
	}
	return syscall.EACCES
}
