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

package fsnode

import "github.com/nfsmeta/distfs/internal/kv"

// LookupPreCheck implements §4.C's chosen shared_file_attr_ref policy:
// pre-load once during lookup_pre_check. It loads the single entry's
// child attr block (rather than every sibling) so that a rename or
// unlink pre-check has the child's owner/mode in hand for the
// sticky-bit check without a second explicit KV read later in the
// same handler.
func LookupPreCheck(t kv.Txn, parent *Node, name string) (*DirEntry, *Node, error) {
	entry, ok := parent.Entries[name]
	if !ok {
		return nil, nil, nil
	}
	child, exists, err := Load(t, entry.Ino)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		return entry, nil, nil
	}
	attr := child.Attr
	entry.SharedAttr = &attr
	return entry, child, nil
}
