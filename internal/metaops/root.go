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

package metaops

import (
	"github.com/nfsmeta/distfs/internal/fsnode"
	"github.com/nfsmeta/distfs/internal/kv"
)

// Bootstrap implements component G: idempotent creation of the root
// inode on first mount. uid/gid are the mounting process's own
// identity, per internal/perms.MyUserAndGroup.
func Bootstrap(deps *Deps, uid, gid uint32) error {
	return kv.RunTxn(deps.Engine, "bootstrap", func(t kv.Txn) error {
		_, exists, err := fsnode.Load(t, fsnode.RootIno)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		root := &fsnode.Node{
			Ino:       fsnode.RootIno,
			Kind:      fsnode.KindDirectory,
			ParentIno: fsnode.RootIno,
			Name:      "/",
			Attr: fsnode.Attr{
				Mode: 0o755,
				UID:  uid,
				GID:  gid,
				Nlink: 2,
			},
		}
		return fsnode.Save(t, root)
	})
}
