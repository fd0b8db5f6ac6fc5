package blob

import (
	fsstore "github.com/TatyanaKovaleva/rethinkdb/internal/infra/blob/fs"
)

// NewFilesystem returns a filesystem-backed archive store rooted at root.
func NewFilesystem(root string) (Store, error) {
	return fsstore.New(root)
}
