package sqvec

import (
	"context"

	"github.com/sqvec/sqvec/blobstore"
	"github.com/sqvec/sqvec/resource"
	"github.com/sqvec/sqvec/snapshot"
)

// SaveSnapshot writes the full DB state to the named blob. The upload
// claims a background job slot and is throttled by the configured
// resource controller.
func (db *DB) SaveSnapshot(ctx context.Context, store blobstore.BlobStore, name string, codec snapshot.Codec) error {
	done, err := db.resources.BeginJob(ctx)
	if err != nil {
		return err
	}
	defer done()

	wb, err := store.Create(ctx, name)
	if err != nil {
		return err
	}

	w := resource.NewThrottledWriter(ctx, db.resources, wb)
	if err := snapshot.Write(w, db, codec); err != nil {
		_ = wb.Close()
		return err
	}

	if err := wb.Close(); err != nil {
		return err
	}

	db.logger.Debug("snapshot saved", "name", name, "codec", codec)
	return nil
}

// OpenSnapshot restores a DB from the named blob. The returned DB uses
// a no-op logger and no resource limits; configure both afterwards if
// needed.
func OpenSnapshot(ctx context.Context, store blobstore.BlobStore, name string) (*DB, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	r, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return nil, err
	}
	defer r.Close()

	db := new(DB)
	if err := snapshot.Read(r, db); err != nil {
		return nil, err
	}
	return db, nil
}
