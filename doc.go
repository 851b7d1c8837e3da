// Package sqvec provides an embedded approximate nearest neighbor store
// built on symmetric int8 scalar quantization.
//
// Vectors are quantized to 1 byte per dimension plus a per-vector scale at
// insert time and all distance evaluation happens directly on the packed
// records, cutting memory roughly 4x against float32 storage.
//
// # Quick start
//
//	db, err := sqvec.New(128).
//	    SquaredL2().
//	    M(16).
//	    EF(200).
//	    Build()
//	if err != nil {
//	    panic(err)
//	}
//
//	id, err := db.Insert(vector)
//	results, err := db.Search(query, 10)
//
// For cosine-style ranking over normalized vectors use InnerProduct()
// instead of SquaredL2().
//
// Snapshots of a DB can be written through the snapshot package to any
// blobstore backend (local disk, S3, MinIO, in-memory).
package sqvec
