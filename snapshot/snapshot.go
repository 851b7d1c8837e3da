// Package snapshot serializes index state into compressed, self-describing
// frames that can be written to any io.Writer or blobstore backend.
//
// A snapshot is a small header (magic, format version, codec) followed by a
// gob stream, optionally compressed with zstd (better ratio) or lz4
// (faster). The codec is recorded in the header, so readers need no
// out-of-band configuration.
package snapshot

import (
	"bufio"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/sqvec/sqvec/blobstore"
)

// Codec identifies the compression applied to the snapshot body.
type Codec uint8

const (
	// CodecNone stores the gob stream uncompressed.
	CodecNone Codec = 0
	// CodecZstd compresses with zstd at the default level.
	CodecZstd Codec = 1
	// CodecLZ4 compresses with lz4 block streaming.
	CodecLZ4 Codec = 2
)

const formatVersion = 1

var magic = [4]byte{'S', 'Q', 'V', 'S'}

var (
	// ErrBadMagic is returned when the input is not a snapshot.
	ErrBadMagic = errors.New("snapshot: bad magic")
	// ErrUnsupportedVersion is returned for snapshots written by a newer
	// format revision.
	ErrUnsupportedVersion = errors.New("snapshot: unsupported format version")
)

// Write serializes v to w as a snapshot frame.
// v must be gob-encodable.
func Write(w io.Writer, v any, codec Codec) error {
	header := []byte{magic[0], magic[1], magic[2], magic[3], formatVersion, byte(codec)}
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("snapshot: write header: %w", err)
	}

	switch codec {
	case CodecNone:
		return encodeBody(w, v, nil)
	case CodecZstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		return encodeBody(zw, v, zw.Close)
	case CodecLZ4:
		lw := lz4.NewWriter(w)
		return encodeBody(lw, v, lw.Close)
	default:
		return fmt.Errorf("snapshot: unknown codec %d", codec)
	}
}

func encodeBody(w io.Writer, v any, closeFn func() error) error {
	if err := gob.NewEncoder(w).Encode(v); err != nil {
		if closeFn != nil {
			_ = closeFn()
		}
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	if closeFn != nil {
		return closeFn()
	}
	return nil
}

// Read restores a snapshot frame from r into v.
// v must be a pointer to a gob-decodable value of the written type.
func Read(r io.Reader, v any) error {
	br := bufio.NewReader(r)

	header := make([]byte, 6)
	if _, err := io.ReadFull(br, header); err != nil {
		return fmt.Errorf("snapshot: read header: %w", err)
	}

	if [4]byte(header[:4]) != magic {
		return ErrBadMagic
	}
	if header[4] != formatVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, header[4])
	}

	switch Codec(header[5]) {
	case CodecNone:
		return decodeBody(br)(v)
	case CodecZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return err
		}
		defer zr.Close()
		return decodeBody(zr)(v)
	case CodecLZ4:
		return decodeBody(lz4.NewReader(br))(v)
	default:
		return fmt.Errorf("snapshot: unknown codec %d", header[5])
	}
}

func decodeBody(r io.Reader) func(any) error {
	dec := gob.NewDecoder(r)
	return func(v any) error {
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("snapshot: decode: %w", err)
		}
		return nil
	}
}

// Save writes a snapshot of v to the named blob, streaming the compressed
// frame through the store's writable blob.
func Save(ctx context.Context, store blobstore.BlobStore, name string, v any, codec Codec) error {
	wb, err := store.Create(ctx, name)
	if err != nil {
		return err
	}

	if err := Write(wb, v, codec); err != nil {
		_ = wb.Close()
		return err
	}

	return wb.Close()
}

// Load restores a snapshot of v from the named blob.
func Load(ctx context.Context, store blobstore.BlobStore, name string, v any) error {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return err
	}
	defer blob.Close()

	r, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return err
	}
	defer r.Close()

	return Read(r, v)
}
