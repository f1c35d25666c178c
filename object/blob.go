package object

import (
	"fmt"
	"io"

	"github.com/bluestreak/bgit/plumbing"
)

// Blob is an opaque byte payload; unlike the other three kinds it has no
// internal structure to decode, only a size and a reader.
type Blob struct {
	Hash plumbing.ObjectID
	Size int64

	obj plumbing.EncodedObject
}

func (b *Blob) ID() plumbing.ObjectID     { return b.Hash }
func (b *Blob) Type() plumbing.ObjectType { return plumbing.BlobObject }

// Decode records o's identity and size; the payload is streamed lazily from
// Reader rather than materialized here.
func (b *Blob) Decode(o plumbing.EncodedObject) error {
	if o.Type() != plumbing.BlobObject {
		return fmt.Errorf("%w: %s", ErrUnsupportedObject, o.Type())
	}
	b.Hash = o.ID()
	b.Size = o.Size()
	b.obj = o
	return nil
}

// Reader streams the blob's raw bytes.
func (b *Blob) Reader() (io.ReadCloser, error) {
	return b.obj.Reader()
}
