package packfile

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/pjbgf/sha1cd"
	"github.com/stretchr/testify/require"

	"github.com/bluestreak/bgit/plumbing"
)

// rawObj describes one object to place in a hand-built test pack. For a
// non-delta object, data is its literal payload. For an OFS_DELTA/REF_DELTA
// object, data is the already-assembled delta instruction stream (LEB128
// base size, LEB128 result size, then copy/insert ops) and ofsBack/refBase
// selects which kind of delta header to write.
type rawObj struct {
	typ     plumbing.ObjectType
	data    []byte
	ofsBack int64             // >0 selects OFS_DELTA, backward offset to base
	refBase plumbing.ObjectID // non-zero selects REF_DELTA
}

// buildPack serializes objs into a complete, correctly-trailered pack
// stream, returning the bytes and each object's starting offset in order.
func buildPack(t *testing.T, objs []rawObj) ([]byte, []int64) {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, uint32(len(objs))))

	offsets := make([]int64, len(objs))
	for i, o := range objs {
		offsets[i] = int64(buf.Len())

		typ := o.typ
		switch {
		case o.ofsBack > 0:
			typ = plumbing.OFSDeltaObject
		case !o.refBase.IsZero():
			typ = plumbing.REFDeltaObject
		}

		require.NoError(t, WriteObjectHeader(&buf, typ, int64(len(o.data))))

		switch {
		case o.ofsBack > 0:
			require.NoError(t, WriteOffsetDelta(&buf, o.ofsBack))
		case !o.refBase.IsZero():
			buf.Write(o.refBase[:])
		}

		zw := zlib.NewWriter(&buf)
		_, err := zw.Write(o.data)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
	}

	h := sha1cd.New()
	h.Write(buf.Bytes())
	buf.Write(h.Sum(nil))

	return buf.Bytes(), offsets
}

// simpleDelta builds a delta instruction stream that copies the whole of a
// srcSize-byte base, then appends insert as literal bytes.
func simpleDelta(srcSize int, insert []byte) []byte {
	var d []byte
	d = appendLEB128(d, uint64(srcSize))
	d = appendLEB128(d, uint64(srcSize+len(insert)))

	// copy(offset=0, size=srcSize): needs explicit size bytes since srcSize
	// may exceed one byte.
	cmd := byte(0x80)
	var sizeBytes []byte
	sz := srcSize
	for i, mask := range []byte{0x10, 0x20, 0x40} {
		b := byte((sz >> (8 * i)) & 0xff)
		if b != 0 || (i == 0 && sz == 0) {
			cmd |= mask
			sizeBytes = append(sizeBytes, b)
		}
	}
	d = append(d, cmd)
	d = append(d, sizeBytes...)

	for len(insert) > 0 {
		n := len(insert)
		if n > 127 {
			n = 127
		}
		d = append(d, byte(n))
		d = append(d, insert[:n]...)
		insert = insert[n:]
	}

	return d
}

func appendLEB128(b []byte, v uint64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b = append(b, c|0x80)
		} else {
			b = append(b, c)
			return b
		}
	}
}
