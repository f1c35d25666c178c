package plumbing

import "io"

// EncodedObject is a handle to a single object's canonical (undeltified)
// byte representation. It is the contract C4/C5 hand back to C6: callers
// never see pack offsets or delta chains, only a type, a size and a way to
// read or fully materialize the payload.
type EncodedObject interface {
	ID() ObjectID
	Type() ObjectType
	Size() int64

	// Reader returns a stream of the canonical payload. The returned
	// ReadCloser must be closed by the caller.
	Reader() (io.ReadCloser, error)

	// Writer returns a sink that, once fully written and closed, makes
	// Reader/Bytes/ID reflect the written payload. Used when building an
	// object (e.g. materializing a delta's target).
	Writer() (io.WriteCloser, error)

	// SetSize overrides the declared size, used by writers that know the
	// final size ahead of streaming the payload (e.g. delta application).
	SetSize(int64)

	// SetType sets the object's type, used right after a storer hands out
	// a blank object via NewEncodedObject, before Encode/Writer fill it in.
	SetType(ObjectType)
}

// MemoryObject is the simplest EncodedObject: the whole payload lives in a
// byte slice. Used for objects built in memory (delta targets, objects
// authored by the caller before they are written to the store).
type MemoryObject struct {
	id   ObjectID
	typ  ObjectType
	size int64
	buf  []byte
}

func NewMemoryObject(t ObjectType, payload []byte) *MemoryObject {
	m := &MemoryObject{typ: t, buf: payload, size: int64(len(payload))}
	m.id = ComputeHash(t, payload)
	return m
}

func (m *MemoryObject) ID() ObjectID        { return m.id }
func (m *MemoryObject) Type() ObjectType    { return m.typ }
func (m *MemoryObject) Size() int64         { return m.size }
func (m *MemoryObject) SetSize(s int64)     { m.size = s }
func (m *MemoryObject) SetType(t ObjectType) { m.typ = t }
func (m *MemoryObject) Bytes() []byte       { return m.buf }

func (m *MemoryObject) Reader() (io.ReadCloser, error) {
	return io.NopCloser(&byteReader{buf: m.buf}), nil
}

func (m *MemoryObject) Writer() (io.WriteCloser, error) {
	m.buf = m.buf[:0]
	return &memoryWriter{m}, nil
}

type memoryWriter struct{ m *MemoryObject }

func (w *memoryWriter) Write(p []byte) (int, error) {
	w.m.buf = append(w.m.buf, p...)
	return len(p), nil
}

func (w *memoryWriter) Close() error {
	w.m.size = int64(len(w.m.buf))
	w.m.id = ComputeHash(w.m.typ, w.m.buf)
	return nil
}

type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.buf) {
		return 0, io.EOF
	}
	n := copy(p, r.buf[r.pos:])
	r.pos += n
	return n, nil
}
