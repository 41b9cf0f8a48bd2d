package decode

import (
	"encoding/binary"
	"io"
)

// codeReader tracks the current byte offset while reading from the
// method body's code array, mirroring the role wagon's leb128 readers
// play for wasm/leb128/read.go — one function per fixed-width encoding
// the bytecode stream uses, big-endian per the class file format
// instead of WASM's LEB128.
type codeReader struct {
	buf []byte
	pos int
}

func newCodeReader(code []byte) *codeReader {
	return &codeReader{buf: code}
}

func (r *codeReader) offset() int { return r.pos }

func (r *codeReader) len() int { return len(r.buf) }

func (r *codeReader) readU1() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, io.EOF
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *codeReader) readU2() (uint16, error) {
	if r.pos+2 > len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *codeReader) readU4() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *codeReader) readI1() (int8, error) {
	b, err := r.readU1()
	return int8(b), err
}

func (r *codeReader) readI2() (int16, error) {
	v, err := r.readU2()
	return int16(v), err
}

func (r *codeReader) readI4() (int32, error) {
	v, err := r.readU4()
	return int32(v), err
}

func (r *codeReader) skip(n int) error {
	if r.pos+n > len(r.buf) {
		return io.ErrUnexpectedEOF
	}
	r.pos += n
	return nil
}

// alignPad consumes the padding bytes TABLESWITCH/LOOKUPSWITCH require
// to bring the reader to a 4-byte-aligned offset relative to the start
// of the method body (§4.1 Switch).
func (r *codeReader) alignPad() error {
	for (r.pos)%4 != 0 {
		if _, err := r.readU1(); err != nil {
			return err
		}
	}
	return nil
}
