package graph

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pattyshack/gt/stringutil"
)

// OutArchive writes little-endian primitives to a stream. Errors are
// sticky; callers check once at the end.
type OutArchive struct {
	writer io.Writer
	err    error
}

func NewOutArchive(writer io.Writer) *OutArchive {
	return &OutArchive{
		writer: writer,
	}
}

func (out *OutArchive) Err() error {
	return out.err
}

func (out *OutArchive) PutBytes(value []byte) {
	if out.err != nil {
		return
	}
	_, out.err = out.writer.Write(value)
}

func (out *OutArchive) PutByte(value byte) {
	out.PutBytes([]byte{value})
}

func (out *OutArchive) PutBool(value bool) {
	if value {
		out.PutByte(1)
	} else {
		out.PutByte(0)
	}
}

func (out *OutArchive) PutUint32(value uint32) {
	buffer := [4]byte{}
	binary.LittleEndian.PutUint32(buffer[:], value)
	out.PutBytes(buffer[:])
}

// PutInt32 writes a (possibly negative) offset as two's complement.
func (out *OutArchive) PutInt32(value int) {
	out.PutUint32(uint32(int32(value)))
}

func (out *OutArchive) PutString(value string) {
	out.PutUint32(uint32(len(value)))
	out.PutBytes([]byte(value))
}

// InArchive reads what OutArchive writes. Errors are sticky; once a
// read fails every later read returns the zero value. Repeated names
// are interned.
type InArchive struct {
	reader io.Reader
	pool   *stringutil.InternPool
	err    error
}

func NewInArchive(reader io.Reader) *InArchive {
	return &InArchive{
		reader: reader,
		pool:   stringutil.NewInternPool(),
	}
}

func (in *InArchive) Err() error {
	return in.err
}

func (in *InArchive) GetBytes(size uint32) []byte {
	if in.err != nil {
		return nil
	}

	buffer := make([]byte, size)
	_, err := io.ReadFull(in.reader, buffer)
	if err != nil {
		in.err = fmt.Errorf("truncated stream: %w", err)
		return nil
	}
	return buffer
}

func (in *InArchive) GetByte() byte {
	buffer := in.GetBytes(1)
	if buffer == nil {
		return 0
	}
	return buffer[0]
}

func (in *InArchive) GetBool() bool {
	return in.GetByte() != 0
}

func (in *InArchive) GetUint32() uint32 {
	buffer := in.GetBytes(4)
	if buffer == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(buffer)
}

func (in *InArchive) GetInt32() int {
	return int(int32(in.GetUint32()))
}

func (in *InArchive) GetString() string {
	size := in.GetUint32()
	buffer := in.GetBytes(size)
	if buffer == nil {
		return ""
	}
	return in.pool.Intern(string(buffer))
}
