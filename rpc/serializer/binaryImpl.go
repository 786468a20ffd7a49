package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/sysrepo-go/sysrepod/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency.
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary
// format: a fixed header (MsgType, a 16-bit presence-flags word, SessionID,
// Flags, Target, Direction, Ok, Durable) followed by each present
// variable-length field in a fixed order, length-prefixed.
type binarySerializerImpl struct{}

// Bit flags to indicate which optional fields are present.
const (
	hasModule     uint16 = 1 << 0
	hasPath       uint16 = 1 << 1
	hasValue      uint16 = 1 << 3
	hasValues     uint16 = 1 << 4
	hasOwner      uint16 = 1 << 5
	hasEvent      uint16 = 1 << 6
	hasErr        uint16 = 1 << 7
	hasErrs       uint16 = 1 << 8
	hasMeta       uint16 = 1 << 9
	hasIterHandle uint16 = 1 << 10
	hasPaths      uint16 = 1 << 11
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	var flags uint16
	if msg.Module != "" {
		flags |= hasModule
	}
	if msg.Path != "" {
		flags |= hasPath
	}
	if msg.Value != nil {
		flags |= hasValue
	}
	if len(msg.Values) > 0 {
		flags |= hasValues
	}
	if len(msg.Owner) > 0 {
		flags |= hasOwner
	}
	if msg.Event != "" {
		flags |= hasEvent
	}
	if msg.Err != "" {
		flags |= hasErr
	}
	if len(msg.Errs) > 0 {
		flags |= hasErrs
	}
	if len(msg.Meta) > 0 {
		flags |= hasMeta
	}
	if msg.IterHandle != "" {
		flags |= hasIterHandle
	}
	if len(msg.Paths) > 0 {
		flags |= hasPaths
	}

	buf := newByteWriter(64)
	buf.u8(byte(msg.MsgType))
	buf.u16(flags)
	buf.u64(msg.SessionID)
	buf.u8(msg.Flags)
	buf.u8(msg.Target)
	buf.u8(msg.Direction)
	buf.boolean(msg.Ok)
	buf.boolean(msg.Durable)

	if flags&hasModule != 0 {
		buf.str(msg.Module)
	}
	if flags&hasPath != 0 {
		buf.str(msg.Path)
	}
	if flags&hasValue != 0 {
		writeValue(buf, *msg.Value)
	}
	if flags&hasValues != 0 {
		buf.u32(uint32(len(msg.Values)))
		for _, v := range msg.Values {
			writeValue(buf, v)
		}
	}
	if flags&hasOwner != 0 {
		buf.bytes(msg.Owner)
	}
	if flags&hasEvent != 0 {
		buf.str(msg.Event)
	}
	if flags&hasErr != 0 {
		buf.str(msg.Err)
	}
	if flags&hasErrs != 0 {
		buf.u32(uint32(len(msg.Errs)))
		for _, e := range msg.Errs {
			buf.str(e)
		}
	}
	if flags&hasMeta != 0 {
		buf.bytes(msg.Meta)
	}
	if flags&hasIterHandle != 0 {
		buf.str(msg.IterHandle)
	}
	if flags&hasPaths != 0 {
		buf.u32(uint32(len(msg.Paths)))
		for _, p := range msg.Paths {
			buf.str(p)
		}
	}
	return buf.bytesOut(), nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	r := newByteReader(data)
	msgType, err := r.u8()
	if err != nil {
		return fmt.Errorf("read msg type: %w", err)
	}
	flags, err := r.u16()
	if err != nil {
		return fmt.Errorf("read flags: %w", err)
	}
	sessionID, err := r.u64()
	if err != nil {
		return fmt.Errorf("read session id: %w", err)
	}
	editFlags, err := r.u8()
	if err != nil {
		return fmt.Errorf("read edit flags: %w", err)
	}
	target, err := r.u8()
	if err != nil {
		return fmt.Errorf("read target: %w", err)
	}
	direction, err := r.u8()
	if err != nil {
		return fmt.Errorf("read direction: %w", err)
	}
	ok, err := r.boolean()
	if err != nil {
		return fmt.Errorf("read ok: %w", err)
	}
	durable, err := r.boolean()
	if err != nil {
		return fmt.Errorf("read durable: %w", err)
	}

	*msg = common.Message{
		MsgType:   common.MessageType(msgType),
		SessionID: sessionID,
		Flags:     editFlags,
		Target:    target,
		Direction: direction,
		Ok:        ok,
		Durable:   durable,
	}

	if flags&hasModule != 0 {
		if msg.Module, err = r.str(); err != nil {
			return fmt.Errorf("read module: %w", err)
		}
	}
	if flags&hasPath != 0 {
		if msg.Path, err = r.str(); err != nil {
			return fmt.Errorf("read path: %w", err)
		}
	}
	if flags&hasValue != 0 {
		v, err := readValue(r)
		if err != nil {
			return fmt.Errorf("read value: %w", err)
		}
		msg.Value = &v
	}
	if flags&hasValues != 0 {
		n, err := r.u32()
		if err != nil {
			return fmt.Errorf("read values length: %w", err)
		}
		msg.Values = make([]common.Value, n)
		for i := range msg.Values {
			v, err := readValue(r)
			if err != nil {
				return fmt.Errorf("read values[%d]: %w", i, err)
			}
			msg.Values[i] = v
		}
	}
	if flags&hasOwner != 0 {
		if msg.Owner, err = r.bytes(); err != nil {
			return fmt.Errorf("read owner: %w", err)
		}
	}
	if flags&hasEvent != 0 {
		if msg.Event, err = r.str(); err != nil {
			return fmt.Errorf("read event: %w", err)
		}
	}
	if flags&hasErr != 0 {
		if msg.Err, err = r.str(); err != nil {
			return fmt.Errorf("read err: %w", err)
		}
	}
	if flags&hasErrs != 0 {
		n, err := r.u32()
		if err != nil {
			return fmt.Errorf("read errs length: %w", err)
		}
		msg.Errs = make([]string, n)
		for i := range msg.Errs {
			if msg.Errs[i], err = r.str(); err != nil {
				return fmt.Errorf("read errs[%d]: %w", i, err)
			}
		}
	}
	if flags&hasMeta != 0 {
		if msg.Meta, err = r.bytes(); err != nil {
			return fmt.Errorf("read meta: %w", err)
		}
	}
	if flags&hasIterHandle != 0 {
		if msg.IterHandle, err = r.str(); err != nil {
			return fmt.Errorf("read iter handle: %w", err)
		}
	}
	if flags&hasPaths != 0 {
		n, err := r.u32()
		if err != nil {
			return fmt.Errorf("read paths length: %w", err)
		}
		msg.Paths = make([]string, n)
		for i := range msg.Paths {
			if msg.Paths[i], err = r.str(); err != nil {
				return fmt.Errorf("read paths[%d]: %w", i, err)
			}
		}
	}
	return nil
}

func writeValue(buf *byteWriter, v common.Value) {
	buf.u8(v.Type)
	buf.str(v.Str)
	buf.bytes(v.Bin)
	buf.boolean(v.Bool)
	buf.i64(v.Int)
	buf.u64(v.Uint)
	buf.i64(v.Mantissa)
	buf.u8(v.Scale)
}

func readValue(r *byteReader) (common.Value, error) {
	var v common.Value
	var err error
	if v.Type, err = r.u8(); err != nil {
		return v, err
	}
	if v.Str, err = r.str(); err != nil {
		return v, err
	}
	if v.Bin, err = r.bytes(); err != nil {
		return v, err
	}
	if v.Bool, err = r.boolean(); err != nil {
		return v, err
	}
	if v.Int, err = r.i64(); err != nil {
		return v, err
	}
	if v.Uint, err = r.u64(); err != nil {
		return v, err
	}
	if v.Mantissa, err = r.i64(); err != nil {
		return v, err
	}
	if v.Scale, err = r.u8(); err != nil {
		return v, err
	}
	return v, nil
}

// --------------------------------------------------------------------------
// byteWriter / byteReader — small length-prefixed primitive helpers so the
// flag-driven field list above doesn't have to hand-roll bounds checks for
// every field the way the original single-struct version did.
// --------------------------------------------------------------------------

type byteWriter struct {
	buf []byte
}

func newByteWriter(hint int) *byteWriter { return &byteWriter{buf: make([]byte, 0, hint)} }

func (w *byteWriter) bytesOut() []byte { return w.buf }

func (w *byteWriter) u8(b byte)  { w.buf = append(w.buf, b) }
func (w *byteWriter) u16(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}
func (w *byteWriter) u32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}
func (w *byteWriter) u64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}
func (w *byteWriter) i64(v int64) { w.u64(uint64(v)) }
func (w *byteWriter) boolean(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}
func (w *byteWriter) bytes(b []byte) {
	w.u32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}
func (w *byteWriter) str(s string) { w.bytes([]byte(s)) }

type byteReader struct {
	buf []byte
	pos int
}

func newByteReader(b []byte) *byteReader { return &byteReader{buf: b} }

func (r *byteReader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return fmt.Errorf("unexpected end of message")
	}
	return nil
}

func (r *byteReader) u8() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}
func (r *byteReader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}
func (r *byteReader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}
func (r *byteReader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}
func (r *byteReader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}
func (r *byteReader) boolean() (bool, error) {
	v, err := r.u8()
	return v != 0, err
}
func (r *byteReader) bytes() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return out, nil
}
func (r *byteReader) str() (string, error) {
	b, err := r.bytes()
	return string(b), err
}
