package enumstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/attrstore/codec"
	"github.com/hupe1980/attrstore/core"
)

// ErrCorruptStream indicates a serialized stream that does not decode
// cleanly to its end. Decoding proceeds until the input is exhausted, so a
// truncated or trailing-garbage stream surfaces here instead of silently
// producing a smaller store.
var ErrCorruptStream = errors.New("enumstore: corrupt stream")

// saveMagic identifies the framed Save format.
const saveMagic uint32 = 0x53544145 // "EATS" little endian

// appendValue encodes one value: fixed width little endian for numerics,
// uvarint length prefix plus bytes for strings.
func appendValue[T Value](dst []byte, v T) []byte {
	switch x := any(v).(type) {
	case int8:
		return append(dst, byte(x))
	case int16:
		return binary.LittleEndian.AppendUint16(dst, uint16(x))
	case int32:
		return binary.LittleEndian.AppendUint32(dst, uint32(x))
	case int64:
		return binary.LittleEndian.AppendUint64(dst, uint64(x))
	case float32:
		return binary.LittleEndian.AppendUint32(dst, math.Float32bits(x))
	case float64:
		return binary.LittleEndian.AppendUint64(dst, math.Float64bits(x))
	case string:
		dst = binary.AppendUvarint(dst, uint64(len(x)))
		return append(dst, x...)
	default:
		panic("enumstore: unreachable value type")
	}
}

// decodeValue decodes one value from the front of data, returning the value
// and the number of bytes consumed.
func decodeValue[T Value](data []byte) (T, int, error) {
	var v T
	need := func(n int) error {
		if len(data) < n {
			return fmt.Errorf("%w: need %d bytes, %d left", ErrCorruptStream, n, len(data))
		}
		return nil
	}
	switch p := any(&v).(type) {
	case *int8:
		if err := need(1); err != nil {
			return v, 0, err
		}
		*p = int8(data[0])
		return v, 1, nil
	case *int16:
		if err := need(2); err != nil {
			return v, 0, err
		}
		*p = int16(binary.LittleEndian.Uint16(data))
		return v, 2, nil
	case *int32:
		if err := need(4); err != nil {
			return v, 0, err
		}
		*p = int32(binary.LittleEndian.Uint32(data))
		return v, 4, nil
	case *int64:
		if err := need(8); err != nil {
			return v, 0, err
		}
		*p = int64(binary.LittleEndian.Uint64(data))
		return v, 8, nil
	case *float32:
		if err := need(4); err != nil {
			return v, 0, err
		}
		*p = math.Float32frombits(binary.LittleEndian.Uint32(data))
		return v, 4, nil
	case *float64:
		if err := need(8); err != nil {
			return v, 0, err
		}
		*p = math.Float64frombits(binary.LittleEndian.Uint64(data))
		return v, 8, nil
	case *string:
		l, n := binary.Uvarint(data)
		if n <= 0 {
			return v, 0, fmt.Errorf("%w: bad string length", ErrCorruptStream)
		}
		if uint64(len(data)-n) < l {
			return v, 0, fmt.Errorf("%w: string length %d exceeds %d remaining bytes", ErrCorruptStream, l, len(data)-n)
		}
		*p = string(data[n : n+int(l)])
		return v, n + int(l), nil
	default:
		panic("enumstore: unreachable value type")
	}
}

// SerializeValues writes the raw value stream in dictionary order. The
// stream carries no count header; decoding runs until the bytes are
// exhausted, so the caller must keep the exact range.
func (e *EnumStore[T]) SerializeValues(w io.Writer) error {
	var buf []byte
	e.NewEnumerator().ForEach(func(_ core.EntryRef, v T) bool {
		buf = appendValue(buf, v)
		return true
	})
	_, err := w.Write(buf)
	return err
}

// Deserialize resets the store from a raw value stream and returns the refs
// in stream order.
//
// It is two-pass: pass 1 decodes only to count values and validate the
// stream, the store is then reset to the exact capacity, and pass 2 decodes
// again into fresh storage, rebuilding the dictionary in bulk.
func (e *EnumStore[T]) Deserialize(data []byte) ([]core.EntryRef, error) {
	count := 0
	for off := 0; off < len(data); {
		_, n, err := decodeValue[T](data[off:])
		if err != nil {
			return nil, err
		}
		off += n
		count++
	}

	e.Reset(count)

	b := e.NewBuilder(count)
	refs := make([]core.EntryRef, 0, count)
	for off := 0; off < len(data); {
		v, n, err := decodeValue[T](data[off:])
		if err != nil {
			// Pass 1 validated the same bytes.
			return nil, err
		}
		refs = append(refs, b.Add(v))
		off += n
	}
	b.Build()

	e.logger.Info("enum store loaded", "values", count)
	return refs, nil
}

// Save writes a framed, self-describing snapshot: magic, codec name, sizes,
// then the codec-compressed value stream.
func (e *EnumStore[T]) Save(w io.Writer) error {
	var raw []byte
	e.NewEnumerator().ForEach(func(_ core.EntryRef, v T) bool {
		raw = appendValue(raw, v)
		return true
	})
	payload := e.codec.Compress(raw)

	header := binary.LittleEndian.AppendUint32(nil, saveMagic)
	header = binary.AppendUvarint(header, uint64(len(e.codec.Name())))
	header = append(header, e.codec.Name()...)
	header = binary.AppendUvarint(header, uint64(len(raw)))
	header = binary.AppendUvarint(header, uint64(len(payload)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// Load resets the store from a framed snapshot written by Save and returns
// the refs in stream order. The codec is resolved from the header, not from
// the store's configuration.
func (e *EnumStore[T]) Load(r io.Reader) ([]core.EntryRef, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) < 4 || binary.LittleEndian.Uint32(data) != saveMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptStream)
	}
	off := 4

	nameLen, n := binary.Uvarint(data[off:])
	if n <= 0 || uint64(len(data)-off-n) < nameLen {
		return nil, fmt.Errorf("%w: bad codec name", ErrCorruptStream)
	}
	off += n
	name := string(data[off : off+int(nameLen)])
	off += int(nameLen)

	cd, ok := codec.ByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown codec %q", ErrCorruptStream, name)
	}

	rawLen, n := binary.Uvarint(data[off:])
	if n <= 0 {
		return nil, fmt.Errorf("%w: bad raw length", ErrCorruptStream)
	}
	off += n
	payloadLen, n := binary.Uvarint(data[off:])
	if n <= 0 {
		return nil, fmt.Errorf("%w: bad payload length", ErrCorruptStream)
	}
	off += n
	if uint64(len(data)-off) != payloadLen {
		return nil, fmt.Errorf("%w: payload is %d bytes, header declared %d", ErrCorruptStream, len(data)-off, payloadLen)
	}

	raw, err := cd.Decompress(data[off:], int(rawLen))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptStream, err)
	}
	return e.Deserialize(raw)
}
