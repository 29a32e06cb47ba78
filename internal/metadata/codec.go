// Package metadata serializes parameter bags into a printable annotation
// and back without loss.
//
// An annotation is the standard base64 text of a frame:
//
//	magic "WMSV" | version | flags | payload length (u32 BE) | CRC-32 IEEE (u32 BE) | payload
//
// Flag bit 0 marks a zlib-compressed payload. Length and CRC cover the stored
// payload bytes.
package metadata

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

const (
	// Keyword is the PNG text keyword annotations are stored under.
	Keyword = "wm_meta"
	// Schema tags bags written by the DWT-SVD pipeline.
	Schema = "dwtsvd/v1"
	// Version is the frame format version.
	Version byte = 1

	// ArrayTolerance is the largest per-value difference an array may show
	// after a round trip.
	ArrayTolerance = 0.0

	// MaxAnnotation is the largest annotation a PNG text chunk can carry:
	// the chunk length limit minus the keyword and its separator.
	MaxAnnotation = 1<<31 - 1 - len(Keyword) - 1

	magic     = "WMSV"
	headerLen = len(magic) + 1 + 1 + 4 + 4
	flagZlib  = 1 << 0
	// decompressed payloads larger than this are rejected
	maxInflated = 1 << 30
)

var (
	ErrMetadataNotFound = errors.New("metadata not found")
	ErrMetadataTooLarge = errors.New("metadata too large")
	ErrMetadataCorrupt  = errors.New("metadata corrupt")
	// ErrUnsupportedValue is returned by Encode for values the payload cannot hold.
	ErrUnsupportedValue = errors.New("unsupported metadata value")
)

// Codec converts bags to annotations. The zero value is not usable; use NewCodec.
type Codec struct {
	maxSize  int
	compress bool
}

type Option func(*Codec)

// WithMaxSize caps the annotation length in bytes. n <= 0 or n above
// MaxAnnotation selects MaxAnnotation.
func WithMaxSize(n int) Option {
	return func(c *Codec) {
		if n <= 0 || n > MaxAnnotation {
			n = MaxAnnotation
		}
		c.maxSize = n
	}
}

// WithCompression toggles zlib compression of the payload. It is on by default.
func WithCompression(on bool) Option {
	return func(c *Codec) {
		c.compress = on
	}
}

func NewCodec(opts ...Option) *Codec {
	c := &Codec{maxSize: MaxAnnotation, compress: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) MaxSize() int {
	return c.maxSize
}

// Encode serializes bag into annotation text.
func (c *Codec) Encode(bag Bag) (string, error) {
	payload, err := encodeBag(nil, bag, 0)
	if err != nil {
		return "", err
	}

	var flags byte
	if c.compress {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			return "", err
		}
		if err := zw.Close(); err != nil {
			return "", err
		}
		if buf.Len() < len(payload) {
			payload = buf.Bytes()
			flags |= flagZlib
		}
	}

	frameLen := headerLen + len(payload)
	if n := base64.StdEncoding.EncodedLen(frameLen); n > c.maxSize || uint64(len(payload)) > 1<<32-1 {
		return "", fmt.Errorf("%w: annotation of %d bytes exceeds %d", ErrMetadataTooLarge, n, c.maxSize)
	}

	frame := make([]byte, 0, frameLen)
	frame = append(frame, magic...)
	frame = append(frame, Version, flags)
	frame = binary.BigEndian.AppendUint32(frame, uint32(len(payload)))
	frame = binary.BigEndian.AppendUint32(frame, crc32.ChecksumIEEE(payload))
	frame = append(frame, payload...)
	return base64.StdEncoding.EncodeToString(frame), nil
}

// Decode parses annotation text produced by Encode.
func (c *Codec) Decode(text string) (Bag, error) {
	if text == "" {
		return nil, ErrMetadataNotFound
	}
	if len(text) > c.maxSize {
		return nil, fmt.Errorf("%w: annotation of %d bytes exceeds %d", ErrMetadataTooLarge, len(text), c.maxSize)
	}
	frame, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w:%w", ErrMetadataCorrupt, err)
	}
	if len(frame) < headerLen {
		return nil, fmt.Errorf("%w: frame of %d bytes is shorter than its header", ErrMetadataCorrupt, len(frame))
	}
	if string(frame[:len(magic)]) != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrMetadataCorrupt, frame[:len(magic)])
	}
	h := frame[len(magic):]
	if h[0] != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMetadataCorrupt, h[0])
	}
	flags := h[1]
	if flags&^flagZlib != 0 {
		return nil, fmt.Errorf("%w: unknown flags %#x", ErrMetadataCorrupt, flags)
	}
	length := binary.BigEndian.Uint32(h[2:6])
	sum := binary.BigEndian.Uint32(h[6:10])
	payload := frame[headerLen:]
	if uint64(len(payload)) != uint64(length) {
		return nil, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrMetadataCorrupt, len(payload), length)
	}
	if crc32.ChecksumIEEE(payload) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrMetadataCorrupt)
	}

	if flags&flagZlib != 0 {
		zr, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("%w:%w", ErrMetadataCorrupt, err)
		}
		payload, err = io.ReadAll(io.LimitReader(zr, maxInflated+1))
		if err != nil {
			return nil, fmt.Errorf("%w:%w", ErrMetadataCorrupt, err)
		}
		if len(payload) > maxInflated {
			return nil, fmt.Errorf("%w: inflated payload exceeds %d bytes", ErrMetadataTooLarge, maxInflated)
		}
	}

	d := &decoder{buf: payload}
	v, err := d.value(0)
	if err != nil {
		return nil, err
	}
	bag, ok := v.(Bag)
	if !ok {
		return nil, fmt.Errorf("%w: top level value is %T", ErrMetadataCorrupt, v)
	}
	if d.pos != len(d.buf) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMetadataCorrupt, len(d.buf)-d.pos)
	}
	return bag, nil
}
