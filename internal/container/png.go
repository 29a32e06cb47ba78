// Package container stores text annotations in PNG tEXt chunks without
// touching the image data.
package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"io"

	"github.com/yyyoichi/watermark_svd/internal/metadata"
)

// MaxChunkLen is the largest data length of a PNG chunk.
const MaxChunkLen = 1<<31 - 1

var (
	ErrNotPNG         = errors.New("not a PNG stream")
	ErrInvalidKeyword = errors.New("invalid tEXt keyword")
)

var signature = []byte("\x89PNG\r\n\x1a\n")

type chunk struct {
	typ   string
	data  []byte
	start int // offset of the length field
	end   int // offset just past the CRC
}

// Capacity returns the largest text a tEXt chunk under keyword can carry.
func Capacity(keyword string) int {
	return MaxChunkLen - len(keyword) - 1
}

// Encode writes img as PNG with text stored under keyword.
func Encode(w io.Writer, img image.Image, keyword, text string) error {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return err
	}
	out, err := Insert(buf.Bytes(), keyword, text)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// Insert returns a copy of the PNG stream with a tEXt chunk holding text
// placed before IEND. Existing tEXt chunks with the same keyword are dropped.
func Insert(stream []byte, keyword, text string) ([]byte, error) {
	if err := validKeyword(keyword); err != nil {
		return nil, err
	}
	if len(text) > Capacity(keyword) {
		return nil, fmt.Errorf("%w: %d bytes of text exceed the chunk capacity %d", metadata.ErrMetadataTooLarge, len(text), Capacity(keyword))
	}
	if i := bytes.IndexByte([]byte(text), 0); i >= 0 {
		return nil, fmt.Errorf("%w: NUL byte in text at %d", metadata.ErrMetadataCorrupt, i)
	}

	chunks, err := parse(stream)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(stream)+len(keyword)+len(text)+13)
	out = append(out, signature...)
	for _, c := range chunks {
		if c.typ == "tEXt" {
			if k, _, ok := splitText(c.data); ok && k == keyword {
				continue
			}
		}
		if c.typ == "IEND" {
			data := make([]byte, 0, len(keyword)+1+len(text))
			data = append(data, keyword...)
			data = append(data, 0)
			data = append(data, text...)
			out = appendChunk(out, "tEXt", data)
		}
		out = append(out, stream[c.start:c.end]...)
	}
	return out, nil
}

// Lookup returns the text of the first tEXt chunk under keyword.
// A missing chunk reports metadata.ErrMetadataNotFound.
func Lookup(stream []byte, keyword string) (string, error) {
	chunks, err := parse(stream)
	if err != nil {
		return "", err
	}
	for _, c := range chunks {
		if c.typ != "tEXt" {
			continue
		}
		k, text, ok := splitText(c.data)
		if ok && k == keyword {
			return text, nil
		}
	}
	return "", fmt.Errorf("%w: no tEXt chunk %q", metadata.ErrMetadataNotFound, keyword)
}

// Texts returns every tEXt chunk of the stream keyed by keyword.
func Texts(stream []byte) (map[string]string, error) {
	chunks, err := parse(stream)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, c := range chunks {
		if c.typ != "tEXt" {
			continue
		}
		if k, text, ok := splitText(c.data); ok {
			if _, seen := out[k]; !seen {
				out[k] = text
			}
		}
	}
	return out, nil
}

// parse splits stream into chunks up to and including IEND. tEXt chunks are
// checksummed; a bad one reports metadata.ErrMetadataCorrupt.
func parse(stream []byte) ([]chunk, error) {
	if !bytes.HasPrefix(stream, signature) {
		return nil, ErrNotPNG
	}
	var chunks []chunk
	pos := len(signature)
	for {
		if len(stream)-pos < 12 {
			return nil, fmt.Errorf("%w: truncated chunk at %d", ErrNotPNG, pos)
		}
		n := binary.BigEndian.Uint32(stream[pos:])
		if n > MaxChunkLen || uint64(n) > uint64(len(stream)-pos-12) {
			return nil, fmt.Errorf("%w: chunk at %d overruns the stream", ErrNotPNG, pos)
		}
		typ := string(stream[pos+4 : pos+8])
		data := stream[pos+8 : pos+8+int(n)]
		end := pos + 12 + int(n)
		if typ == "tEXt" {
			sum := binary.BigEndian.Uint32(stream[end-4:])
			if crc32.ChecksumIEEE(stream[pos+4:end-4]) != sum {
				return nil, fmt.Errorf("%w: tEXt chunk at %d fails its CRC", metadata.ErrMetadataCorrupt, pos)
			}
		}
		chunks = append(chunks, chunk{typ: typ, data: data, start: pos, end: end})
		pos = end
		if typ == "IEND" {
			return chunks, nil
		}
	}
}

func appendChunk(dst []byte, typ string, data []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(data)))
	start := len(dst)
	dst = append(dst, typ...)
	dst = append(dst, data...)
	return binary.BigEndian.AppendUint32(dst, crc32.ChecksumIEEE(dst[start:]))
}

// splitText separates "keyword NUL text". tEXt text is Latin-1; it is
// returned byte for byte, which is exact for the ASCII annotations stored here.
func splitText(data []byte) (string, string, bool) {
	i := bytes.IndexByte(data, 0)
	if i < 0 {
		return "", "", false
	}
	return string(data[:i]), string(data[i+1:]), true
}

// validKeyword enforces 1-79 printable Latin-1 bytes without leading,
// trailing or consecutive spaces.
func validKeyword(k string) error {
	if len(k) == 0 || len(k) > 79 {
		return fmt.Errorf("%w: length %d", ErrInvalidKeyword, len(k))
	}
	if k[0] == ' ' || k[len(k)-1] == ' ' {
		return fmt.Errorf("%w: %q has surrounding spaces", ErrInvalidKeyword, k)
	}
	for i := range len(k) {
		b := k[i]
		if (b < 32 || b > 126) && b < 161 {
			return fmt.Errorf("%w: %q has byte %#x", ErrInvalidKeyword, k, b)
		}
		if b == ' ' && i > 0 && k[i-1] == ' ' {
			return fmt.Errorf("%w: %q has consecutive spaces", ErrInvalidKeyword, k)
		}
	}
	return nil
}
