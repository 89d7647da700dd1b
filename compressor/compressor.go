// Package compressor compresses request and response bodies with gzip,
// deflate (zlib) or brotli, reusing writers and buffers across calls.
package compressor

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/cockroachdb/errors"
)

type ContentEncoding int

const (
	ContentEncodingGzip    ContentEncoding = 0
	ContentEncodingDeflate ContentEncoding = 1
	ContentEncodingBrotli  ContentEncoding = 2
	ContentEncodingPlain   ContentEncoding = 3
)

var (
	ErrUnknownContentEncoding = errors.New("[CALC] unknown content encoding")
	// ErrTooLarge is returned by DecompressLimit when the output exceeds its limit.
	ErrTooLarge = errors.New("[CALC] decompressed data too large")
)

// String returns the HTTP Content-Encoding token of e.
func (e ContentEncoding) String() string {
	switch e {
	case ContentEncodingGzip:
		return "gzip"
	case ContentEncodingDeflate:
		return "deflate"
	case ContentEncodingBrotli:
		return "br"
	case ContentEncodingPlain:
		return "identity"
	}
	return "unknown"
}

// ParseContentEncoding maps an HTTP Content-Encoding token to a ContentEncoding.
// The empty string is plain.
func ParseContentEncoding(s string) (ContentEncoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gzip", "x-gzip":
		return ContentEncodingGzip, nil
	case "deflate":
		return ContentEncodingDeflate, nil
	case "br":
		return ContentEncodingBrotli, nil
	case "", "identity":
		return ContentEncodingPlain, nil
	}
	return ContentEncodingPlain, errors.Wrapf(ErrUnknownContentEncoding, "%q", s)
}

// Negotiate picks the encoding for a response from an Accept-Encoding header.
// Preference is br, gzip, deflate. Codings with a q-value of 0 are refused;
// other q-values do not change the preference.
func Negotiate(acceptEncoding string) ContentEncoding {
	accepted := map[ContentEncoding]bool{}
	for _, part := range strings.Split(acceptEncoding, ",") {
		token, params, _ := strings.Cut(part, ";")
		if refused(params) {
			continue
		}
		if e, err := ParseContentEncoding(token); err == nil {
			accepted[e] = true
		}
	}

	for _, e := range []ContentEncoding{ContentEncodingBrotli, ContentEncodingGzip, ContentEncodingDeflate} {
		if accepted[e] {
			return e
		}
	}
	return ContentEncodingPlain
}

// refused reports whether the parameters of a coding carry q=0.
func refused(params string) bool {
	for _, param := range strings.Split(params, ";") {
		name, value, ok := strings.Cut(param, "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "q") {
			continue
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		return err == nil && q == 0
	}
	return false
}

type resetWriter interface {
	io.WriteCloser
	Reset(w io.Writer)
}

type CompressorManager struct {
	byteReaderPool   sync.Pool
	bufferPool       sync.Pool
	gzipWriterPool   sync.Pool
	zlibWriterPool   sync.Pool
	brotliWriterPool sync.Pool
}

func NewCompressorManager() *CompressorManager {
	return &CompressorManager{
		byteReaderPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewReader(nil)
			},
		},
		gzipWriterPool: sync.Pool{
			New: func() interface{} {
				return gzip.NewWriter(nil)
			},
		},
		zlibWriterPool: sync.Pool{
			New: func() interface{} {
				return zlib.NewWriter(nil)
			},
		},
		brotliWriterPool: sync.Pool{
			New: func() interface{} {
				return brotli.NewWriter(nil)
			},
		},
		bufferPool: sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}
}

// Compress compresses data with tp. A nil data stays nil.
func (c *CompressorManager) Compress(tp ContentEncoding, data []byte) ([]byte, error) {
	if data == nil {
		return nil, nil
	}

	switch tp {
	case ContentEncodingGzip:
		return c.GzipCompress(data)
	case ContentEncodingDeflate:
		return c.ZlibCompress(data)
	case ContentEncodingBrotli:
		return c.BrotliCompress(data)
	case ContentEncodingPlain:
		return data, nil
	default:
		return nil, ErrUnknownContentEncoding
	}
}

// Decompress reverses Compress. A nil data stays nil.
func (c *CompressorManager) Decompress(tp ContentEncoding, data []byte) ([]byte, error) {
	return c.DecompressLimit(tp, data, -1)
}

// DecompressLimit is Decompress that stops with ErrTooLarge once the output
// grows past limit bytes. A negative limit means no limit.
func (c *CompressorManager) DecompressLimit(tp ContentEncoding, data []byte, limit int64) ([]byte, error) {
	if data == nil {
		return nil, nil
	}

	switch tp {
	case ContentEncodingGzip:
		return c.decompress(data, newGzipReader, limit)
	case ContentEncodingDeflate:
		return c.decompress(data, zlib.NewReader, limit)
	case ContentEncodingBrotli:
		return c.decompress(data, newBrotliReader, limit)
	case ContentEncodingPlain:
		if limit >= 0 && int64(len(data)) > limit {
			return nil, ErrTooLarge
		}
		return data, nil
	default:
		return nil, ErrUnknownContentEncoding
	}
}

func (c *CompressorManager) GzipCompress(data []byte) ([]byte, error) {
	return c.compress(&c.gzipWriterPool, data)
}

func (c *CompressorManager) GzipDecompress(data []byte) ([]byte, error) {
	return c.decompress(data, newGzipReader, -1)
}

func (c *CompressorManager) ZlibCompress(data []byte) ([]byte, error) {
	return c.compress(&c.zlibWriterPool, data)
}

func (c *CompressorManager) ZlibDecompress(data []byte) ([]byte, error) {
	return c.decompress(data, zlib.NewReader, -1)
}

func (c *CompressorManager) BrotliCompress(data []byte) ([]byte, error) {
	return c.compress(&c.brotliWriterPool, data)
}

func (c *CompressorManager) BrotliDecompress(data []byte) ([]byte, error) {
	return c.decompress(data, newBrotliReader, -1)
}

func newGzipReader(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

func newBrotliReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(brotli.NewReader(r)), nil
}

func (c *CompressorManager) compress(pool *sync.Pool, data []byte) ([]byte, error) {
	writer := pool.Get().(resetWriter)
	defer pool.Put(writer)

	buf := c.bufferPool.Get().(*bytes.Buffer)
	defer c.bufferPool.Put(buf)

	buf.Reset()
	writer.Reset(buf)

	if _, err := writer.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	// buf goes back to the pool.
	return bytes.Clone(buf.Bytes()), nil
}

func (c *CompressorManager) decompress(data []byte, newReader func(io.Reader) (io.ReadCloser, error), limit int64) ([]byte, error) {
	byteReader := c.byteReaderPool.Get().(*bytes.Reader)
	defer c.byteReaderPool.Put(byteReader)
	byteReader.Reset(data)

	reader, err := newReader(byteReader)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	if limit < 0 {
		return io.ReadAll(reader)
	}

	out, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > limit {
		return nil, ErrTooLarge
	}
	return out, nil
}
