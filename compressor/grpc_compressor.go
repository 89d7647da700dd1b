package compressor

import (
	"compress/zlib"
	"io"
	"sync"

	"github.com/andybalholm/brotli"
	"google.golang.org/grpc/encoding"
)

// Names of the gRPC compressors registered by this package.
const (
	BrotliName  = "br"
	DeflateName = "deflate"
)

func init() {
	encoding.RegisterCompressor(newGRPCCompressor(BrotliName,
		func() resetWriter { return brotli.NewWriter(nil) },
		func(r io.Reader) (io.Reader, error) { return brotli.NewReader(r), nil },
	))
	encoding.RegisterCompressor(newGRPCCompressor(DeflateName,
		func() resetWriter { return zlib.NewWriter(nil) },
		func(r io.Reader) (io.Reader, error) { return zlib.NewReader(r) },
	))
}

// grpcCompressor implements encoding.Compressor on top of pooled writers.
type grpcCompressor struct {
	name       string
	writerPool sync.Pool
	newReader  func(r io.Reader) (io.Reader, error)
}

func newGRPCCompressor(name string, newWriter func() resetWriter, newReader func(io.Reader) (io.Reader, error)) *grpcCompressor {
	return &grpcCompressor{
		name: name,
		writerPool: sync.Pool{
			New: func() interface{} {
				return &pooledWriter{resetWriter: newWriter()}
			},
		},
		newReader: newReader,
	}
}

type pooledWriter struct {
	resetWriter
	pool *sync.Pool
}

// Close flushes the compressed stream and returns the writer to its pool.
func (w *pooledWriter) Close() error {
	defer w.pool.Put(w)
	return w.resetWriter.Close()
}

func (c *grpcCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	pw := c.writerPool.Get().(*pooledWriter)
	pw.pool = &c.writerPool
	pw.Reset(w)
	return pw, nil
}

func (c *grpcCompressor) Decompress(r io.Reader) (io.Reader, error) {
	return c.newReader(r)
}

func (c *grpcCompressor) Name() string {
	return c.name
}
