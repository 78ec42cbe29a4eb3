package server

import (
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// compression negotiates the response encoding from Accept-Encoding,
// preferring zstd over gzip. Responses pass through untouched when the
// client accepts neither.
func compression() gin.HandlerFunc {
	return func(c *gin.Context) {
		accepted := c.GetHeader("Accept-Encoding")
		var encoder io.WriteCloser
		var name string
		switch {
		case strings.Contains(accepted, "zstd"):
			zw, err := zstd.NewWriter(c.Writer)
			if err != nil {
				c.Next()
				return
			}
			encoder, name = zw, "zstd"
		case strings.Contains(accepted, "gzip"):
			encoder, name = gzip.NewWriter(c.Writer), "gzip"
		default:
			c.Next()
			return
		}

		c.Header("Content-Encoding", name)
		c.Header("Vary", "Accept-Encoding")
		cw := &compressedWriter{ResponseWriter: c.Writer, enc: encoder}
		c.Writer = cw
		defer encoder.Close()
		c.Next()
	}
}

type compressedWriter struct {
	gin.ResponseWriter
	enc io.WriteCloser
}

func (w *compressedWriter) Write(p []byte) (int, error) {
	return w.enc.Write(p)
}

func (w *compressedWriter) WriteString(s string) (int, error) {
	return w.enc.Write([]byte(s))
}
