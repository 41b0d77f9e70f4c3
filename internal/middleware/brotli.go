package middleware

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// minCompressSize is the smallest JSON body worth compressing. Student
// question lists and paper previews are usually far above it.
const minCompressSize = 1024

// compressWriter holds the whole body until the handler returns, then
// writes it either brotli-encoded or as-is depending on its size.
type compressWriter struct {
	gin.ResponseWriter
	body    bytes.Buffer
	quality int
}

func (w *compressWriter) Write(data []byte) (int, error) {
	return w.body.Write(data)
}

func (w *compressWriter) WriteString(s string) (int, error) {
	return w.body.WriteString(s)
}

func (w *compressWriter) finish() error {
	if w.body.Len() < minCompressSize {
		_, err := w.ResponseWriter.Write(w.body.Bytes())
		return err
	}

	h := w.ResponseWriter.Header()
	h.Set("Content-Encoding", "br")
	h.Del("Content-Length")

	bw := brotli.NewWriterLevel(w.ResponseWriter, w.quality)
	if _, err := bw.Write(w.body.Bytes()); err != nil {
		return err
	}
	return bw.Close()
}

// Brotli compresses JSON responses for clients that accept "br".
// WebSocket upgrades pass through untouched.
func Brotli(quality int) gin.HandlerFunc {
	if quality < brotli.BestSpeed || quality > brotli.BestCompression {
		quality = brotli.DefaultCompression
	}

	return func(c *gin.Context) {
		if isUpgrade(c.Request) || !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")
		cw := &compressWriter{ResponseWriter: c.Writer, quality: quality}
		c.Writer = cw
		c.Next()
		c.Writer = cw.ResponseWriter

		if err := cw.finish(); err != nil {
			_ = c.Error(err)
		}
	}
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, "br") {
			return true
		}
	}
	return false
}
