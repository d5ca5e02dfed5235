package middleware

import (
	"compress/gzip"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

type gzipWriter struct {
	gin.ResponseWriter
	writer *gzip.Writer
}

func (g *gzipWriter) Write(data []byte) (int, error) {
	return g.writer.Write(data)
}

func (g *gzipWriter) WriteString(s string) (int, error) {
	return g.writer.Write([]byte(s))
}

func (g *gzipWriter) WriteHeader(code int) {
	g.Header().Del("Content-Length")
	g.ResponseWriter.WriteHeader(code)
}

// CompressConfig represents compression configuration
type CompressConfig struct {
	Level int
	// Skip lists path prefixes that are never compressed.
	Skip []string
}

// DefaultCompressConfig leaves health probes and the scrape endpoint alone.
func DefaultCompressConfig() CompressConfig {
	return CompressConfig{
		Level: gzip.DefaultCompression,
		Skip: []string{
			"/api/v1/health",
			"/metrics",
		},
	}
}

// Compress gzips responses for clients that advertise support.
func Compress(config CompressConfig) gin.HandlerFunc {
	pool := sync.Pool{New: func() interface{} {
		gz, err := gzip.NewWriterLevel(nil, config.Level)
		if err != nil {
			gz = gzip.NewWriter(nil)
		}
		return gz
	}}

	return func(c *gin.Context) {
		for _, path := range config.Skip {
			if strings.HasPrefix(c.Request.URL.Path, path) {
				c.Next()
				return
			}
		}

		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") || c.Request.Method == "HEAD" {
			c.Next()
			return
		}

		gz := pool.Get().(*gzip.Writer)
		gz.Reset(c.Writer)
		defer func() {
			if c.Writer.Size() <= 0 {
				// Nothing was written, so the gzip trailer must not be either.
				gz.Reset(nil)
			} else {
				gz.Close()
			}
			pool.Put(gz)
		}()

		c.Header("Content-Encoding", "gzip")
		c.Header("Vary", "Accept-Encoding")
		c.Writer = &gzipWriter{c.Writer, gz}

		c.Next()
	}
}
