package middleware

import (
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/cloo-solutions/logsage/internal/api"
)

// MaxBodyBytes limits the request body as sent on the wire.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit {
				api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

// DecodeZstd transparently decompresses bodies sent with
// Content-Encoding: zstd. The decoded stream is capped at limit bytes so a
// small compressed payload cannot expand without bound.
func DecodeZstd(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			encoding := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding")))
			switch encoding {
			case "", "identity":
				next.ServeHTTP(w, r)
				return
			case "zstd":
			default:
				api.Error(w, http.StatusUnsupportedMediaType, "unsupported content encoding: "+encoding)
				return
			}

			dec, err := zstd.NewReader(r.Body, zstd.WithDecoderConcurrency(1))
			if err != nil {
				api.Error(w, http.StatusBadRequest, "invalid zstd body")
				return
			}
			defer dec.Close()

			var body io.Reader = dec
			if limit > 0 {
				body = io.LimitReader(dec, limit+1)
			}

			r.Header.Del("Content-Encoding")
			r.ContentLength = -1
			r.Body = &limitedBody{Reader: body, limit: limit, closer: r.Body}
			next.ServeHTTP(w, r)
		})
	}
}

// limitedBody reports http.MaxBytesError once more than limit decoded
// bytes were read, matching what MaxBytesReader does for plain bodies.
type limitedBody struct {
	io.Reader
	limit  int64
	read   int64
	closer io.Closer
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.Reader.Read(p)
	b.read += int64(n)
	if b.limit > 0 && b.read > b.limit {
		return n, &http.MaxBytesError{Limit: b.limit}
	}
	return n, err
}

func (b *limitedBody) Close() error {
	return b.closer.Close()
}
