package gateway

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Compression selects the transport compression mode.
type Compression string

const (
	CompressionNone    Compression = "none"
	CompressionPayload Compression = "payload"
	CompressionStream  Compression = "stream"
)

// ParseCompression accepts "", none, payload, stream or zlib-stream.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "payload", "zlib":
		return CompressionPayload, nil
	case "stream", "zlib-stream":
		return CompressionStream, nil
	}
	return "", fmt.Errorf("unknown compression %q", s)
}

// DefaultVersion is the gateway API version.
const DefaultVersion = 10

// URL builds the connection URL for base, which is either the gateway URL
// from the REST API or a session's resume URL.
func URL(base string, version int, compression Compression) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse gateway url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("gateway url %q: missing scheme or host", base)
	}
	if version <= 0 {
		version = DefaultVersion
	}
	if u.Path == "" {
		u.Path = "/"
	}

	q := u.Query()
	q.Set("v", strconv.Itoa(version))
	q.Set("encoding", "json")
	if compression == CompressionStream {
		q.Set("compress", "zlib-stream")
	} else {
		q.Del("compress")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
