package imagesource

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const dataScheme = "data:"

// DataURI is a parsed RFC 2397 data URI.
type DataURI struct {
	MediaType string
	Params    map[string]string
	Base64    bool
	Data      []byte
}

// IsImageDataURI reports whether s is a data URI declaring an image media type.
func IsImageDataURI(s string) bool {
	return len(s) >= len(dataScheme)+len("image") &&
		strings.EqualFold(s[:len(dataScheme)+len("image")], dataScheme+"image")
}

// ParseDataURI decodes data:[<mediatype>][;base64],<data>.
func ParseDataURI(s string) (*DataURI, error) {
	if len(s) < len(dataScheme) || !strings.EqualFold(s[:len(dataScheme)], dataScheme) {
		return nil, errors.New("missing data: scheme")
	}
	rest := s[len(dataScheme):]
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return nil, errors.New("missing ',' separator")
	}
	meta, payload := rest[:comma], rest[comma+1:]

	d := &DataURI{MediaType: "text/plain", Params: map[string]string{}}
	parts := strings.Split(meta, ";")
	if mt := strings.TrimSpace(parts[0]); mt != "" {
		if !strings.Contains(mt, "/") {
			return nil, fmt.Errorf("invalid media type %q", mt)
		}
		d.MediaType = strings.ToLower(mt)
	}
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if strings.EqualFold(p, "base64") {
			d.Base64 = true
			continue
		}
		if k, v, ok := strings.Cut(p, "="); ok {
			d.Params[strings.ToLower(k)] = v
		}
	}

	var err error
	if d.Base64 {
		d.Data, err = decodeBase64(payload)
	} else {
		var unescaped string
		unescaped, err = url.PathUnescape(payload)
		d.Data = []byte(unescaped)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return d, nil
}

// decodeBase64 accepts padded and unpadded, standard and URL-safe alphabets.
// Whitespace is stripped first since data URIs copied from HTML often wrap.
func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
	if unescaped, err := url.PathUnescape(s); err == nil {
		s = unescaped
	}
	var firstErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// EncodeDataURI builds a base64 data URI, the same shape a browser produces
// for a dropped in-memory image.
func EncodeDataURI(mediaType string, data []byte) string {
	return dataScheme + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
