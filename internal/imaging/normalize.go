package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/sportpick-hq/newsdesk/internal/domain"
)

const (
	jpegQualityStart = 85
	jpegQualityStep  = 10
	jpegQualityFloor = 45

	// If quality steps alone cannot satisfy the byte ceiling at the
	// primary dimension, one retry happens at this smaller edge.
	retryDimension = 1280
)

var errNotImage = errors.New("payload is not a supported image")

// sniffFormat identifies the payload by signature bytes. Content-Type headers
// lie often enough that the bytes are authoritative.
func sniffFormat(data []byte) string {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "jpeg"
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "png"
	case len(data) >= 4 && bytes.Equal(data[:4], []byte("GIF8")):
		return "gif"
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "webp"
	case len(data) >= 12 && bytes.Equal(data[4:8], []byte("ftyp")):
		brand := string(data[8:12])
		if brand == "avif" || brand == "avis" {
			return "avif"
		}
		if brand == "heic" || brand == "heix" || brand == "mif1" {
			return "heic"
		}
	}
	return ""
}

// checkContentType rejects payloads that are clearly not images. A generic or
// missing header is tolerated when the signature bytes look like an image.
func checkContentType(contentType string, body []byte) error {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = ct[:idx]
	}
	if strings.HasPrefix(ct, "image/") {
		return nil
	}
	if sniffFormat(body) != "" {
		return nil
	}
	if strings.HasPrefix(ct, "text/") || ct == "application/json" {
		return fmt.Errorf("%w: content-type %q", errNotImage, ct)
	}
	return errNotImage
}

// normalizePayload turns raw downloaded bytes into an upload-ready image:
// signature check, transcode of formats boards cannot serve, then
// downscale/recompress within the byte and dimension ceilings.
func normalizePayload(raw []byte, opts Options) (domain.ResolvedImage, error) {
	format := sniffFormat(raw)
	if format == "" {
		return domain.ResolvedImage{}, errNotImage
	}

	// AVIF and HEIC have no decoder here; pass them through unless they
	// blow the byte ceiling, in which case there is nothing to be done.
	if format == "avif" || format == "heic" {
		if len(raw) > opts.MaxBytes {
			return domain.ResolvedImage{}, fmt.Errorf("%s payload %d bytes exceeds ceiling and cannot be resized", format, len(raw))
		}
		return domain.ResolvedImage{Bytes: raw, MIMEType: "image/" + format}, nil
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		// Undecodable but signature-valid payloads ship as-is when small
		// enough; the board may still accept them. This covers WEBP too,
		// whose transcode is best-effort.
		if len(raw) <= opts.MaxBytes {
			return domain.ResolvedImage{Bytes: raw, MIMEType: "image/" + format}, nil
		}
		return domain.ResolvedImage{}, fmt.Errorf("decode %s: %w", format, err)
	}

	bounds := src.Bounds()
	withinDims := bounds.Dx() <= opts.MaxDimension && bounds.Dy() <= opts.MaxDimension
	if format != "webp" && withinDims && len(raw) <= opts.MaxBytes {
		return domain.ResolvedImage{Bytes: raw, MIMEType: "image/" + format}, nil
	}

	for _, edge := range []int{opts.MaxDimension, retryDimension} {
		scaled := scaleDown(src, edge)
		for q := jpegQualityStart; q >= jpegQualityFloor; q -= jpegQualityStep {
			var buf bytes.Buffer
			if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: q}); err != nil {
				return domain.ResolvedImage{}, fmt.Errorf("encode jpeg: %w", err)
			}
			if buf.Len() <= opts.MaxBytes {
				return domain.ResolvedImage{Bytes: buf.Bytes(), MIMEType: "image/jpeg"}, nil
			}
		}
	}
	return domain.ResolvedImage{}, fmt.Errorf("image does not fit %d bytes even at %dpx", opts.MaxBytes, retryDimension)
}

// scaleDown resizes so the long edge is at most maxEdge, preserving ratio.
// Images already within the bound are returned untouched.
func scaleDown(src image.Image, maxEdge int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	long := w
	if h > long {
		long = h
	}
	if long <= maxEdge {
		return src
	}
	ratio := float64(maxEdge) / float64(long)
	nw := int(float64(w)*ratio + 0.5)
	nh := int(float64(h)*ratio + 0.5)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
