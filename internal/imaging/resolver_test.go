package imaging

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sportpick-hq/newsdesk/internal/logger"
	"github.com/sportpick-hq/newsdesk/pkg/httpclient"
)

func testResolver(t *testing.T) *Resolver {
	t.Helper()
	client := httpclient.NewRestyClient(5 * time.Second)
	return NewResolver(client, Options{MaxBytes: 1_800_000, MaxDimension: 1600}, logger.NopLogger{})
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 3), B: uint8(x ^ y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestResolveNoImageOnPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html><head><title>text only</title></head><body><p>no pictures</p></body></html>"))
	}))
	defer srv.Close()

	got := testResolver(t).Resolve(context.Background(), srv.URL)
	if got.HasImage() {
		t.Fatalf("expected no image, got %d bytes of %s", len(got.Bytes), got.MIMEType)
	}
}

func TestResolveBrokenImageURL(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/article", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><head><meta property="og:image" content="` + srv.URL + `/gone.jpg"></head><body></body></html>`))
	})
	mux.HandleFunc("/gone.jpg", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	got := testResolver(t).Resolve(context.Background(), srv.URL+"/article")
	if got.HasImage() {
		t.Fatalf("broken image URL must degrade to no image")
	}
}

func TestResolveRejectsDisguisedHTML(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/article", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><head><meta property="og:image" content="` + srv.URL + `/fake.jpg"></head><body></body></html>`))
	})
	mux.HandleFunc("/fake.jpg", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("<html><body>interstitial</body></html>"))
	})

	got := testResolver(t).Resolve(context.Background(), srv.URL+"/article")
	if got.HasImage() {
		t.Fatalf("HTML payload behind an image content-type must be rejected")
	}
}

func TestResolveDownscalesOversizedImage(t *testing.T) {
	big := pngBytes(t, 2400, 1200)
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/article", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><head><meta property="og:image" content="` + srv.URL + `/wide.png"></head><body></body></html>`))
	})
	mux.HandleFunc("/wide.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(big)
	})

	got := testResolver(t).Resolve(context.Background(), srv.URL+"/article")
	if !got.HasImage() {
		t.Fatalf("oversized image should downscale, not disappear")
	}
	if got.MIMEType != "image/jpeg" {
		t.Fatalf("downscaled output should be jpeg, got %s", got.MIMEType)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(got.Bytes))
	if err != nil {
		t.Fatalf("decode normalized image: %v", err)
	}
	if cfg.Width > 1600 || cfg.Height > 1600 {
		t.Fatalf("long edge above ceiling: %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Width*1200 != cfg.Height*2400 {
		// Allow one pixel of rounding either way.
		if diff := cfg.Width - cfg.Height*2; diff < -1 || diff > 1 {
			t.Fatalf("aspect ratio not preserved: %dx%d", cfg.Width, cfg.Height)
		}
	}
}

func TestResolveLookupOrder(t *testing.T) {
	small := pngBytes(t, 40, 30)
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/meta", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><head>
			<meta property="og:image" content="/preferred.png">
			<meta name="twitter:image" content="/second.png">
		</head><body><article><img src="/inline.png"></article></body></html>`))
	})
	mux.HandleFunc("/inline-only", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><body><article><img src="/inline.png"></article></body></html>`))
	})
	served := map[string]int{}
	for _, p := range []string{"/preferred.png", "/second.png", "/inline.png"} {
		p := p
		mux.HandleFunc(p, func(w http.ResponseWriter, _ *http.Request) {
			served[p]++
			w.Header().Set("Content-Type", "image/png")
			w.Write(small)
		})
	}

	r := testResolver(t)
	if got := r.Resolve(context.Background(), srv.URL+"/meta"); !got.HasImage() {
		t.Fatalf("expected image from preview metadata")
	}
	if served["/preferred.png"] != 1 || served["/second.png"] != 0 || served["/inline.png"] != 0 {
		t.Fatalf("preview metadata image must win: %v", served)
	}
	if got := r.Resolve(context.Background(), srv.URL+"/inline-only"); !got.HasImage() {
		t.Fatalf("expected inline article image fallback")
	}
	if served["/inline.png"] != 1 {
		t.Fatalf("inline image not fetched: %v", served)
	}
}

func TestResolveUnwrapsThumbnailProxy(t *testing.T) {
	small := pngBytes(t, 40, 30)
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	origHits := 0
	mux.HandleFunc("/orig.png", func(w http.ResponseWriter, _ *http.Request) {
		origHits++
		w.Header().Set("Content-Type", "image/png")
		w.Write(small)
	})
	mux.HandleFunc("/thumb", func(w http.ResponseWriter, _ *http.Request) {
		t.Errorf("thumbnail proxy should not be fetched when the original works")
	})
	mux.HandleFunc("/article", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><head><meta property="og:image" content="` +
			srv.URL + `/thumb?type=w200&src=` + strings.ReplaceAll(srv.URL, ":", "%3A") + `%2Forig.png` +
			`"></head><body></body></html>`))
	})

	got := testResolver(t).Resolve(context.Background(), srv.URL+"/article")
	if !got.HasImage() {
		t.Fatalf("expected unwrapped original image")
	}
	if origHits != 1 {
		t.Fatalf("original asset fetched %d times", origHits)
	}
}

func TestSniffFormat(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0}, "jpeg"},
		{"png", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0}, "png"},
		{"gif", []byte("GIF89a......"), "gif"},
		{"webp", append([]byte("RIFF\x00\x00\x00\x00"), []byte("WEBPVP8 ")...), "webp"},
		{"avif", append([]byte{0, 0, 0, 0x20}, []byte("ftypavif....")...), "avif"},
		{"html", []byte("<html><body>"), ""},
		{"empty", nil, ""},
	}
	for _, tc := range cases {
		if got := sniffFormat(tc.data); got != tc.want {
			t.Errorf("%s: sniffFormat = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestNormalizeKeepsUndecodableWebp(t *testing.T) {
	// A valid WEBP signature over a body the decoder rejects. The transcode
	// is best-effort; under the byte ceiling the original bytes ship as-is.
	payload := append([]byte("RIFF\x28\x00\x00\x00WEBP"), []byte("VP8 not actually a bitstream")...)

	img, err := normalizePayload(payload, Options{MaxBytes: 1 << 20, MaxDimension: 1600})
	if err != nil {
		t.Fatalf("normalizePayload: %v", err)
	}
	if img.MIMEType != "image/webp" {
		t.Fatalf("expected original webp kept, got %q", img.MIMEType)
	}
	if !bytes.Equal(img.Bytes, payload) {
		t.Fatalf("payload must pass through unmodified")
	}

	// Over the ceiling there is nothing to fall back to.
	if _, err := normalizePayload(payload, Options{MaxBytes: 8, MaxDimension: 1600}); err == nil {
		t.Fatalf("oversized undecodable payload must be rejected")
	}
}

func TestFileNameFor(t *testing.T) {
	if got := fileNameFor("https://cdn.example.com/media/photo.webp?x=1", "image/jpeg"); got != "photo.jpg" {
		t.Fatalf("fileNameFor = %q", got)
	}
	if got := fileNameFor("https://cdn.example.com/", "image/png"); got != "image.png" {
		t.Fatalf("fileNameFor fallback = %q", got)
	}
}
