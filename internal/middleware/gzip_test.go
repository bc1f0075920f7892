package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func echoOrderHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-Encoding", r.Header.Get("Content-Encoding"))
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte(`{"echo":` + string(body) + `}`))
}

func compress(t *testing.T, s string) io.Reader {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(s)); err != nil {
		t.Fatalf("write gzip: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return &buf
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	var r io.Reader = res.Body
	if res.Header.Get("Content-Encoding") == "gzip" {
		gr, err := gzip.NewReader(res.Body)
		if err != nil {
			t.Fatalf("new gzip reader: %v", err)
		}
		defer gr.Close()
		r = gr
	}
	body, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestGzipMiddleware(t *testing.T) {
	const order = `{"customer_username":"alice","services":[{"service_name":"wash","quantity":2}]}`

	tests := []struct {
		name           string
		compressedBody bool
		acceptEncoding string
		wantEncoding   string
	}{
		{name: "plain request, plain response"},
		{name: "plain request, gzip response", acceptEncoding: "gzip", wantEncoding: "gzip"},
		{name: "gzip request, plain response", compressedBody: true},
		{name: "gzip request, gzip response", compressedBody: true, acceptEncoding: "gzip, deflate", wantEncoding: "gzip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader = strings.NewReader(order)
			if tt.compressedBody {
				body = compress(t, order)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/orders", body)
			req.Header.Set("Content-Type", "application/json")
			if tt.compressedBody {
				req.Header.Set("Content-Encoding", "gzip")
			}
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}

			w := httptest.NewRecorder()
			GzipMiddleware(http.HandlerFunc(echoOrderHandler)).ServeHTTP(w, req)

			res := w.Result()
			defer res.Body.Close()

			if res.StatusCode != http.StatusCreated {
				t.Fatalf("status: got %d want %d", res.StatusCode, http.StatusCreated)
			}
			if ce := res.Header.Get("Content-Encoding"); ce != tt.wantEncoding {
				t.Fatalf("content-encoding: got %q want %q", ce, tt.wantEncoding)
			}
			if re := res.Header.Get("X-Request-Encoding"); re != "" {
				t.Fatalf("handler saw request encoding %q", re)
			}
			if got, want := readBody(t, res), `{"echo":`+order+`}`; got != want {
				t.Fatalf("body: got %q want %q", got, want)
			}
		})
	}
}

func TestGzipMiddlewareRejectsBrokenBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader("not gzip at all"))
	req.Header.Set("Content-Encoding", "gzip")

	called := false
	h := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d want %d", w.Code, http.StatusBadRequest)
	}
	if called {
		t.Fatal("next handler must not be called for a broken body")
	}
}

func TestGzipMiddlewareKeepsHandlerEncoding(t *testing.T) {
	const payload = "washwise_orders_created_total 1\n"

	h := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte(payload))
		_ = gz.Close()
	}))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	if ce := res.Header.Get("Content-Encoding"); ce != "gzip" {
		t.Fatalf("content-encoding: got %q want %q", ce, "gzip")
	}
	if got := readBody(t, res); got != payload {
		t.Fatalf("body after single gunzip: got %q want %q", got, payload)
	}
}

func TestGzipMiddlewareBodylessResponses(t *testing.T) {
	tests := []struct {
		name   string
		method string
		status int
	}{
		{name: "not modified", method: http.MethodGet, status: http.StatusNotModified},
		{name: "no content", method: http.MethodPut, status: http.StatusNoContent},
		{name: "head request", method: http.MethodHead, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			req := httptest.NewRequest(tt.method, "/qr_codes/order_1.png", nil)
			req.Header.Set("Accept-Encoding", "gzip")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("status: got %d want %d", w.Code, tt.status)
			}
			if ce := w.Header().Get("Content-Encoding"); ce != "" {
				t.Fatalf("content-encoding must be empty, got %q", ce)
			}
			if w.Body.Len() != 0 {
				t.Fatalf("body must be empty, got %d bytes", w.Body.Len())
			}
		})
	}
}
