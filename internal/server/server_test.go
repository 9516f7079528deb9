package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/guiyumin/unmark/internal/core/config"
	"github.com/guiyumin/unmark/internal/core/extractor"
	"github.com/guiyumin/unmark/internal/core/i18n"
)

type fakeResolver struct {
	mu          sync.Mutex
	out         *extractor.Outcome
	err         error
	panics      bool
	calls       int
	texts       []string
	credentials []string
}

func (f *fakeResolver) Resolve(_ context.Context, rawText, credential string) (*extractor.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.texts = append(f.texts, rawText)
	f.credentials = append(f.credentials, credential)
	if f.panics {
		panic("boom")
	}
	return f.out, f.err
}

// prefixPolicy allows media URLs under one prefix
type prefixPolicy string

func (p prefixPolicy) AllowsMedia(rawURL string) bool {
	return p != "" && strings.HasPrefix(rawURL, string(p))
}

type apiResponse struct {
	Code    int             `json:"code"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func newTestServer(cfg *config.Config, r Resolver, media MediaPolicy) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return NewServer(cfg, 0, r, media)
}

func do(t *testing.T, s *Server, method, target, body string, headers ...string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var resp apiResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, target, err, w.Body.String())
		}
	}
	return w, resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(nil, &fakeResolver{}, nil)
	for _, path := range []string{"/health", "/api/health"} {
		w, resp := do(t, s, http.MethodGet, path, "")
		if w.Code != http.StatusOK || !resp.Success {
			t.Fatalf("GET %s = %d %+v", path, w.Code, resp)
		}
		var data struct {
			Status  string `json:"status"`
			Version string `json:"version"`
		}
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			t.Fatal(err)
		}
		if data.Status != "ok" || data.Version == "" {
			t.Errorf("GET %s data = %+v", path, data)
		}
	}
}

func TestParse(t *testing.T) {
	zh := i18n.GetTranslations("zh").Errors
	en := i18n.GetTranslations("en").Errors
	outcome := &extractor.Outcome{
		ImageURL:  "https://sns-webpic-qc.xhscdn.com/a",
		AllImages: []string{"https://sns-webpic-qc.xhscdn.com/a!nd_dft_wlteh_webp_3"},
		NoteID:    "64a1b2c3",
		TargetURL: "https://www.xiaohongshu.com/explore/64a1b2c3",
		Platform:  extractor.PlatformXiaohongshu,
	}

	tests := []struct {
		name     string
		body     string
		headers  []string
		out      *extractor.Outcome
		err      error
		status   int
		message  string
		resolves bool
	}{
		{
			name:     "success",
			body:     `{"short_link":"看看 http://xhslink.com/a/abc 复制"}`,
			out:      outcome,
			status:   http.StatusOK,
			message:  "ok",
			resolves: true,
		},
		{
			name:    "invalid body",
			body:    `{"short_link":`,
			status:  http.StatusBadRequest,
			message: zh.InvalidBody,
		},
		{
			name:    "empty short_link",
			body:    `{"short_link":"   "}`,
			status:  http.StatusBadRequest,
			message: zh.EmptyInput,
		},
		{
			name:     "no url",
			body:     `{"short_link":"hello"}`,
			err:      &extractor.InputError{Text: "hello"},
			status:   http.StatusBadRequest,
			message:  zh.NoURL,
			resolves: true,
		},
		{
			name:     "network",
			body:     `{"short_link":"http://xhslink.com/a/abc"}`,
			err:      &extractor.NetworkError{Op: "resolve", URL: "http://xhslink.com/a/abc", Err: errors.New("connection refused")},
			status:   http.StatusBadGateway,
			message:  zh.Network,
			resolves: true,
		},
		{
			name:     "timeout",
			body:     `{"short_link":"http://xhslink.com/a/abc"}`,
			err:      &extractor.NetworkError{Op: "fetch", URL: "http://xhslink.com/a/abc", Err: &net.DNSError{IsTimeout: true}},
			status:   http.StatusBadGateway,
			message:  zh.Timeout,
			resolves: true,
		},
		{
			name:     "not found",
			body:     `{"short_link":"http://xhslink.com/a/abc"}`,
			err:      &extractor.NoCandidatesError{TargetURL: "https://www.xiaohongshu.com/explore/1"},
			status:   http.StatusNotFound,
			message:  "未找到图片，可能是笔记不存在或需要登录",
			resolves: true,
		},
		{
			name:     "english reason",
			body:     `{"short_link":"http://xhslink.com/a/abc"}`,
			headers:  []string{"Accept-Language", "en-US,en;q=0.9"},
			err:      &extractor.NoCandidatesError{},
			status:   http.StatusNotFound,
			message:  en.NotFound,
			resolves: true,
		},
		{
			name:     "unexpected error",
			body:     `{"short_link":"http://xhslink.com/a/abc"}`,
			err:      errors.New("unexpected"),
			status:   http.StatusInternalServerError,
			message:  zh.Internal,
			resolves: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeResolver{out: tt.out, err: tt.err}
			s := newTestServer(nil, r, nil)
			w, resp := do(t, s, http.MethodPost, "/api/parse", tt.body, tt.headers...)

			if w.Code != tt.status || resp.Code != tt.status {
				t.Fatalf("status = %d (code %d), want %d: %s", w.Code, resp.Code, tt.status, w.Body.String())
			}
			if resp.Message != tt.message {
				t.Errorf("message = %q, want %q", resp.Message, tt.message)
			}
			if (r.calls > 0) != tt.resolves {
				t.Errorf("pipeline calls = %d, resolves %v", r.calls, tt.resolves)
			}
			if tt.status != http.StatusOK {
				if resp.Success || resp.Error != tt.message {
					t.Errorf("failure envelope = %+v", resp)
				}
				return
			}

			var got extractor.Outcome
			if err := json.Unmarshal(resp.Data, &got); err != nil {
				t.Fatal(err)
			}
			if !resp.Success || got.ImageURL != outcome.ImageURL || got.NoteID != outcome.NoteID {
				t.Errorf("data = %+v", got)
			}
			var raw map[string]any
			json.Unmarshal(resp.Data, &raw)
			for _, key := range []string{"image_url", "all_images", "note_id", "target_url", "platform"} {
				if _, ok := raw[key]; !ok {
					t.Errorf("data is missing %q: %s", key, resp.Data)
				}
			}
		})
	}
}

func TestParseUsesSession(t *testing.T) {
	r := &fakeResolver{out: &extractor.Outcome{ImageURL: "https://sns-webpic-qc.xhscdn.com/a"}}
	s := newTestServer(nil, r, nil)
	token, _ := s.Sessions().Put("a1=xyz; web_session=abc")

	w, _ := do(t, s, http.MethodPost, "/api/parse", `{"short_link":"http://xhslink.com/a/abc","session":"`+token+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if got := r.credentials[0]; got != "a1=xyz; web_session=abc" {
		t.Errorf("credential = %q", got)
	}

	w, resp := do(t, s, http.MethodPost, "/api/parse", `{"short_link":"http://xhslink.com/a/abc","session":"missing"}`)
	if w.Code != http.StatusBadRequest || resp.Message != i18n.GetTranslations("zh").Errors.SessionNotFound {
		t.Errorf("unknown session = %d %+v", w.Code, resp)
	}
	if r.calls != 1 {
		t.Errorf("pipeline ran %d times, want 1", r.calls)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(nil, &fakeResolver{}, nil)

	w, resp := do(t, s, http.MethodPost, "/api/session", `{"cookie":"web_session=abc"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("create = %d: %s", w.Code, w.Body.String())
	}
	var data struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Token == "" || data.ExpiresAt == "" {
		t.Fatalf("data = %+v", data)
	}
	if cred, ok := s.Sessions().Get(data.Token); !ok || cred != "web_session=abc" {
		t.Errorf("stored credential = %q, %v", cred, ok)
	}

	if w, _ := do(t, s, http.MethodDelete, "/api/session/"+data.Token, ""); w.Code != http.StatusOK {
		t.Errorf("delete = %d", w.Code)
	}
	if w, _ := do(t, s, http.MethodDelete, "/api/session/"+data.Token, ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
	if w, _ := do(t, s, http.MethodPost, "/api/session", `{"cookie":"  "}`); w.Code != http.StatusBadRequest {
		t.Errorf("empty cookie = %d, want 400", w.Code)
	}
}

func TestProxy(t *testing.T) {
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("internal"))
	}))
	defer internal.Close()

	var upstream *httptest.Server
	upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/img/moved.webp":
			http.Redirect(w, r, upstream.URL+"/img/abc!nd_dft_wlteh_webp_3", http.StatusFound)
		case "/img/escape.jpg":
			http.Redirect(w, r, internal.URL+"/secret", http.StatusFound)
		case "/img/abc!nd_dft_wlteh_webp_3":
			w.Header().Set("Content-Type", "image/webp")
			w.Write([]byte("RIFF0000WEBP"))
		case "/img/raw":
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Write([]byte("\x89PNG\r\n\x1a\n0000"))
		case "/img/big.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(bytes.Repeat([]byte("x"), 64))
		default:
			http.NotFound(w, r)
		}
	}))
	defer upstream.Close()

	cfg := config.DefaultConfig()
	cfg.Proxy.MaxBytes = 32
	s := newTestServer(cfg, &fakeResolver{}, prefixPolicy(upstream.URL+"/"))
	zh := i18n.GetTranslations("zh").Errors

	t.Run("streams allowed media", func(t *testing.T) {
		w, _ := do(t, s, http.MethodGet, "/api/proxy?url="+upstream.URL+"/img/abc!nd_dft_wlteh_webp_3", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		if w.Body.String() != "RIFF0000WEBP" {
			t.Errorf("body = %q", w.Body.String())
		}
		if ct := w.Header().Get("Content-Type"); ct != "image/webp" {
			t.Errorf("Content-Type = %q", ct)
		}
		_, params, err := mime.ParseMediaType(w.Header().Get("Content-Disposition"))
		if err != nil || params["filename"] != "abc.webp" {
			t.Errorf("Content-Disposition = %q", w.Header().Get("Content-Disposition"))
		}
	})

	t.Run("follows redirects on the allow-list", func(t *testing.T) {
		w, _ := do(t, s, http.MethodGet, "/api/proxy?url="+upstream.URL+"/img/moved.webp", "")
		if w.Code != http.StatusOK || w.Body.String() != "RIFF0000WEBP" {
			t.Errorf("got %d %q", w.Code, w.Body.String())
		}
	})

	t.Run("sniffs octet-stream", func(t *testing.T) {
		w, _ := do(t, s, http.MethodGet, "/api/proxy?url="+upstream.URL+"/img/raw", "")
		if ct := w.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("Content-Type = %q", ct)
		}
		_, params, err := mime.ParseMediaType(w.Header().Get("Content-Disposition"))
		if err != nil || params["filename"] != "raw.png" {
			t.Errorf("Content-Disposition = %q", w.Header().Get("Content-Disposition"))
		}
	})

	t.Run("requested filename", func(t *testing.T) {
		w, _ := do(t, s, http.MethodGet, "/api/proxy?filename=%E6%88%91%E7%9A%84%2F%E7%AC%94%E8%AE%B0&url="+upstream.URL+"/img/abc!nd_dft_wlteh_webp_3", "")
		_, params, err := mime.ParseMediaType(w.Header().Get("Content-Disposition"))
		if err != nil || params["filename"] != "我的-笔记.webp" {
			t.Errorf("Content-Disposition = %q (%v)", w.Header().Get("Content-Disposition"), err)
		}
	})

	errorCases := []struct {
		name    string
		target  string
		status  int
		message string
	}{
		{"missing url", "/api/proxy", http.StatusBadRequest, zh.ProxyMissingURL},
		{"foreign host", "/api/proxy?url=https://example.com/a.jpg", http.StatusForbidden, zh.ProxyForbidden},
		{"upstream 404", "/api/proxy?url=" + upstream.URL + "/img/gone.jpg", http.StatusBadGateway, zh.ProxyUpstream},
		{"too large", "/api/proxy?url=" + upstream.URL + "/img/big.jpg", http.StatusBadGateway, zh.ProxyUpstream},
		{"redirect off the allow-list", "/api/proxy?url=" + upstream.URL + "/img/escape.jpg", http.StatusForbidden, zh.ProxyForbidden},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := do(t, s, http.MethodGet, tt.target, "")
			if w.Code != tt.status || resp.Message != tt.message {
				t.Errorf("got %d %q, want %d %q", w.Code, resp.Message, tt.status, tt.message)
			}
		})
	}
}

func TestProxyRejectsLookalikeHosts(t *testing.T) {
	s := newTestServer(config.DefaultConfig(), &fakeResolver{}, extractor.DefaultRegistry)
	zh := i18n.GetTranslations("zh").Errors

	for _, target := range []string{
		"http://sns-evil.attacker.test/a.jpg",
		"http://xiaohongshu.com.attacker.test/a.jpg",
		"http://notxhscdn.com/a.jpg",
		"http://127.0.0.1/xhscdn.com/a.jpg",
	} {
		t.Run(target, func(t *testing.T) {
			w, resp := do(t, s, http.MethodGet, "/api/proxy?url="+target, "")
			if w.Code != http.StatusForbidden || resp.Message != zh.ProxyForbidden {
				t.Errorf("got %d %q, want 403", w.Code, resp.Message)
			}
		})
	}
}

func TestProxyFilename(t *testing.T) {
	tests := []struct {
		requested, target, contentType, want string
	}{
		{"", "https://sns-webpic-qc.xhscdn.com/202401/abc!nd_dft_wlteh_webp_3", "image/webp", "abc.webp"},
		{"", "https://p3.douyinpic.com/tos/xyz~tplv-dy-water.jpeg", "image/jpeg", "xyz.jpg"},
		{"note.png", "https://x.xhscdn.com/a", "image/jpeg", "note.png"},
		{"../../etc/passwd", "https://x.xhscdn.com/a", "", "-..-etc-passwd"},
		{"", "https://x.xhscdn.com/", "image/gif; charset=binary", "image.gif"},
		{"", "https://x.xhscdn.com", "application/octet-stream", "image"},
	}
	for _, tt := range tests {
		if got := proxyFilename(tt.requested, tt.target, tt.contentType); got != tt.want {
			t.Errorf("proxyFilename(%q, %q) = %q, want %q", tt.requested, tt.target, got, tt.want)
		}
	}
}

func TestAPIKey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.APIKey = "secret"
	r := &fakeResolver{out: &extractor.Outcome{}}
	s := newTestServer(cfg, r, nil)
	body := `{"short_link":"http://xhslink.com/a/abc"}`

	if w, resp := do(t, s, http.MethodPost, "/api/parse", body); w.Code != http.StatusUnauthorized || resp.Success {
		t.Errorf("without key = %d", w.Code)
	}
	if w, _ := do(t, s, http.MethodPost, "/api/parse", body, "X-API-Key", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong key = %d", w.Code)
	}
	if w, _ := do(t, s, http.MethodPost, "/api/parse", body, "X-API-Key", "secret"); w.Code != http.StatusOK {
		t.Errorf("with key = %d", w.Code)
	}
	for _, path := range []string{"/health", "/api/health"} {
		if w, _ := do(t, s, http.MethodGet, path, ""); w.Code != http.StatusOK {
			t.Errorf("GET %s without key = %d", path, w.Code)
		}
	}
	if r.calls != 1 {
		t.Errorf("pipeline ran %d times, want 1", r.calls)
	}
}

func TestCORS(t *testing.T) {
	open := newTestServer(nil, &fakeResolver{}, nil)
	w, _ := do(t, open, http.MethodOptions, "/api/parse", "", "Origin", "https://app.example.com")
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), "X-API-Key") {
		t.Errorf("Allow-Headers = %q", w.Header().Get("Access-Control-Allow-Headers"))
	}

	cfg := config.DefaultConfig()
	cfg.Server.AllowedOrigins = []string{"https://app.example.com/"}
	cfg.Server.APIKey = "secret"
	restricted := newTestServer(cfg, &fakeResolver{}, nil)

	w, _ = do(t, restricted, http.MethodOptions, "/api/parse", "", "Origin", "https://app.example.com")
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight with API key = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
	w, _ = do(t, restricted, http.MethodGet, "/health", "", "Origin", "https://evil.example.com")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin for foreign origin = %q", got)
	}
}

func TestRequestID(t *testing.T) {
	s := newTestServer(nil, &fakeResolver{}, nil)
	w, _ := do(t, s, http.MethodGet, "/health", "", "X-Request-ID", "req-123")
	if got := w.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("X-Request-ID = %q, want echo", got)
	}
	w, _ = do(t, s, http.MethodGet, "/health", "")
	if got := w.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("generated X-Request-ID = %q", got)
	}
}

func TestRecovery(t *testing.T) {
	s := newTestServer(nil, &fakeResolver{panics: true}, nil)
	w, resp := do(t, s, http.MethodPost, "/api/parse", `{"short_link":"http://xhslink.com/a/abc"}`)
	if w.Code != http.StatusInternalServerError || resp.Success {
		t.Errorf("panic = %d %+v", w.Code, resp)
	}
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(nil, &fakeResolver{}, nil)
	if w, _ := do(t, s, http.MethodGet, "/api/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
}
