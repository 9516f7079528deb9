package extractor

import (
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestRequestRecorder(t *testing.T) {
	rec := newRequestRecorder([]string{"XHSCDN.com", "", "sns-webpic"})
	for _, u := range []string{
		"https://sns-webpic-qc.xhscdn.com/1.jpg",
		"https://fe-static.xhscdn.com/app.js",
		"https://www.xiaohongshu.com/api/sns/web/v1/feed",
		"data:image/png;base64,AAAA",
		"blob:https://www.xiaohongshu.com/1234",
		"https://sns-webpic-qc.xhscdn.com/1.jpg",
		"HTTPS://SNS-WEBPIC-QC.XHSCDN.COM/2.JPG",
	} {
		rec.observe(u)
	}

	want := []string{
		"https://sns-webpic-qc.xhscdn.com/1.jpg",
		"https://fe-static.xhscdn.com/app.js",
		"HTTPS://SNS-WEBPIC-QC.XHSCDN.COM/2.JPG",
	}
	if got := rec.urls(); !reflect.DeepEqual(got, want) {
		t.Errorf("urls() = %v, want %v", got, want)
	}
}

func TestRequestRecorderConcurrent(t *testing.T) {
	rec := newRequestRecorder([]string{"douyinpic.com"})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				rec.observe("https://p3.douyinpic.com/a.webp")
				rec.observe("https://p3.douyinpic.com/b.webp")
			}
		}()
	}
	wg.Wait()
	if got := rec.urls(); len(got) != 2 {
		t.Errorf("urls() = %v, want two unique entries", got)
	}
}

func TestFindBrowserPrefersConfiguredPath(t *testing.T) {
	dir := t.TempDir()
	configured := filepath.Join(dir, "chromium")
	fromEnv := filepath.Join(dir, "chrome-env")
	for _, p := range []string{configured, fromEnv} {
		if err := os.WriteFile(p, nil, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("ROD_BROWSER", fromEnv)

	c := NewBrowserCapturer(BrowserCapturerOptions{BrowserPath: configured})
	if got, ok := c.findBrowser(); !ok || got != configured {
		t.Errorf("findBrowser() = %q, %v, want configured path", got, ok)
	}

	c = NewBrowserCapturer(BrowserCapturerOptions{BrowserPath: filepath.Join(dir, "missing")})
	if got, ok := c.findBrowser(); !ok || got != fromEnv {
		t.Errorf("findBrowser() = %q, %v, want ROD_BROWSER", got, ok)
	}
}

func TestNewBrowserCapturerDefaults(t *testing.T) {
	c := NewBrowserCapturer(BrowserCapturerOptions{})
	if c.timeout != 30*time.Second || c.settle != 2*time.Second {
		t.Errorf("timeout %v settle %v", c.timeout, c.settle)
	}
	if c.userAgent != defaultUserAgent {
		t.Errorf("userAgent = %q", c.userAgent)
	}
}
