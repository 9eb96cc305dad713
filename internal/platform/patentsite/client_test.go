package patentsite

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/phrazzld/patentgate/internal/config"
	"github.com/phrazzld/patentgate/internal/domain"
	"github.com/phrazzld/patentgate/internal/platform/artifacts"
	"github.com/phrazzld/patentgate/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	captchaPNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x10\x00\x00\x00\x10\x08\x02\x00\x00\x00")
	samplePDF  = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")
)

const resultPage = `<html><body>
<a href="/help.html">help</a>
<a href="/files/CN1234567A.pdf">download</a>
<form action="/securepdf.aspx" method="post">
  <input type="hidden" name="token" value="t0k3n">
  <input type="text" name="ignored" value="x">
</form>
</body></html>`

// fakeSite emulates the patent site. The session cookie issued by /verify
// must accompany every later request.
type fakeSite struct {
	server   *httptest.Server
	unlocked atomic.Bool
	sessions atomic.Int32
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()
	site := &fakeSite{}
	mux := http.NewServeMux()

	requireSession := func(w http.ResponseWriter, r *http.Request) bool {
		if ck, err := r.Cookie("sid"); err != nil || ck.Value == "" {
			http.Error(w, "no session", http.StatusForbidden)
			return false
		}
		return true
	}

	mux.HandleFunc("/verify", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "1", r.PostForm.Get("Common"))
		n := site.sessions.Add(1)
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "session-" + string(rune('0'+n)), Path: "/"})
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/verifycode", func(w http.ResponseWriter, r *http.Request) {
		if !requireSession(w, r) {
			return
		}
		_, _ = w.Write(captchaPNG)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if !requireSession(w, r) {
			return
		}
		require.NoError(t, r.ParseForm())
		switch r.PostForm.Get("ValidCode") {
		case "9mq1":
			_, _ = w.Write([]byte(resultPage))
		case "gone":
			_, _ = w.Write([]byte("<html>专利号不存在</html>"))
		default:
			_, _ = w.Write([]byte("<html>验证码输入错误，请返回重新输入。</html>"))
		}
	})
	mux.HandleFunc("/securepdf.aspx", func(w http.ResponseWriter, r *http.Request) {
		if !requireSession(w, r) {
			return
		}
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("token") != "t0k3n" || r.PostForm.Has("ignored") {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		site.unlocked.Store(true)
	})
	mux.HandleFunc("/files/CN1234567A.pdf", func(w http.ResponseWriter, r *http.Request) {
		if !requireSession(w, r) || !site.unlocked.Load() {
			http.Error(w, "locked", http.StatusForbidden)
			return
		}
		_, _ = w.Write(samplePDF)
	})
	mux.HandleFunc("/files/broken.pdf", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>expired</html>"))
	})

	site.server = httptest.NewServer(mux)
	t.Cleanup(site.server.Close)
	return site
}

func (s *fakeSite) config() config.SiteConfig {
	return config.SiteConfig{
		VerifyURL:             s.server.URL + "/verify",
		VerifyCodeURL:         s.server.URL + "/verifycode",
		SearchURL:             s.server.URL + "/search",
		SecurePDFURL:          "http://unlock.invalid/securepdf.aspx",
		UserAgent:             "patentgate-test",
		RequestTimeoutSeconds: 5,
	}
}

func newTestClient(t *testing.T, site *fakeSite) (*Client, *artifacts.LocalStore) {
	t.Helper()
	files, err := artifacts.NewLocalStore(t.TempDir(), nil)
	require.NoError(t, err)
	return NewClient(site.config(), files, nil, nil), files
}

func TestClient_FullFlow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	site := newFakeSite(t)
	client, files := newTestClient(t, site)

	initiated, err := client.Initiate(ctx, "CN1234567A")
	require.NoError(t, err)
	require.NotNil(t, initiated.Challenge)
	assert.Nil(t, initiated.Direct)
	assert.Equal(t, captchaPNG, initiated.Challenge.Image)
	assert.Equal(t, "image/png", initiated.Challenge.ImageMIME)
	require.Len(t, initiated.Challenge.State.Cookies, 1)
	assert.Equal(t, "sid", initiated.Challenge.State.Cookies[0].Name)

	wrong, err := client.Resume(ctx, initiated.Challenge.State, "CN1234567A", "7fk2")
	require.NoError(t, err)
	assert.Equal(t, resource.ResumeWrongAnswer, wrong.Kind)
	assert.NotEmpty(t, wrong.State.Cookies)

	refreshed, err := client.RefreshChallenge(ctx, wrong.State)
	require.NoError(t, err)
	assert.Equal(t, captchaPNG, refreshed.Image)

	resolved, err := client.Resume(ctx, refreshed.State, "CN1234567A", "9mq1")
	require.NoError(t, err)
	require.Equal(t, resource.ResumeResolved, resolved.Kind)
	require.NotNil(t, resolved.Artifact)
	assert.Equal(t, site.server.URL+"/files/CN1234567A.pdf", resolved.Artifact.URL)
	assert.Equal(t, "CN1234567A.pdf", resolved.Artifact.FileName)
	assert.True(t, site.unlocked.Load())

	path, err := client.Materialize(ctx, resolved.State, *resolved.Artifact)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(files.Dir(), "CN1234567A.pdf"), path)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, samplePDF, content)
}

func TestClient_SessionsAreIsolated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	site := newFakeSite(t)
	client, _ := newTestClient(t, site)

	first, err := client.Initiate(ctx, "CN1234567A")
	require.NoError(t, err)
	second, err := client.Initiate(ctx, "CN7654321A")
	require.NoError(t, err)

	assert.NotEqual(t, first.Challenge.State.Cookies[0].Value, second.Challenge.State.Cookies[0].Value)
}

func TestClient_ResumeNotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	site := newFakeSite(t)
	client, _ := newTestClient(t, site)

	initiated, err := client.Initiate(ctx, "CN0000000A")
	require.NoError(t, err)

	outcome, err := client.Resume(ctx, initiated.Challenge.State, "CN0000000A", "gone")
	require.NoError(t, err)
	assert.Equal(t, resource.ResumeNotFound, outcome.Kind)
}

func TestClient_ResumeWithoutSessionFails(t *testing.T) {
	t.Parallel()
	site := newFakeSite(t)
	client, _ := newTestClient(t, site)

	_, err := client.Resume(context.Background(), domain.SessionState{}, "CN1234567A", "9mq1")
	assert.ErrorIs(t, err, domain.ErrTransientExternal)
}

func TestClient_InitiateTransportError(t *testing.T) {
	t.Parallel()
	site := newFakeSite(t)
	cfg := site.config()
	site.server.Close()

	files, err := artifacts.NewLocalStore(t.TempDir(), nil)
	require.NoError(t, err)
	client := NewClient(cfg, files, nil, nil)

	_, err = client.Initiate(context.Background(), "CN1234567A")
	assert.ErrorIs(t, err, domain.ErrTransientExternal)
}

func TestClient_MaterializeRejectsNonPDF(t *testing.T) {
	t.Parallel()
	site := newFakeSite(t)
	client, files := newTestClient(t, site)

	_, err := client.Materialize(context.Background(), domain.SessionState{}, resource.ArtifactRef{
		URL:      site.server.URL + "/files/broken.pdf",
		FileName: "CN1234567A.pdf",
	})
	assert.ErrorIs(t, err, artifacts.ErrNotPDF)
	_, ok := files.Lookup("CN1234567A")
	assert.False(t, ok)
}

func TestParseResultPage(t *testing.T) {
	t.Parallel()

	info, err := parseResultPage(resultPage, "https://site.test/search")
	require.NoError(t, err)
	assert.Equal(t, "https://site.test/files/CN1234567A.pdf", info.PDFURL)
	assert.Equal(t, "t0k3n", info.UnlockForm.Get("token"))
	assert.False(t, info.UnlockForm.Has("ignored"))

	_, err = parseResultPage("<html><a href='/x.html'>x</a></html>", "https://site.test/search")
	assert.ErrorIs(t, err, domain.ErrTransientExternal)
}

func TestSubstituteHost(t *testing.T) {
	t.Parallel()

	got, err := substituteHost("http://placeholder/securepdf.aspx", "https://cdn.site.test:8443/files/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.site.test:8443/securepdf.aspx", got)
}
