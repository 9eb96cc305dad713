package patentsite

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/phrazzld/patentgate/internal/config"
	"github.com/phrazzld/patentgate/internal/domain"
	"github.com/phrazzld/patentgate/internal/resource"
	"golang.org/x/net/publicsuffix"
)

const (
	// wrongAnswerMarker appears on the search page when the captcha was wrong.
	wrongAnswerMarker = "验证码输入错误"
	// notFoundMarker appears on the search page for unknown patent numbers.
	notFoundMarker = "专利号"

	maxPageBytes  = 4 << 20
	maxImageBytes = 1 << 20
)

// ArtifactWriter persists a downloaded document.
type ArtifactWriter interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// Client is the patent site resource.Client.
type Client struct {
	cfg       config.SiteConfig
	files     ArtifactWriter
	transport http.RoundTripper
	logger    *slog.Logger
}

var _ resource.Client = (*Client)(nil)

// NewClient creates a client. A nil transport uses http.DefaultTransport.
func NewClient(cfg config.SiteConfig, files ArtifactWriter, transport http.RoundTripper, logger *slog.Logger) *Client {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:       cfg,
		files:     files,
		transport: transport,
		logger:    logger.With(slog.String("component", "patentsite")),
	}
}

// Initiate opens a fresh session and fetches the captcha. The site always
// asks for one, so the outcome is never Direct.
func (c *Client) Initiate(ctx context.Context, resourceKey string) (resource.InitiateOutcome, error) {
	sess, err := c.newSession(domain.SessionState{})
	if err != nil {
		return resource.InitiateOutcome{}, err
	}

	form := url.Values{"cnpatentno": {resourceKey}, "Common": {"1"}}
	if _, err := sess.postForm(ctx, c.cfg.VerifyURL, form, nil); err != nil {
		return resource.InitiateOutcome{}, err
	}

	challenge, err := c.fetchChallenge(ctx, sess)
	if err != nil {
		return resource.InitiateOutcome{}, err
	}

	c.logger.DebugContext(ctx, "challenge issued",
		slog.String("resource_key", resourceKey),
		slog.Any("session", challenge.State))
	return resource.InitiateOutcome{Challenge: &challenge}, nil
}

// Resume submits answer and, if accepted, unlocks the PDF link.
func (c *Client) Resume(
	ctx context.Context,
	state domain.SessionState,
	resourceKey, answer string,
) (resource.ResumeOutcome, error) {
	sess, err := c.newSession(state)
	if err != nil {
		return resource.ResumeOutcome{}, err
	}

	form := url.Values{"cnpatentno": {resourceKey}, "common": {"1"}, "ValidCode": {answer}}
	page, err := sess.postForm(ctx, c.cfg.SearchURL, form, nil)
	if err != nil {
		return resource.ResumeOutcome{}, err
	}
	text := string(page)

	switch {
	case strings.Contains(text, wrongAnswerMarker):
		return resource.ResumeOutcome{Kind: resource.ResumeWrongAnswer, State: sess.capture()}, nil
	case strings.Contains(text, notFoundMarker):
		return resource.ResumeOutcome{Kind: resource.ResumeNotFound, State: sess.capture()}, nil
	}

	info, err := parseResultPage(text, c.cfg.SearchURL)
	if err != nil {
		return resource.ResumeOutcome{}, err
	}

	unlockURL, err := substituteHost(c.cfg.SecurePDFURL, info.PDFURL)
	if err != nil {
		return resource.ResumeOutcome{}, err
	}
	headers := map[string]string{"Referer": c.cfg.SearchURL}
	if _, err := sess.postForm(ctx, unlockURL, info.UnlockForm, headers); err != nil {
		return resource.ResumeOutcome{}, fmt.Errorf("failed to unlock download: %w", err)
	}

	return resource.ResumeOutcome{
		Kind: resource.ResumeResolved,
		Artifact: &resource.ArtifactRef{
			URL:      info.PDFURL,
			FileName: domain.ArtifactFileName(resourceKey),
			Headers:  headers,
		},
		State: sess.capture(),
	}, nil
}

// RefreshChallenge fetches a new captcha image within the same session.
func (c *Client) RefreshChallenge(ctx context.Context, state domain.SessionState) (resource.Challenge, error) {
	sess, err := c.newSession(state)
	if err != nil {
		return resource.Challenge{}, err
	}
	return c.fetchChallenge(ctx, sess)
}

// Materialize streams the PDF into the artifact directory.
func (c *Client) Materialize(
	ctx context.Context,
	state domain.SessionState,
	ref resource.ArtifactRef,
) (string, error) {
	sess, err := c.newSession(state)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: bad artifact url: %v", domain.ErrTransientExternal, err)
	}
	for k, v := range ref.Headers {
		req.Header.Set(k, v)
	}
	resp, err := sess.do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	path, err := c.files.Save(ctx, ref.FileName, resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to store artifact: %w", err)
	}
	return path, nil
}

func (c *Client) fetchChallenge(ctx context.Context, sess *session) (resource.Challenge, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.VerifyCodeURL, nil)
	if err != nil {
		return resource.Challenge{}, fmt.Errorf("%w: bad captcha url: %v", domain.ErrTransientExternal, err)
	}
	resp, err := sess.do(req)
	if err != nil {
		return resource.Challenge{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	image, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return resource.Challenge{}, fmt.Errorf("%w: reading captcha: %v", domain.ErrTransientExternal, err)
	}
	mt := mimetype.Detect(image)
	if len(image) == 0 || !strings.HasPrefix(mt.String(), "image/") {
		return resource.Challenge{}, fmt.Errorf("%w: captcha response is not an image (%s)",
			domain.ErrTransientExternal, mt.String())
	}

	return resource.Challenge{Image: image, ImageMIME: mt.String(), State: sess.capture()}, nil
}

// session is one task's cookie jar for the duration of a single call.
type session struct {
	http      *http.Client
	jar       *cookiejar.Jar
	userAgent string
	origins   []*url.URL
}

func (c *Client) newSession(state domain.SessionState) (*session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	var origins []*url.URL
	seen := map[string]bool{}
	for _, raw := range []string{c.cfg.VerifyURL, c.cfg.VerifyCodeURL, c.cfg.SearchURL, c.cfg.SecurePDFURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		origin := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
		if !seen[origin.String()] {
			seen[origin.String()] = true
			origins = append(origins, origin)
		}
	}

	sess := &session{
		http: &http.Client{
			Jar:       jar,
			Timeout:   c.cfg.RequestTimeout(),
			Transport: c.transport,
		},
		jar:       jar,
		userAgent: c.cfg.UserAgent,
		origins:   origins,
	}
	sess.restore(state)
	return sess, nil
}

// restore loads saved cookies back into the jar.
func (s *session) restore(state domain.SessionState) {
	for _, ck := range state.Cookies {
		for _, origin := range s.origins {
			if ck.Domain != "" && ck.Domain != origin.Hostname() {
				continue
			}
			path := ck.Path
			if path == "" {
				path = "/"
			}
			s.jar.SetCookies(origin, []*http.Cookie{{Name: ck.Name, Value: ck.Value, Path: path}})
		}
	}
}

// capture snapshots the jar into a SessionState.
func (s *session) capture() domain.SessionState {
	var state domain.SessionState
	seen := map[string]bool{}
	for _, origin := range s.origins {
		for _, ck := range s.jar.Cookies(origin) {
			key := origin.Hostname() + "|" + ck.Name
			if seen[key] {
				continue
			}
			seen[key] = true
			state.Cookies = append(state.Cookies, domain.Cookie{
				Name:   ck.Name,
				Value:  ck.Value,
				Domain: origin.Hostname(),
				Path:   "/",
			})
		}
	}
	return state
}

func (s *session) do(req *http.Request) (*http.Response, error) {
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	start := time.Now()
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrTransientExternal, req.Method, req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s %s returned status %d after %s",
			domain.ErrTransientExternal, req.Method, req.URL.Path, resp.StatusCode,
			time.Since(start).Round(time.Millisecond))
	}
	return resp, nil
}

func (s *session) postForm(ctx context.Context, target string, form url.Values, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: bad url %q: %v", domain.ErrTransientExternal, target, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", domain.ErrTransientExternal, req.URL.Path, err)
	}
	return body, nil
}

// substituteHost points the unlock endpoint at the host serving the PDF.
func substituteHost(template, pdfURL string) (string, error) {
	base, err := url.Parse(template)
	if err != nil {
		return "", fmt.Errorf("%w: bad securepdf url: %v", domain.ErrTransientExternal, err)
	}
	target, err := url.Parse(pdfURL)
	if err != nil {
		return "", fmt.Errorf("%w: bad pdf url: %v", domain.ErrTransientExternal, err)
	}
	base.Scheme = target.Scheme
	base.Host = target.Host
	return base.String(), nil
}
