// Package market is the HTTP client for the marketplace service.
package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/jask/unimarket/internal/session"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 4 << 20
)

// Options configures a Client.
type Options struct {
	BaseURL       string
	Timeout       time.Duration
	LoginEncoding LoginEncoding
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

// Client talks to one marketplace server.
type Client struct {
	baseURL       string
	http          *http.Client
	loginEncoding LoginEncoding
	logger        *slog.Logger
}

// New builds a Client. HTTPClient may be injected by tests; otherwise one is
// created with Timeout (15s when zero).
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("market: invalid base url %q", opts.BaseURL)
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	enc := opts.LoginEncoding
	if enc == "" {
		enc = LoginForm
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{baseURL: base, http: hc, loginEncoding: enc, logger: logger}, nil
}

// BaseURL returns the server root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Health calls the liveness probe.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var out HealthStatus
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return out, err
	}
	err = c.send(req, "health", nil, &out)
	return out, err
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, creds Credentials) (User, error) {
	var out User
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/auth/register", creds)
	if err != nil {
		return out, err
	}
	err = c.send(req, "register", nil, &out)
	return out, err
}

// Login exchanges credentials for a bearer token. The body is form encoded
// unless the client was configured with LoginJSON.
func (c *Client) Login(ctx context.Context, creds Credentials) (session.Token, error) {
	var req *http.Request
	var err error
	switch c.loginEncoding {
	case LoginJSON:
		req, err = c.newJSONRequest(ctx, http.MethodPost, "/auth/login", creds)
	default:
		form := url.Values{}
		form.Set("username", creds.Username)
		form.Set("password", creds.Password)
		req, err = c.newRequest(ctx, http.MethodPost, "/auth/login", nil, strings.NewReader(form.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return "", err
	}
	var out tokenResponse
	if err := c.send(req, "login", nil, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", &DecodeError{Op: "login", Err: errors.New("missing access_token")}
	}
	return session.Token(out.AccessToken), nil
}

// ListCategories returns every category in server order.
func (c *Client) ListCategories(ctx context.Context, sess session.Provider) ([]Category, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/categories", nil, nil)
	if err != nil {
		return nil, err
	}
	var out []Category
	if err := c.send(req, "list categories", sess, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCategory adds a category.
func (c *Client) CreateCategory(ctx context.Context, sess session.Provider, name string) (Category, error) {
	var out Category
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/categories", map[string]string{"name": name})
	if err != nil {
		return out, err
	}
	err = c.send(req, "create category", sess, &out)
	return out, err
}

// ListItems fetches one page of items for the given query parameters.
func (c *Client) ListItems(ctx context.Context, sess session.Provider, query url.Values) (Page, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/items", query, nil)
	if err != nil {
		return Page{}, err
	}
	var env pageEnvelope
	if err := c.send(req, "list items", sess, &env); err != nil {
		return Page{}, err
	}
	if env.Items == nil {
		return Page{}, &DecodeError{Op: "list items", Err: errors.New("missing items")}
	}
	if env.Offset == nil {
		return Page{}, &DecodeError{Op: "list items", Err: errors.New("missing offset")}
	}
	return Page{
		Items:      *env.Items,
		Offset:     *env.Offset,
		Limit:      env.Limit,
		Total:      env.Total,
		NextOffset: env.NextOffset,
	}, nil
}

// CreateItem submits a new item and returns the server's record.
func (c *Client) CreateItem(ctx context.Context, sess session.Provider, item NewItem) (Item, error) {
	var out Item
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/items", item)
	if err != nil {
		return out, err
	}
	err = c.send(req, "create item", sess, &out)
	return out, err
}

// UploadImage attaches asset to an existing item as multipart field "file".
// The response body is not interpreted.
func (c *Client) UploadImage(ctx context.Context, sess session.Provider, itemID int64, asset Asset) error {
	body, contentType, err := multipartBody(asset)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, fmt.Sprintf("/%d/upload-image", itemID), nil, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	return c.send(req, "upload image", sess, nil)
}

// Probe reports whether rawURL answers a HEAD request with a 2xx status.
// Any other status is a plain "not there"; only transport failures are errors.
func (c *Client) Probe(ctx context.Context, rawURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false, errors.Wrap(err, "create probe request")
	}
	res, err := c.http.Do(req)
	if err != nil {
		return false, &NetworkError{Op: "probe", Err: err}
	}
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
	return res.StatusCode >= 200 && res.StatusCode < 300, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}
	req, err := c.newRequest(ctx, method, path, nil, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// send executes req, attaching the bearer credential when sess has one, and
// decodes a 2xx JSON body into out (skipped when out is nil).
func (c *Client) send(req *http.Request, op string, sess session.Provider, out any) error {
	ctx := req.Context()
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	if sess != nil {
		if tok, ok := sess.Credential(); ok {
			req.Header.Set("Authorization", "Bearer "+string(tok))
		}
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "request failed",
			"op", op, "method", req.Method, "path", req.URL.Path, "request_id", reqID, "error", err)
		return &NetworkError{Op: op, Err: err}
	}
	defer func() {
		if closeErr := res.Body.Close(); closeErr != nil {
			c.logger.WarnContext(ctx, "failed to close response body", "op", op, "error", closeErr)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return &NetworkError{Op: op, Err: errors.Wrap(err, "read body")}
	}
	c.logger.DebugContext(ctx, "request done",
		"op", op, "method", req.Method, "path", req.URL.Path, "status", res.StatusCode,
		"request_id", reqID, "duration", time.Since(start))

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &HTTPError{Op: op, Status: res.StatusCode, Body: string(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func multipartBody(asset Asset) (io.Reader, string, error) {
	if len(asset.Data) == 0 {
		return nil, "", errors.New("upload image: empty asset")
	}
	filename := asset.Filename
	if filename == "" {
		filename = "image"
	}
	ct := asset.ContentType
	if ct == "" {
		ct = http.DetectContentType(asset.Data)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filename)))
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", errors.Wrap(err, "create multipart part")
	}
	if _, err := part.Write(asset.Data); err != nil {
		return nil, "", errors.Wrap(err, "write multipart part")
	}
	if err := mw.Close(); err != nil {
		return nil, "", errors.Wrap(err, "close multipart")
	}
	return &buf, mw.FormDataContentType(), nil
}
