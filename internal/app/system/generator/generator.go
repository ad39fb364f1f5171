// Package generator is the client for the upstream timetable generation
// service: generate, import and export.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrNotConfigured is returned when no generator URL is set.
var ErrNotConfigured = errors.New("generator: service URL not configured")

// Error is a non-2xx response from the generator.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("generator: %d %s", e.Status, e.Message)
}

// UserMessage is the upstream message, shown to the admin as-is.
func (e *Error) UserMessage() string { return e.Message }

// Config describes how to reach the generator.
type Config struct {
	BaseURL string

	// OAuth2 client credentials; used when TokenURL is set.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string

	Timeout time.Duration
}

// Client talks to the generator service.
type Client struct {
	base string
	http *http.Client
	log  *zap.Logger
}

// New builds a client. With cfg.TokenURL set, every request carries a
// client-credentials bearer token.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	var hc *http.Client
	if cfg.TokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		hc = cc.Client(context.Background())
		hc.Timeout = timeout
	} else {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		http: hc,
		log:  logger,
	}
}

// Configured reports whether the client has somewhere to send requests.
func (c *Client) Configured() bool { return c != nil && c.base != "" }

// GenerateRequest asks the generator to build timetables.
type GenerateRequest struct {
	SectionIDs []string `json:"section_ids,omitempty"`
	Semester   string   `json:"semester,omitempty"`
	Replace    bool     `json:"replace"`
}

// GenerateResult is the generator's summary of a run.
type GenerateResult struct {
	Message string `json:"message"`
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
}

// Generate runs the upstream generator.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	var res GenerateResult
	body, err := json.Marshal(req)
	if err != nil {
		return res, fmt.Errorf("encode generate request: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/timetables/generate", "application/json", bytes.NewReader(body))
	if err != nil {
		return res, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil && !errors.Is(err, io.EOF) {
		return res, fmt.Errorf("decode generate response: %w", err)
	}
	c.log.Info("timetables generated",
		zap.Int("created", res.Created),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// ImportResult is the generator's summary of an import.
type ImportResult struct {
	Message  string `json:"message"`
	Imported int    `json:"imported"`
}

// Import uploads a timetable file as multipart form field "file".
func (c *Client) Import(ctx context.Context, filename, contentType string, r io.Reader) (ImportResult, error) {
	var res ImportResult

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(filePartHeader(filename, contentType))
	if err != nil {
		return res, fmt.Errorf("build import body: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return res, fmt.Errorf("read import file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return res, fmt.Errorf("build import body: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/timetables/import", mw.FormDataContentType(), &buf)
	if err != nil {
		return res, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil && !errors.Is(err, io.EOF) {
		return res, fmt.Errorf("decode import response: %w", err)
	}
	c.log.Info("timetables imported", zap.String("filename", filename), zap.Int("imported", res.Imported))
	return res, nil
}

// Export streams the generator's timetable export. The caller closes the body.
func (c *Client) Export(ctx context.Context) (io.ReadCloser, string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/timetables/export", "", nil)
	if err != nil {
		return nil, "", err
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return resp.Body, ct, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("build generator request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("generator request failed", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("generator %s %s: %w", method, path, err)
	}
	c.log.Debug("generator response",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, &Error{Status: resp.StatusCode, Message: upstreamMessage(resp)}
	}
	return resp, nil
}

// upstreamMessage pulls "message" or "error" from a JSON body, else the raw text.
func upstreamMessage(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &env) == nil {
		if env.Message != "" {
			return env.Message
		}
		if env.Error != "" {
			return env.Error
		}
	}
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return msg
	}
	return http.StatusText(resp.StatusCode)
}
