// Package pinclient is the HTTP client for the IPFS pinning service (Pinata).
// Operations: PinFile (POST /pinning/pinFileToIPFS, streaming multipart)
// and Unpin (DELETE /pinning/unpin/{cid}).
package pinclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PinResult is the pinning service answer for an uploaded file.
type PinResult struct {
	CID         string    `json:"IpfsHash"`
	Size        int64     `json:"PinSize"`
	Timestamp   time.Time `json:"Timestamp"`
	IsDuplicate bool      `json:"isDuplicate"`
}

// APIError is returned for any non-2xx answer from the pinning service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pinning service returned status %d: %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from the pinning service.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// maxErrorBody limits how much of an error response is kept.
const maxErrorBody = 4096

// Client talks to the Pinata pinning API.
type Client struct {
	baseURL    string
	jwt        string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates the pinning client.
// baseURL is the API root (https://api.pinata.cloud), jwt the bearer token.
func New(baseURL, jwt string, timeout time.Duration, logger *slog.Logger) *Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 10,
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		jwt:     jwt,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger: logger.With(slog.String("component", "pin_client")),
	}
}

// PinFile uploads content and pins it. The body is streamed to the
// service through a pipe, the file is never fully buffered.
func (c *Client) PinFile(ctx context.Context, filename string, content io.Reader) (*PinResult, error) {
	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeMultipart(mw, filename, content))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pinning/pinFileToIPFS", pr)
	if err != nil {
		return nil, fmt.Errorf("create PinFile request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("PinFile request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, readAPIError(resp)
	}

	var result PinResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode PinFile response: %w", err)
	}
	if result.CID == "" {
		return nil, errors.New("pinning service returned an empty CID")
	}

	c.logger.Debug("File pinned",
		slog.String("cid", result.CID),
		slog.String("filename", filename),
		slog.Int64("pin_size", result.Size),
		slog.Bool("duplicate", result.IsDuplicate),
		slog.Duration("duration", time.Since(start)),
	)

	return &result, nil
}

// Unpin removes the pin for cid. A 404 is reported as an *APIError,
// callers decide whether it matters.
func (c *Client) Unpin(ctx context.Context, cid string) error {
	reqURL := c.baseURL + "/pinning/unpin/" + url.PathEscape(cid)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create Unpin request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Unpin request for %s: %w", cid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(resp)
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.jwt)
}

// writeMultipart writes the "file" part followed by pinataMetadata.
func writeMultipart(mw *multipart.Writer, filename string, content io.Reader) error {
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("copy file content: %w", err)
	}

	meta, err := json.Marshal(map[string]string{"name": filename})
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := mw.WriteField("pinataMetadata", string(meta)); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	return mw.Close()
}

func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
