// Package box talks to the Box content API on behalf of the pipeline.
package box

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Veraticus/bates-must-flow/internal/common"
	"github.com/Veraticus/bates-must-flow/internal/model"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const pageLimit = 1000

// Client implements the document store over the Box API. Calls made with an
// event token act as that token's user; calls without one use the service
// account, acting as creds.UserID when set.
type Client struct {
	http    *http.Client
	service oauth2.TokenSource
	limiter *rate.Limiter
	logger  *slog.Logger
	baseURL string
	retry   common.RetryOptions
}

// File is the subset of Box file metadata the pipeline uses.
type File struct {
	Parent model.Folder `json:"parent"`
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Size   int64        `json:"size"`
}

type item struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

type itemCollection struct {
	Entries    []item `json:"entries"`
	TotalCount int    `json:"total_count"`
	Offset     int    `json:"offset"`
}

// NewClient creates a Box client. Service credentials are optional; without
// them every call needs an access token.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  common.OrDefault(logger),
		retry: common.RetryOptions{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: cfg.RetryDelay,
			MaxDelay:     cfg.MaxRetryDelay,
		},
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	if cfg.HasServiceCredentials() {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
			EndpointParams: url.Values{
				"box_subject_type": {"enterprise"},
				"box_subject_id":   {cfg.EnterpriseID},
			},
		}
		tokenCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, c.http)
		c.service = cc.TokenSource(tokenCtx)
	}
	return c, nil
}

// GetFolderName returns a folder's name.
func (c *Client) GetFolderName(ctx context.Context, creds model.Credentials, folderID string) (string, error) {
	var folder model.Folder
	path := "/folders/" + url.PathEscape(folderID) + "?fields=id,name"
	if err := c.getJSON(ctx, creds, path, &folder); err != nil {
		return "", fmt.Errorf("failed to get folder %s: %w", folderID, err)
	}
	return folder.Name, nil
}

// ListFolders returns every subfolder of parentID, following offset pagination.
func (c *Client) ListFolders(ctx context.Context, creds model.Credentials, parentID string) ([]model.Folder, error) {
	var folders []model.Folder
	offset := 0
	for {
		q := url.Values{}
		q.Set("fields", "id,name,type")
		q.Set("limit", strconv.Itoa(pageLimit))
		q.Set("offset", strconv.Itoa(offset))

		var page itemCollection
		path := "/folders/" + url.PathEscape(parentID) + "/items?" + q.Encode()
		if err := c.getJSON(ctx, creds, path, &page); err != nil {
			return nil, fmt.Errorf("failed to list folder %s: %w", parentID, err)
		}

		for _, e := range page.Entries {
			if e.Type == "folder" {
				folders = append(folders, model.Folder{ID: e.ID, Name: e.Name})
			}
		}

		offset += len(page.Entries)
		if len(page.Entries) == 0 || offset >= page.TotalCount {
			break
		}
	}

	c.logger.Debug("Listed Box folder", "parent_id", parentID, "folders", len(folders))
	return folders, nil
}

// Download streams a file's content. The caller closes the reader.
func (c *Client) Download(ctx context.Context, creds model.Credentials, fileID string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, creds, http.MethodGet, "/files/"+url.PathEscape(fileID)+"/content", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download file %s: %w", fileID, err)
	}
	return resp.Body, nil
}

// RenameAndMove renames a file and moves it in a single update, so the file
// is never observable renamed but not moved.
func (c *Client) RenameAndMove(ctx context.Context, creds model.Credentials, fileID, newName, targetFolderID string) error {
	body := map[string]any{
		"name":   newName,
		"parent": map[string]string{"id": targetFolderID},
	}
	var updated File
	if err := c.sendJSON(ctx, creds, http.MethodPut, "/files/"+url.PathEscape(fileID)+"?fields=id,name,parent", body, &updated); err != nil {
		return fmt.Errorf("failed to rename and move file %s: %w", fileID, err)
	}
	if updated.Name != newName || updated.Parent.ID != targetFolderID {
		return fmt.Errorf("file %s update not applied: name %q in folder %s", fileID, updated.Name, updated.Parent.ID)
	}

	c.logger.Info("Renamed and moved file", "file_id", fileID, "name", newName, "folder_id", targetFolderID)
	return nil
}

// FileInfo returns a file's name, size and parent folder.
func (c *Client) FileInfo(ctx context.Context, creds model.Credentials, fileID string) (File, error) {
	var f File
	if err := c.getJSON(ctx, creds, "/files/"+url.PathEscape(fileID)+"?fields=id,name,size,parent", &f); err != nil {
		return File{}, fmt.Errorf("failed to get file %s: %w", fileID, err)
	}
	return f, nil
}

// UserEmail returns a user's login address.
func (c *Client) UserEmail(ctx context.Context, creds model.Credentials, userID string) (string, error) {
	var user struct {
		Login string `json:"login"`
	}
	if err := c.getJSON(ctx, creds, "/users/"+url.PathEscape(userID)+"?fields=login", &user); err != nil {
		return "", fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	if user.Login == "" {
		return "", fmt.Errorf("user %s has no login: %w", userID, common.ErrNotFound)
	}
	return user.Login, nil
}

func (c *Client) getJSON(ctx context.Context, creds model.Credentials, path string, out any) error {
	return c.sendJSON(ctx, creds, http.MethodGet, path, nil, out)
}

func (c *Client) sendJSON(ctx context.Context, creds model.Credentials, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = data
	}

	resp, err := c.do(ctx, creds, method, path, body)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("Failed to close response body", "error", cerr)
		}
	}()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// do issues a request. Non-2xx responses are returned as *APIError. GETs
// that fail with 429 or 5xx are retried with backoff; writes are never
// retried, since a failed update may still have been applied.
func (c *Client) do(ctx context.Context, creds model.Credentials, method, path string, body []byte) (*http.Response, error) {
	token, err := c.token(creds)
	if err != nil {
		return nil, err
	}

	if method != http.MethodGet {
		return c.attempt(ctx, creds, token, method, path, body)
	}

	var resp *http.Response
	err = common.WithRetry(ctx, func() error {
		var aerr error
		resp, aerr = c.attempt(ctx, creds, token, method, path, body)
		return classify(aerr)
	}, c.retry)
	return resp, err
}

func (c *Client) attempt(ctx context.Context, creds model.Credentials, token *oauth2.Token, method, path string, body []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	token.SetAuthHeader(req)
	if creds.AccessToken == "" && creds.UserID != "" {
		req.Header.Set("As-User", creds.UserID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		return nil, decodeError(resp)
	}
	return resp, nil
}

// classify marks which failures are worth another attempt.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return common.Permanent(err)
		}
		return err
	}
	switch {
	case apiErr.Status == http.StatusTooManyRequests:
		return &common.RetryableError{Err: err, Retryable: true, Delay: apiErr.RetryAfter}
	case apiErr.Status >= 500:
		return err
	default:
		return common.Permanent(err)
	}
}

func (c *Client) token(creds model.Credentials) (*oauth2.Token, error) {
	if creds.AccessToken != "" {
		return &oauth2.Token{AccessToken: creds.AccessToken, TokenType: "Bearer"}, nil
	}
	if c.service == nil {
		return nil, fmt.Errorf("no access token and no service credentials: %w", common.ErrNoCredentials)
	}
	tok, err := c.service.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain service token: %w", err)
	}
	return tok, nil
}
