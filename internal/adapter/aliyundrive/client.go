package aliyundrive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/semmidev/alipan-runner/internal/config"
	"github.com/semmidev/alipan-runner/internal/domain"
)

// TokenSource hands out bearer tokens at request time.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// Client talks to the Aliyun Drive open endpoints. Every call is a JSON POST;
// 200 is the only success status.
type Client struct {
	endpoint   string
	userURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     Logger

	defaultDriveID string
}

func NewClient(cfg *config.DriveConfig, tokens TokenSource, httpClient *http.Client, logger Logger) (*Client, error) {
	if err := config.ValidateEndpoint(cfg.Endpoint); err != nil {
		return nil, err
	}
	if err := config.ValidateEndpoint(cfg.UserURL); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		userURL:    cfg.UserURL,
		httpClient: httpClient,
		tokens:     tokens,
		logger:     logger,
	}, nil
}

func (c *Client) Identity(ctx context.Context) (*domain.Identity, error) {
	var identity domain.Identity
	if err := c.post(ctx, c.userURL, struct{}{}, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// ResolveDefaultDrive looks up the user's drive once and caches it for the
// lifetime of the client.
func (c *Client) ResolveDefaultDrive(ctx context.Context) (string, error) {
	if c.defaultDriveID != "" {
		return c.defaultDriveID, nil
	}

	identity, err := c.Identity(ctx)
	if err != nil {
		return "", err
	}

	driveID := identity.DriveID()
	if driveID == "" {
		return "", errors.New("user info returned no drive id")
	}

	c.logger.Debugf("Signed in as %s (user %s), using drive %s", identity.NickName, identity.UserID, driveID)
	c.defaultDriveID = driveID
	return driveID, nil
}

func (c *Client) DefaultDriveID() string {
	return c.defaultDriveID
}

func (c *Client) Capacity(ctx context.Context) (*domain.Capacity, error) {
	var capacity domain.Capacity
	if err := c.post(ctx, c.endpoint+capacityPath, struct{}{}, &capacity); err != nil {
		return nil, err
	}
	return &capacity, nil
}

// List returns every entry directly under folderID, following next_marker
// until the provider stops returning one.
func (c *Client) List(ctx context.Context, folderID, driveID string) ([]domain.FileEntry, error) {
	driveID, err := c.drive(driveID)
	if err != nil {
		return nil, err
	}

	var entries []domain.FileEntry
	marker := ""
	for {
		var page itemsResponse
		req := listRequest{DriveID: driveID, ParentFileID: folderID, Marker: marker}
		if err := c.post(ctx, c.endpoint+listPath, req, &page); err != nil {
			return nil, err
		}

		entries = append(entries, page.Items...)
		if page.NextMarker == "" || page.NextMarker == marker {
			return entries, nil
		}
		marker = page.NextMarker
	}
}

func (c *Client) PathOf(ctx context.Context, fileID, driveID string) ([]domain.FileEntry, error) {
	driveID, err := c.drive(driveID)
	if err != nil {
		return nil, err
	}

	var resp itemsResponse
	if err := c.post(ctx, c.endpoint+getPathPath, driveFileRequest{DriveID: driveID, FileID: fileID}, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Delete sends a single-item batch and reports the sub-response matching
// fileID. Errors are reserved for failures of the batch call itself.
func (c *Client) Delete(ctx context.Context, fileID, driveID string) (domain.DeleteOutcome, error) {
	driveID, err := c.drive(driveID)
	if err != nil {
		return domain.DeleteOutcome{}, err
	}

	req := batchRequest{
		Requests: []batchItem{{
			Body:    driveFileRequest{DriveID: driveID, FileID: fileID},
			Headers: map[string]string{"Content-Type": "application/json"},
			ID:      fileID,
			Method:  http.MethodPost,
			URL:     batchDeleteURL,
		}},
		Resource: batchResource,
	}

	var resp batchResponse
	if err := c.post(ctx, c.endpoint+batchPath, req, &resp); err != nil {
		return domain.DeleteOutcome{}, err
	}

	return matchDeleteOutcome(fileID, resp.Responses), nil
}

func matchDeleteOutcome(fileID string, responses []json.RawMessage) domain.DeleteOutcome {
	for _, raw := range responses {
		var item batchItemStatus
		if err := json.Unmarshal(raw, &item); err != nil || item.ID != fileID {
			continue
		}
		if item.Status == http.StatusNoContent {
			return domain.DeleteOutcome{Status: domain.DeleteSucceeded, StatusCode: item.Status}
		}
		return domain.DeleteOutcome{Status: domain.DeleteFailed, StatusCode: item.Status, Details: raw}
	}
	return domain.DeleteOutcome{Status: domain.DeleteUnknown}
}

func (c *Client) drive(driveID string) (string, error) {
	if driveID != "" {
		return driveID, nil
	}
	if c.defaultDriveID == "" {
		return "", errors.New("default drive id not resolved")
	}
	return c.defaultDriveID, nil
}

// post sends one authorized request. A 401 invalidates the session token and
// the request is retried once with a freshly renewed one.
func (c *Client) post(ctx context.Context, url string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request for %s: %w", url, err)
	}

	for attempt := 0; ; attempt++ {
		status, body, err := c.doOnce(ctx, url, payload)
		if err != nil {
			return err
		}

		switch {
		case status == http.StatusOK:
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("decode response from %s: %w", url, err)
			}
			return nil

		case status == http.StatusUnauthorized && attempt == 0:
			c.logger.Warnf("Access token rejected by %s, renewing", url)
			c.tokens.Invalidate()

		case status == http.StatusUnauthorized:
			return &domain.ResponseError{Kind: domain.KindUnauthorized, StatusCode: status, Endpoint: url, Body: body}

		default:
			return &domain.ResponseError{Kind: domain.KindOther, StatusCode: status, Endpoint: url, Body: body}
		}
	}
}

func (c *Client) doOnce(ctx context.Context, url string, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, &domain.EndpointError{URL: url, Err: err}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("obtaining token: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("POST %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response from %s: %w", url, err)
	}

	return resp.StatusCode, body, nil
}
