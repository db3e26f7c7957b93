package flags

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tphakala/flagmigrate/internal/errors"
	"github.com/tphakala/flagmigrate/internal/httpclient"
	"github.com/tphakala/flagmigrate/internal/json"
	"github.com/tphakala/flagmigrate/internal/logger"
)

// codeAlreadyFlagged is the status code the flags API returns for duplicate targets.
const codeAlreadyFlagged = "already-flagged"

// maxErrorBody caps how much of an error response is read into messages.
const maxErrorBody = 4 << 10

// HTTPClient implements Service against a remote flags API (v3 write API).
type HTTPClient struct {
	client  *httpclient.Client
	baseURL string
	logger  logger.Logger
}

var _ Service = (*HTTPClient)(nil)

// envelope is the response wrapper used by the v3 API.
type envelope struct {
	Status struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
	Response json.RawMessage `json:"response"`
}

type createRequest struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	UID      string `json:"uid"`
	Reason   string `json:"reason"`
	Datetime int64  `json:"datetime"`
}

type updateRequest struct {
	UID string `json:"uid"`
	Patch
}

type noteRequest struct {
	UID      string `json:"uid"`
	Note     string `json:"note"`
	Datetime int64  `json:"datetime"`
}

// NewHTTPClient creates a client for the flags API rooted at baseURL.
func NewHTTPClient(client *httpclient.Client, baseURL string, log logger.Logger) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Newf("invalid flags API base URL %q", baseURL).
			Component("flags").
			Category(errors.CategoryConfiguration).
			Build()
	}

	return &HTTPClient{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  log.Module("flags"),
	}, nil
}

// Create posts a new flag.
func (c *HTTPClient) Create(ctx context.Context, targetType, targetID, reporter, reason string, datetime int64) (*Flag, error) {
	if err := validateCreate(targetType, targetID, reporter, datetime); err != nil {
		return nil, err
	}

	body := createRequest{Type: targetType, ID: targetID, UID: reporter, Reason: reason, Datetime: datetime}
	var flag Flag
	if err := c.call(ctx, http.MethodPost, "/api/v3/flags", body, &flag); err != nil {
		return nil, err
	}
	if flag.ID == 0 {
		return nil, c.transportError(fmt.Errorf("response carried no flag id"), http.MethodPost, "/api/v3/flags")
	}
	return &flag, nil
}

// Update applies patch to a flag.
func (c *HTTPClient) Update(ctx context.Context, flagID int64, actor string, patch Patch) error {
	if err := validatePatch(patch); err != nil {
		return err
	}
	if patch.IsEmpty() {
		return nil
	}
	return c.call(ctx, http.MethodPut, flagPath(flagID), updateRequest{UID: actor, Patch: patch}, nil)
}

// AppendNote posts a note to a flag.
func (c *HTTPClient) AppendNote(ctx context.Context, flagID int64, actor, content string, datetime int64) error {
	if content == "" {
		return fmt.Errorf("%w: empty note", ErrValidation)
	}
	return c.call(ctx, http.MethodPost, flagPath(flagID)+"/notes", noteRequest{UID: actor, Note: content, Datetime: datetime}, nil)
}

func flagPath(flagID int64) string {
	return "/api/v3/flags/" + strconv.FormatInt(flagID, 10)
}

// call sends body and decodes the envelope's response into out when out is non-nil.
func (c *HTTPClient) call(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.client.DoJSON(ctx, method, c.baseURL+path, body)
	if err != nil {
		return c.transportError(err, method, path)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close response body", logger.Error(closeErr))
		}
	}()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		var env envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return c.transportError(fmt.Errorf("decode response: %w", err), method, path)
		}
		if err := json.Unmarshal(env.Response, out); err != nil {
			return c.transportError(fmt.Errorf("decode response payload: %w", err), method, path)
		}
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var env envelope
	_ = json.Unmarshal(raw, &env)
	message := env.Status.Message
	if message == "" {
		message = strings.TrimSpace(string(raw))
	}

	switch {
	case resp.StatusCode == http.StatusConflict && env.Status.Code == codeAlreadyFlagged:
		return fmt.Errorf("%w: %s", ErrAlreadyFlagged, message)
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrValidation, message)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrFlagNotFound, message)
	default:
		return c.transportError(fmt.Errorf("unexpected status %d: %s", resp.StatusCode, message), method, path)
	}
}

func (c *HTTPClient) transportError(err error, method, path string) error {
	return errors.New(fmt.Errorf("flags API %s %s: %w", method, path, err)).
		Component("flags").
		Category(errors.CategoryNetwork).
		Context("method", method).
		Context("path", path).
		Build()
}
