package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kokistudios/brancho/internal/ui"
)

// DefaultEpicLinkField is the custom field Jira Cloud uses for the epic link.
const DefaultEpicLinkField = "customfield_10008"

const (
	requestTimeout  = 15 * time.Second
	retryMaxElapsed = 10 * time.Second
)

// Connection holds the settings needed to reach one Jira instance.
type Connection struct {
	Host          string
	Username      string
	Credential    string
	EpicLinkField string
}

func (c Connection) epicLinkField() string {
	if c.EpicLinkField == "" {
		return DefaultEpicLinkField
	}
	return c.EpicLinkField
}

// Issue is the subset of a Jira issue that branch naming needs.
type Issue struct {
	Key      string
	Type     string
	Summary  string
	Parent   string
	EpicLink string
}

// ParentRef returns the key of the issue's immediate ancestor. The epic link
// wins over the generic parent field when both are set.
func (i *Issue) ParentRef() string {
	if i.EpicLink != "" {
		return i.EpicLink
	}
	return i.Parent
}

// ErrorResult carries the error messages Jira returned instead of an issue.
type ErrorResult struct {
	Status   int
	Messages []string
}

func (e *ErrorResult) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("jira: unexpected status %d", e.Status)
	}
	return "jira: " + strings.Join(e.Messages, "; ")
}

// Client fetches issues over the Jira REST API v2.
type Client struct {
	HTTPClient *http.Client
	// NewBackOff returns the retry policy for one fetch. BackOff values are
	// stateful, so a fresh one is built per call.
	NewBackOff func() backoff.BackOff
}

// NewClient creates a client with default timeouts and retry policy.
func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: requestTimeout},
	}
}

func newRetryBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = retryMaxElapsed
	return bo
}

// FetchIssue loads one issue by key. Tracker rejections come back as
// *ErrorResult; transient failures (network, 429, 5xx) are retried.
func (c *Client) FetchIssue(ctx context.Context, key string, conn Connection) (*Issue, error) {
	if conn.Host == "" {
		return nil, errors.New("jira: host is not configured")
	}
	credential, err := conn.credential()
	if err != nil {
		return nil, err
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: requestTimeout}
	}

	endpoint := strings.TrimRight(conn.Host, "/") + "/rest/api/2/issue/" + url.PathEscape(key)

	var issue *Issue
	op := func() error {
		ui.Logger.Debug("jira request", "key", key, "url", endpoint)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("jira: create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		req.SetBasicAuth(conn.Username, credential)

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(fmt.Errorf("jira: request failed: %w", err))
			}
			return fmt.Errorf("jira: request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("jira: read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return decodeError(resp.StatusCode, body)
		case resp.StatusCode >= 300:
			return backoff.Permanent(decodeError(resp.StatusCode, body))
		}

		parsed, err := decodeIssue(body, conn.epicLinkField())
		if err != nil {
			return backoff.Permanent(err)
		}
		issue = parsed
		return nil
	}

	newBackOff := c.NewBackOff
	if newBackOff == nil {
		newBackOff = newRetryBackOff
	}
	if err := backoff.Retry(op, backoff.WithContext(newBackOff(), ctx)); err != nil {
		return nil, err
	}
	return issue, nil
}

type errorResponse struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}

func decodeError(status int, body []byte) *ErrorResult {
	result := &ErrorResult{Status: status}
	var payload errorResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return result
	}
	result.Messages = append(result.Messages, payload.ErrorMessages...)
	fields := make([]string, 0, len(payload.Errors))
	for field := range payload.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		result.Messages = append(result.Messages, fmt.Sprintf("%s: %s", field, payload.Errors[field]))
	}
	return result
}

type issueResponse struct {
	Key           string                     `json:"key"`
	Fields        map[string]json.RawMessage `json:"fields"`
	ErrorMessages []string                   `json:"errorMessages"`
}

type keyRef struct {
	Key string `json:"key"`
}

type nameRef struct {
	Name string `json:"name"`
}

func decodeIssue(body []byte, epicLinkField string) (*Issue, error) {
	var raw issueResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("jira: decode issue: %w", err)
	}
	if len(raw.ErrorMessages) > 0 {
		return nil, &ErrorResult{Status: http.StatusOK, Messages: raw.ErrorMessages}
	}

	issue := &Issue{Key: raw.Key}

	var issueType nameRef
	if err := unmarshalField(raw.Fields, "issuetype", &issueType); err != nil {
		return nil, err
	}
	issue.Type = issueType.Name

	if err := unmarshalField(raw.Fields, "summary", &issue.Summary); err != nil {
		return nil, err
	}

	var parent keyRef
	if err := unmarshalField(raw.Fields, "parent", &parent); err != nil {
		return nil, err
	}
	issue.Parent = parent.Key

	issue.EpicLink = referenceField(raw.Fields[epicLinkField])
	return issue, nil
}

func unmarshalField(fields map[string]json.RawMessage, name string, out any) error {
	data, ok := fields[name]
	if !ok || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("jira: decode field %s: %w", name, err)
	}
	return nil
}

// referenceField reads an issue reference stored either as a bare key or as
// an object with a key.
func referenceField(data json.RawMessage) string {
	if len(data) == 0 || string(data) == "null" {
		return ""
	}
	var key string
	if err := json.Unmarshal(data, &key); err == nil {
		return key
	}
	var ref keyRef
	if err := json.Unmarshal(data, &ref); err == nil {
		return ref.Key
	}
	return ""
}
