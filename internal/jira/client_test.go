package jira

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/zalando/go-keyring"
)

func noWait() backoff.BackOff {
	return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
}

func newTestClient() *Client {
	c := NewClient()
	c.NewBackOff = noWait
	return c
}

func TestFetchIssue_Decodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "me" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/rest/api/2/issue/rk-456" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{
			"key": "RK-456",
			"fields": {
				"parent": {"key": "RK-321"},
				"customfield_10008": "RK-123",
				"issuetype": {"name": "Sub-Task"},
				"summary": "Sub-Task summary"
			}
		}`))
	}))
	defer server.Close()

	issue, err := newTestClient().FetchIssue(context.Background(), "rk-456", Connection{
		Host: server.URL + "/", Username: "me", Credential: "secret",
	})
	if err != nil {
		t.Fatalf("FetchIssue: %v", err)
	}
	if issue.Key != "RK-456" || issue.Type != "Sub-Task" || issue.Summary != "Sub-Task summary" {
		t.Errorf("unexpected issue: %+v", issue)
	}
	if issue.Parent != "RK-321" || issue.EpicLink != "RK-123" {
		t.Errorf("unexpected refs: parent=%q epic=%q", issue.Parent, issue.EpicLink)
	}
	if issue.ParentRef() != "RK-123" {
		t.Errorf("epic link should win, got %q", issue.ParentRef())
	}
}

func TestFetchIssue_CustomEpicLinkField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"key":"RK-1","fields":{"issuetype":{"name":"Task"},"summary":"s","customfield_20000":{"key":"RK-9"}}}`))
	}))
	defer server.Close()

	issue, err := newTestClient().FetchIssue(context.Background(), "rk-1", Connection{
		Host: server.URL, Username: "me", Credential: "x", EpicLinkField: "customfield_20000",
	})
	if err != nil {
		t.Fatalf("FetchIssue: %v", err)
	}
	if issue.EpicLink != "RK-9" {
		t.Errorf("EpicLink = %q, want RK-9", issue.EpicLink)
	}
	if issue.Parent != "" {
		t.Errorf("Parent = %q, want empty", issue.Parent)
	}
}

func TestFetchIssue_ErrorMessages(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errorMessages":["Issue does not exist or you do not have permission to see it."],"errors":{}}`))
	}))
	defer server.Close()

	_, err := newTestClient().FetchIssue(context.Background(), "rk-404", Connection{Host: server.URL, Username: "me", Credential: "x"})
	var result *ErrorResult
	if !errors.As(err, &result) {
		t.Fatalf("expected *ErrorResult, got %v", err)
	}
	if len(result.Messages) != 1 || !strings.Contains(result.Messages[0], "does not exist") {
		t.Errorf("Messages = %v", result.Messages)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("4xx must not be retried, got %d calls", atomic.LoadInt32(&calls))
	}
}

func TestFetchIssue_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"key":"RK-1","fields":{"issuetype":{"name":"Bug"},"summary":"s"}}`))
	}))
	defer server.Close()

	issue, err := newTestClient().FetchIssue(context.Background(), "rk-1", Connection{Host: server.URL, Username: "me", Credential: "x"})
	if err != nil {
		t.Fatalf("FetchIssue: %v", err)
	}
	if issue.Type != "Bug" {
		t.Errorf("Type = %q", issue.Type)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 3 calls, got %d", atomic.LoadInt32(&calls))
	}
}

func TestFetchIssue_GivesUpAfterRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient().FetchIssue(context.Background(), "rk-1", Connection{Host: server.URL, Username: "me", Credential: "x"})
	var result *ErrorResult
	if !errors.As(err, &result) || result.Status != http.StatusBadGateway {
		t.Fatalf("expected 502 ErrorResult, got %v", err)
	}
}

func TestFetchIssue_MissingHost(t *testing.T) {
	if _, err := newTestClient().FetchIssue(context.Background(), "rk-1", Connection{}); err == nil {
		t.Error("expected error for missing host")
	}
}

func TestFetchIssue_KeyringCredential(t *testing.T) {
	keyring.MockInit()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, pass, _ := r.BasicAuth(); pass != "from-keyring" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"key":"RK-1","fields":{"issuetype":{"name":"Epic"},"summary":"s"}}`))
	}))
	defer server.Close()

	conn := Connection{Host: server.URL, Username: "me"}
	if _, err := newTestClient().FetchIssue(context.Background(), "rk-1", conn); err == nil {
		t.Fatal("expected error without any credential")
	}

	if err := StoreCredential(conn.Host, conn.Username, "from-keyring"); err != nil {
		t.Fatalf("StoreCredential: %v", err)
	}
	issue, err := newTestClient().FetchIssue(context.Background(), "rk-1", conn)
	if err != nil {
		t.Fatalf("FetchIssue: %v", err)
	}
	if issue.Type != "Epic" {
		t.Errorf("Type = %q", issue.Type)
	}
}

func TestDecodeError(t *testing.T) {
	result := decodeError(400, []byte(`{"errorMessages":["first"],"errors":{"b":"two","a":"one"}}`))
	want := []string{"first", "a: one", "b: two"}
	if len(result.Messages) != len(want) {
		t.Fatalf("Messages = %v", result.Messages)
	}
	for i := range want {
		if result.Messages[i] != want[i] {
			t.Errorf("Messages[%d] = %q, want %q", i, result.Messages[i], want[i])
		}
	}

	plain := decodeError(500, []byte("<html>oops</html>"))
	if len(plain.Messages) != 0 || !strings.Contains(plain.Error(), "500") {
		t.Errorf("non-JSON body: %v", plain)
	}
}
