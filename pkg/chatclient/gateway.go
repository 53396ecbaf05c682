// Package chatclient is the client side of the conversation API: a mutation
// gateway over HTTP, a live change-feed client over websockets, and the
// optimistic overlay a UI merges over the authoritative snapshots.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rempla/rempla-backend/internal/common"
	"github.com/rempla/rempla-backend/internal/domain"
	"github.com/rempla/rempla-backend/internal/negotiation"
)

// CredentialSource supplies the bearer credential of the signed-in user
type CredentialSource interface {
	Credential(ctx context.Context) (string, error)
}

// StaticCredential is a fixed bearer token; empty means signed out
type StaticCredential string

func (s StaticCredential) Credential(context.Context) (string, error) {
	if s == "" {
		return "", common.ErrUnauthenticated
	}
	return string(s), nil
}

// APIError is a decoded error envelope. It unwraps to the sentinel matching
// its HTTP status, so callers branch with errors.Is.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s (%d): %s: %s", e.Code, e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return common.ErrorFromStatus(e.Status)
}

// Gateway calls the mutation and lookup endpoints
type Gateway struct {
	baseURL string
	creds   CredentialSource
	http    *http.Client
}

// NewGateway creates a Gateway against baseURL (e.g. "https://api.example.com").
// A nil httpClient uses a client with a 10s timeout.
func NewGateway(baseURL string, creds CredentialSource, httpClient *http.Client) *Gateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		http:    httpClient,
	}
}

// Append posts a message and returns the stored, validated message
func (g *Gateway) Append(ctx context.Context, req domain.SendMessageRequest) (domain.Message, error) {
	var rec domain.MessageRecord
	if err := g.do(ctx, http.MethodPost, "/send_message", req, &rec); err != nil {
		return domain.Message{}, err
	}
	return domain.Parse(rec)
}

// SoftDelete marks one of the caller's messages deleted
func (g *Gateway) SoftDelete(ctx context.Context, conversationID, messageID string) error {
	path := "/delete_message/" + url.PathEscape(conversationID) + "/" + url.PathEscape(messageID)
	return g.do(ctx, http.MethodDelete, path, nil, nil)
}

// MarkRead acknowledges every message of a conversation
func (g *Gateway) MarkRead(ctx context.Context, conversationID string) error {
	return g.do(ctx, http.MethodPost, "/mark_read/"+url.PathEscape(conversationID), nil, nil)
}

// MissionState fetches the derived negotiation state of a conversation
func (g *Gateway) MissionState(ctx context.Context, conversationID string) (negotiation.Negotiation, error) {
	var state negotiation.Negotiation
	err := g.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(conversationID)+"/mission", nil, &state)
	return state, err
}

// Messages is the initial message lookup; malformed records are discarded
func (g *Gateway) Messages(ctx context.Context, conversationID string) (domain.MessageSnapshot, error) {
	var payload domain.MessageSnapshotPayload
	if err := g.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(conversationID)+"/messages", nil, &payload); err != nil {
		return domain.MessageSnapshot{}, err
	}
	return decodeMessages(payload), nil
}

// Conversations is the initial conversation list lookup
func (g *Gateway) Conversations(ctx context.Context, filter, searchText string) (domain.ConversationSnapshot, error) {
	q := url.Values{}
	if filter != "" {
		q.Set("filter", filter)
	}
	if searchText != "" {
		q.Set("q", searchText)
	}
	path := "/conversations"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var snap domain.ConversationSnapshot
	err := g.do(ctx, http.MethodGet, path, nil, &snap)
	return snap, err
}

func (g *Gateway) do(ctx context.Context, method, path string, body, out interface{}) error {
	token, err := g.creds.Credential(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnauthenticated, err)
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", common.ErrTransport, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Code: common.ErrorCode(resp.StatusCode), Message: http.StatusText(resp.StatusCode)}
	var env struct {
		Error *common.ErrorInfo `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&env); err == nil && env.Error != nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Details = env.Error.Details
	}
	return apiErr
}

// errorFromCode maps an error frame code back onto its sentinel
func errorFromCode(code string) error {
	for _, status := range []int{
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusConflict,
		http.StatusBadRequest,
	} {
		if common.ErrorCode(status) == code {
			return common.ErrorFromStatus(status)
		}
	}
	return common.ErrTransport
}

// retryable reports whether a subscription failure is worth another attempt
func retryable(err error) bool {
	switch {
	case errors.Is(err, common.ErrUnauthenticated),
		errors.Is(err, common.ErrForbidden),
		errors.Is(err, common.ErrNotFound),
		errors.Is(err, common.ErrValidationFailed):
		return false
	}
	return true
}
