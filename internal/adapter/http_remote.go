package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/stillpoint-app/stillpoint/internal/config"
	"github.com/stillpoint-app/stillpoint/models"
)

type httpRemoteStore struct {
	client *resty.Client

	mu    sync.RWMutex
	token string
}

// NewHTTPRemoteStore builds the resty-backed [RemoteStore].
func NewHTTPRemoteStore(cfg config.Adapter) RemoteStore {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.RequestTimeout)

	return &httpRemoteStore{client: cli}
}

func (h *httpRemoteStore) SetToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = strings.TrimSpace(token)
}

func (h *httpRemoteStore) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

func (h *httpRemoteStore) Insert(ctx context.Context, entityType models.EntityType, rec models.LocalRecord) error {
	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(rec).
		Post("/api/" + string(entityType))
	if err != nil {
		return fmt.Errorf("insert request: %w: %w", ErrRemoteUnavailable, err)
	}

	return mapHTTPError(resp)
}

func (h *httpRemoteStore) Upsert(ctx context.Context, entityType models.EntityType, rec models.LocalRecord) error {
	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(rec).
		Put(fmt.Sprintf("/api/%s/%s", entityType, rec.ID))
	if err != nil {
		return fmt.Errorf("upsert request: %w: %w", ErrRemoteUnavailable, err)
	}

	return mapHTTPError(resp)
}

func (h *httpRemoteStore) Remove(ctx context.Context, entityType models.EntityType, id string) error {
	resp, err := h.authedRequest(ctx).
		Delete(fmt.Sprintf("/api/%s/%s", entityType, id))
	if err != nil {
		return fmt.Errorf("remove request: %w: %w", ErrRemoteUnavailable, err)
	}

	// Removing an unknown id is a success: the drain may repeat a delete the
	// backend already applied.
	if resp.StatusCode() == http.StatusNotFound {
		return nil
	}

	return mapHTTPError(resp)
}

func (h *httpRemoteStore) Ping(ctx context.Context) error {
	resp, err := h.client.R().SetContext(ctx).Get("/healthz")
	if err != nil {
		return fmt.Errorf("ping request: %w: %w", ErrRemoteUnavailable, err)
	}

	return mapHTTPError(resp)
}

func (h *httpRemoteStore) authedRequest(ctx context.Context) *resty.Request {
	req := h.client.R().SetContext(ctx)
	if token := h.Token(); token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	return req
}

func mapHTTPError(resp *resty.Response) error {
	code := resp.StatusCode()
	if code >= http.StatusOK && code < http.StatusMultipleChoices {
		return nil
	}

	if code == http.StatusUnauthorized {
		return ErrUnauthorized
	}

	body := strings.TrimSpace(string(resp.Body()))
	if body == "" {
		body = http.StatusText(code)
	}

	if code >= http.StatusInternalServerError ||
		code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests {
		return fmt.Errorf("%w: http %d: %s", ErrRemoteUnavailable, code, body)
	}

	return fmt.Errorf("http %d: %s", code, body)
}
