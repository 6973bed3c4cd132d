package remote

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
	"strings"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/tvtime/internal/model"
)

const maxDocumentSize = 1 << 20

// Config configures a Client.
type Config struct {
	BaseURL           string
	FamilyID          string
	Timeout           time.Duration
	ReconnectInterval time.Duration
}

// Client talks to the document service over HTTP and receives pushes over a
// WebSocket subscription.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ReconnectInterval == 0 {
		cfg.ReconnectInterval = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

func (c *Client) documentURL() string {
	return c.cfg.BaseURL + "/api/families/" + url.PathEscape(c.cfg.FamilyID)
}

func (c *Client) Get(ctx context.Context) (*model.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.documentURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get document: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: get document: status %d", ErrUnavailable, resp.StatusCode)
	}

	var doc model.Document
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDocumentSize)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode document: %v", ErrUnavailable, err)
	}
	return &doc, nil
}

func (c *Client) Set(ctx context.Context, fields model.Fields) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.documentURL(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: set document: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: set document: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *Client) Subscribe(ctx context.Context) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)
		for {
			err := c.stream(ctx, events)
			if ctx.Err() != nil {
				return
			}
			ev := Event{Err: fmt.Errorf("%w: subscription: %v", ErrUnavailable, err)}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}

			c.logger.Warn("subscription lost, reconnecting", "error", err, "retry_in", c.cfg.ReconnectInterval)
			select {
			case <-time.After(c.cfg.ReconnectInterval):
			case <-ctx.Done():
				return
			}
		}
	}()
	return events
}

// stream runs one WebSocket connection until it fails or ctx ends.
func (c *Client) stream(ctx context.Context, events chan<- Event) error {
	wsURL, err := subscribeURL(c.documentURL())
	if err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	conn, _, err := ws.Dial(dialCtx, wsURL, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxDocumentSize)

	c.logger.Info("subscribed to family document", "url", wsURL)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				conn.Close(ws.StatusNormalClosure, "")
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}

		var doc model.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			c.logger.Warn("discarding malformed snapshot", "error", err)
			continue
		}
		select {
		case events <- Event{Snapshot: &doc}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func subscribeURL(documentURL string) (string, error) {
	u, err := url.Parse(documentURL + "/subscribe")
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.New("unsupported url scheme " + u.Scheme)
	}
	return u.String(), nil
}
