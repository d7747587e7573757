package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"afterhours/internal/game"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type tokenPayload struct {
	Token string `json:"token"`
}

func (c *Client) Signup(ctx context.Context, name, password string) (string, error) {
	var out tokenPayload
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/signup", "", map[string]any{
		"name":     name,
		"password": password,
	}, &out)
	return out.Token, err
}

func (c *Client) Login(ctx context.Context, name, password string) (string, error) {
	var out tokenPayload
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"name":     name,
		"password": password,
	}, &out)
	return out.Token, err
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.jsonRequest(ctx, http.MethodPost, "/v1/auth/logout", token, map[string]any{}, nil)
}

func (c *Client) Market(ctx context.Context) (game.Snapshot, error) {
	var out game.Snapshot
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/market", "", nil, &out)
	return out, err
}

func (c *Client) Leaderboard(ctx context.Context) ([]game.LeaderboardRow, error) {
	var out struct {
		Leaderboard []game.LeaderboardRow `json:"leaderboard"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/leaderboard", "", nil, &out)
	return out.Leaderboard, err
}

func (c *Client) PlaceOrder(ctx context.Context, token, symbol, side string, quantity int64) (game.Fill, error) {
	var out game.Fill
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/orders", token, map[string]any{
		"symbol":   symbol,
		"side":     side,
		"quantity": quantity,
	}, &out)
	return out, err
}

func (c *Client) QueueCovert(ctx context.Context, token string, action game.CovertAction) error {
	return c.jsonRequest(ctx, http.MethodPost, "/v1/covert", token, action, nil)
}

// FeedMessage mirrors the live session envelope.
type FeedMessage struct {
	Type     string         `json:"type"`
	Snapshot *game.Snapshot `json:"snapshot,omitempty"`
	Fill     *game.Fill     `json:"fill,omitempty"`
	Queued   string         `json:"queued,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// OrderMessage is what Feed.Send puts on the wire.
type OrderMessage struct {
	Type     string             `json:"type"`
	Symbol   string             `json:"symbol,omitempty"`
	Side     string             `json:"side,omitempty"`
	Quantity int64              `json:"quantity,omitempty"`
	Covert   *game.CovertAction `json:"covert,omitempty"`
}

// Feed is a live websocket session.
type Feed struct {
	conn *websocket.Conn
	Msgs <-chan FeedMessage
}

// DialFeed opens the live session and starts the reader. The returned
// channel closes when the connection dies.
func (c *Client) DialFeed(ctx context.Context, token string) (*Feed, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/v1/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial feed: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial feed: %w", err)
	}

	msgs := make(chan FeedMessage, 32)
	go func() {
		defer close(msgs)
		for {
			var msg FeedMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			msgs <- msg
		}
	}()
	return &Feed{conn: conn, Msgs: msgs}, nil
}

func (f *Feed) Send(msg OrderMessage) error {
	return f.conn.WriteJSON(msg)
}

func (f *Feed) Close() error {
	_ = f.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return f.conn.Close()
}

func (c *Client) jsonRequest(ctx context.Context, method, path, token string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
