// Package gameapi is a minimal client for the game's local token-graph HTTP API.
package gameapi

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

	"hoursync/internal/domain"
)

// Client talks to the game process.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// TokensFilter narrows a token snapshot. Empty fields do not filter.
type TokensFilter struct {
	PathPrefixes []string
	PayloadTypes []domain.PayloadType
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("game api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from the game.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// GetAllTokens returns a full snapshot of the token graph.
func (c *Client) GetAllTokens(ctx context.Context, filter TokensFilter) ([]domain.TokenPayload, error) {
	q := url.Values{}
	for _, p := range filter.PathPrefixes {
		q.Add("pathPrefix", p)
	}
	for _, t := range filter.PayloadTypes {
		q.Add("payloadType", string(t))
	}
	endpoint := "api/tokens"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []domain.TokenPayload
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetTokenAtPath returns the token at an exact path.
func (c *Client) GetTokenAtPath(ctx context.Context, path string) (domain.TokenPayload, error) {
	var resp domain.TokenPayload
	err := c.do(ctx, http.MethodGet, byPath(path), nil, &resp)
	return resp, err
}

// MoveTokenToPath moves a token into the sphere at destPath. The game answers
// with success=false when it refuses the move.
func (c *Client) MoveTokenToPath(ctx context.Context, tokenID, destPath string) (bool, error) {
	body := map[string]any{"spherePath": destPath}
	var resp struct {
		Success bool `json:"success"`
	}
	endpoint := fmt.Sprintf("api/tokens/%s/move", url.PathEscape(tokenID))
	if err := c.do(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return false, err
	}
	return resp.Success, nil
}

// EvictTokenAtPath evicts whatever token occupies the sphere at path.
func (c *Client) EvictTokenAtPath(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, byPath(path)+"/tokens", nil, nil)
}

// ExecuteTokenAtPath starts the recipe of the situation at path.
func (c *Client) ExecuteTokenAtPath(ctx context.Context, path string) (domain.ExecuteResult, error) {
	var resp domain.ExecuteResult
	err := c.do(ctx, http.MethodPost, byPath(path)+"/execute", nil, &resp)
	return resp, err
}

// ConcludeTokenAtPath harvests a completed situation.
func (c *Client) ConcludeTokenAtPath(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodPost, byPath(path)+"/conclude", nil, nil)
}

// SetRecipeAtPath prepares a recipe on the situation at path.
func (c *Client) SetRecipeAtPath(ctx context.Context, path, recipeID string) error {
	body := map[string]any{"recipeId": recipeID}
	return c.do(ctx, http.MethodPut, byPath(path)+"/recipe", body, nil)
}

// GetLegacy returns the loaded legacy, or nil when no game is loaded.
func (c *Client) GetLegacy(ctx context.Context) (*domain.Legacy, error) {
	var resp *domain.Legacy
	err := c.do(ctx, http.MethodGet, "api/game-state/legacy", nil, &resp)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.ID == "" {
		return nil, nil
	}
	return resp, nil
}

// GetRecipe looks up a recipe in the compendium.
func (c *Client) GetRecipe(ctx context.Context, id string) (domain.Recipe, error) {
	var resp domain.Recipe
	endpoint := fmt.Sprintf("api/compendium/recipes/%s", url.PathEscape(id))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// PassTime advances the game clock.
func (c *Client) PassTime(ctx context.Context, seconds float64) error {
	body := map[string]any{"seconds": seconds}
	return c.do(ctx, http.MethodPost, "api/game-state/time/pass", body, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// byPath builds the by-path endpoint for a token path, escaping each segment.
func byPath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "api/by-path/" + strings.Join(segments, "/")
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
