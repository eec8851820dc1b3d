// Package nutrition wraps the third-party food search service behind a thin
// query → list-of-items contract. Payloads are normalized at this boundary so
// no loosely typed data reaches the core.
package nutrition

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"example.com/fittrack/internal/domain"
)

// DefaultResultCap bounds a search when the caller passes no limit.
const DefaultResultCap = 10

// Client queries a spoonacular-style findByNutrients endpoint.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient constructs a Client for the given API base URL.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// searchItem mirrors the wire shape: calories numeric, macros as "12g" strings.
type searchItem struct {
	Title    string  `json:"title"`
	Calories float64 `json:"calories"`
	Carbs    string  `json:"carbs"`
	Fat      string  `json:"fat"`
	Protein  string  `json:"protein"`
	Image    string  `json:"image"`
}

// Search returns food items whose calories fall within [minCalories,
// maxCalories]. Inverted bounds and empty results are valid, not errors.
// Transport, status, and decode failures wrap domain.ErrNetwork.
func (c *Client) Search(ctx context.Context, minCalories, maxCalories, limit int) ([]domain.NutritionItem, error) {
	if minCalories > maxCalories {
		return []domain.NutritionItem{}, nil
	}
	if limit <= 0 {
		limit = DefaultResultCap
	}

	query := url.Values{}
	query.Set("minCalories", strconv.Itoa(minCalories))
	query.Set("maxCalories", strconv.Itoa(maxCalories))
	query.Set("number", strconv.Itoa(limit))
	query.Set("apiKey", c.apiKey)

	endpoint := fmt.Sprintf("%s/recipes/findByNutrients?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build food query: %v", domain.ErrNetwork, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: food query: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read food query response: %v", domain.ErrNetwork, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: food query status %d: %s", domain.ErrNetwork, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var items []searchItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: decode food query response: %v", domain.ErrNetwork, err)
	}

	out := make([]domain.NutritionItem, 0, len(items))
	for _, item := range items {
		normalized, ok := normalize(item)
		if !ok {
			continue
		}
		out = append(out, normalized)
	}
	return out, nil
}

// normalize rejects malformed entries instead of propagating them.
func normalize(item searchItem) (domain.NutritionItem, bool) {
	if item.Calories < 0 || math.IsNaN(item.Calories) || math.IsInf(item.Calories, 0) {
		return domain.NutritionItem{}, false
	}
	return domain.NutritionItem{
		Title:        item.Title,
		Calories:     item.Calories,
		CarbsGrams:   parseGrams(item.Carbs),
		FatGrams:     parseGrams(item.Fat),
		ProteinGrams: parseGrams(item.Protein),
		ImageURL:     item.Image,
	}, true
}

// parseGrams reads values like "12g" or "3.5 g"; anything unparseable is zero.
func parseGrams(value string) float64 {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "g"))
	if trimmed == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}
