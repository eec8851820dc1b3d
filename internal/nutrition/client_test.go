package nutrition

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/fittrack/internal/domain"
)

func TestSearchParsesAndNormalizes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/recipes/findByNutrients", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("minCalories"))
		assert.Equal(t, "500", r.URL.Query().Get("maxCalories"))
		assert.Equal(t, "2", r.URL.Query().Get("number"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
            {"title":"Pasta","calories":320,"carbs":"45g","fat":"9g","protein":"12g","image":"https://img/pasta.jpg"},
            {"title":"Broken","calories":-5,"carbs":"1g","fat":"1g","protein":"1g"},
            {"title":"Salad","calories":150,"carbs":"8 g","fat":"junk","protein":""}
        ]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	items, err := client.Search(context.Background(), 100, 500, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Pasta", items[0].Title)
	assert.Equal(t, float64(320), items[0].Calories)
	assert.Equal(t, float64(45), items[0].CarbsGrams)
	assert.Equal(t, float64(12), items[0].ProteinGrams)
	assert.Equal(t, "https://img/pasta.jpg", items[0].ImageURL)

	// Unparseable macros normalize to zero rather than failing the query.
	assert.Equal(t, float64(8), items[1].CarbsGrams)
	assert.Zero(t, items[1].FatGrams)
	assert.Zero(t, items[1].ProteinGrams)
}

func TestSearchInvertedBoundsReturnsEmpty(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	items, err := client.Search(context.Background(), 100, 50, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.False(t, called, "inverted bounds should not reach the network")
}

func TestSearchEmptyResultIsValid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	items, err := client.Search(context.Background(), 0, 100, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSearchSurfacesStatusAsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusPaymentRequired)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	_, err := client.Search(context.Background(), 0, 100, 10)
	require.ErrorIs(t, err, domain.ErrNetwork)
}

func TestSearchSurfacesDecodeFailureAsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	_, err := client.Search(context.Background(), 0, 100, 10)
	require.ErrorIs(t, err, domain.ErrNetwork)
}

func TestSearchDefaultsResultCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("number"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	_, err := client.Search(context.Background(), 0, 100, 0)
	require.NoError(t, err)
}
