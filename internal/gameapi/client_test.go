package gameapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hoursync/internal/domain"
	"hoursync/internal/gameapi"
)

func TestGetAllTokensSendsFilter(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tokens", r.URL.Path)
		gotQuery = r.URL.Query()
		_ = json.NewEncoder(w).Encode([]domain.TokenPayload{
			{ID: "1", PayloadType: domain.PayloadElementStack, Path: "~/hand.misc/!1", ElementID: "candle"},
		})
	}))
	defer srv.Close()

	c := gameapi.New(srv.URL)
	tokens, err := c.GetAllTokens(context.Background(), gameapi.TokensFilter{
		PathPrefixes: []string{"~/hand", "~/library"},
		PayloadTypes: []domain.PayloadType{domain.PayloadElementStack},
	})
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "candle", tokens[0].ElementID)
	assert.Equal(t, []string{"~/hand", "~/library"}, gotQuery["pathPrefix"])
	assert.Equal(t, []string{"ElementStack"}, gotQuery["payloadType"])
}

func TestMoveTokenToPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/tokens/42/move", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(map[string]bool{"success": body["spherePath"] == "~/library/!desk/slot"})
	}))
	defer srv.Close()

	c := gameapi.New(srv.URL)
	ok, err := c.MoveTokenToPath(context.Background(), "42", "~/library/!desk/slot")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.MoveTokenToPath(context.Background(), "42", "~/elsewhere")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExecuteEscapesPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/by-path/~/library/!desk/execute", r.URL.Path)
		_ = json.NewEncoder(w).Encode(domain.ExecuteResult{ExecutedRecipeLabel: "Study"})
	}))
	defer srv.Close()

	res, err := gameapi.New(srv.URL).ExecuteTokenAtPath(context.Background(), "~/library/!desk")
	require.NoError(t, err)
	assert.Equal(t, "Study", res.ExecutedRecipeLabel)
}

func TestGetLegacyNotLoaded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	legacy, err := gameapi.New(srv.URL).GetLegacy(context.Background())
	require.NoError(t, err)
	assert.Nil(t, legacy)
}

func TestNon2xxIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusConflict)
	}))
	defer srv.Close()

	err := gameapi.New(srv.URL).ConcludeTokenAtPath(context.Background(), "~/x")
	var apiErr *gameapi.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.False(t, gameapi.IsNotFound(err))
}
