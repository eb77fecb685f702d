package openweather

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/weather-s3-etl/internal/domain"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey        = "test-key"
	testCity          = "Prague"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"

	pragueJSON = `{"name":"Prague","weather":[{"description":"clear sky"}],"main":{"temp":300.0,"feels_like":298.0,"temp_min":295.0,"temp_max":302.0,"pressure":1012,"humidity":40},"wind":{"speed":3.5},"dt":1700000000,"timezone":3600,"sys":{"sunrise":1699970000,"sunset":1700010000}}`
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(baseURL string) *Client {
	return NewClient(baseURL, testCity, 5*time.Second, discardLogger())
}

// staticServer answers every request with status and body and counts hits.
func staticServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set(headerContentType, contentTypeJSON)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestClient_Fetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/data/2.5/weather", r.URL.Path)
		assert.Equal(t, testCity, r.URL.Query().Get("q"))
		assert.Equal(t, testAPIKey, r.URL.Query().Get("APPID"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(pragueJSON))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	obs, err := c.Fetch(context.Background(), testAPIKey)
	require.NoError(t, err)

	require.NotNil(t, obs.Name)
	assert.Equal(t, "Prague", *obs.Name)
	require.Len(t, obs.Weather, 1)
	assert.Equal(t, "clear sky", *obs.Weather[0].Description)
	assert.Equal(t, 300.0, *obs.Main.Temp)
	assert.Equal(t, "1012", obs.Main.Pressure.String())
	assert.Equal(t, "3.5", obs.Wind.Speed.String())
	assert.Equal(t, int64(1700000000), *obs.Dt)
	assert.Equal(t, int64(3600), *obs.Timezone)
	assert.Equal(t, int64(1700010000), *obs.Sys.Sunset)
}

func TestClient_BaseURLTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/weather", r.URL.Path)
		_, _ = w.Write([]byte(pragueJSON))
	}))
	defer srv.Close()

	c := testClient(srv.URL + "/")
	require.NoError(t, c.CheckAvailability(context.Background(), testAPIKey))
}

func TestClient_CheckAvailability(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		srv, hits := staticServer(t, http.StatusOK, pragueJSON)
		require.NoError(t, testClient(srv.URL).CheckAvailability(context.Background(), testAPIKey))
		assert.Equal(t, int64(1), hits.Load())
	})

	t.Run("service unavailable", func(t *testing.T) {
		srv, _ := staticServer(t, http.StatusServiceUnavailable, `{"message":"down"}`)
		err := testClient(srv.URL).CheckAvailability(context.Background(), testAPIKey)
		require.ErrorIs(t, err, domain.ErrAvailabilityCheckFailed)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("unauthorized", func(t *testing.T) {
		srv, _ := staticServer(t, http.StatusUnauthorized, `{"cod":401,"message":"Invalid API key"}`)
		err := testClient(srv.URL).CheckAvailability(context.Background(), testAPIKey)
		require.ErrorIs(t, err, domain.ErrAvailabilityCheckFailed)
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(200 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, testCity, 50*time.Millisecond, discardLogger())
		err := c.CheckAvailability(context.Background(), testAPIKey)
		require.ErrorIs(t, err, domain.ErrAvailabilityCheckFailed)
		assert.NotContains(t, err.Error(), testAPIKey)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv, _ := staticServer(t, http.StatusOK, "")
		url := srv.URL
		srv.Close()

		err := testClient(url).CheckAvailability(context.Background(), testAPIKey)
		require.ErrorIs(t, err, domain.ErrAvailabilityCheckFailed)
	})
}

func TestClient_Fetch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, "oops", domain.ErrRequestFailed},
		{"not found", http.StatusNotFound, `{"cod":"404","message":"city not found"}`, domain.ErrRequestFailed},
		{"invalid json", http.StatusOK, "{not json", domain.ErrMalformedResponse},
		{"empty body", http.StatusOK, "", domain.ErrMalformedResponse},
		{"array body", http.StatusOK, "[]", domain.ErrMalformedResponse},
		{"null body", http.StatusOK, "null", domain.ErrMalformedResponse},
		{"wrong field type", http.StatusOK, `{"dt":"yesterday"}`, domain.ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := staticServer(t, tt.status, tt.body)
			_, err := testClient(srv.URL).Fetch(context.Background(), testAPIKey)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_Fetch_PartialBodyDecodes(t *testing.T) {
	srv, _ := staticServer(t, http.StatusOK, `{"name":"Prague"}`)
	obs, err := testClient(srv.URL).Fetch(context.Background(), testAPIKey)

	require.NoError(t, err)
	assert.Equal(t, "Prague", *obs.Name)
	assert.Nil(t, obs.Main)
}

func TestClient_CircuitBreakerOpens(t *testing.T) {
	srv, hits := staticServer(t, http.StatusBadGateway, "bad gateway")
	c := testClient(srv.URL)

	// gobreaker trips after more than five consecutive failures.
	for i := 0; i < 6; i++ {
		_, err := c.Fetch(context.Background(), testAPIKey)
		require.ErrorIs(t, err, domain.ErrRequestFailed)
	}
	require.Equal(t, int64(6), hits.Load())

	_, err := c.Fetch(context.Background(), testAPIKey)
	require.ErrorIs(t, err, domain.ErrRequestFailed)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int64(6), hits.Load(), "open breaker must not reach the server")

	err = c.CheckAvailability(context.Background(), testAPIKey)
	assert.ErrorIs(t, err, domain.ErrAvailabilityCheckFailed)
	assert.Equal(t, int64(6), hits.Load())
}

func TestClient_Endpoint(t *testing.T) {
	c := NewClient("https://api.openweathermap.org", "São Paulo", 0, discardLogger())
	assert.Equal(t, "https://api.openweathermap.org/data/2.5/weather?APPID=k&q=S%C3%A3o+Paulo", c.endpoint("k"))
}
