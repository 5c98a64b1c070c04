package watsonx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/federalrisk/county-risk-etl/internal/domain"
)

const testAPIKey = "test-api-key"

// fakeWatsonx serves both the IAM token endpoint and the model endpoints
// from one httptest server.
type fakeWatsonx struct {
	t            *testing.T
	tokenCalls   atomic.Int64
	modelCalls   atomic.Int64
	handleModel  func(w http.ResponseWriter, r *http.Request)
	tokenExpires int
}

func (f *fakeWatsonx) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/identity/token":
		f.tokenCalls.Add(1)
		require.NoError(f.t, r.ParseForm())
		assert.Equal(f.t, testAPIKey, r.PostForm.Get("apikey"))
		assert.Equal(f.t, "urn:ibm:params:oauth:grant-type:apikey", r.PostForm.Get("grant_type"))
		expires := f.tokenExpires
		if expires == 0 {
			expires = 3600
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"token-%d","expires_in":%d}`, f.tokenCalls.Load(), expires)
	default:
		f.modelCalls.Add(1)
		f.handleModel(w, r)
	}
}

func newTestClient(t *testing.T, fake *fakeWatsonx) (*Client, *httptest.Server) {
	t.Helper()
	fake.t = t
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c := NewClient(Config{
		APIKey:      testAPIKey,
		ProjectID:   "test-project",
		BaseURL:     srv.URL,
		IAMURL:      srv.URL + "/identity/token",
		TSModelID:   "ibm/granite-ttm-512-96-r2",
		TextModelID: "ibm/granite-3-8b-instruct",
		Timeout:     5 * time.Second,
		MaxRetries:  3,
		Horizon:     3,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.retryBase = time.Millisecond
	return c, srv
}

func monthlySeries(n int, start float64) domain.Series {
	var s domain.Series
	date := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		s.Points = append(s.Points, domain.SeriesPoint{Date: date, Value: start + float64(i)})
		date = date.AddDate(0, 1, 0)
	}
	return s
}

func tsOK(values []float64) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{"results": []map[string]any{{"date": []string{}, "risk_index": values}}}
		json.NewEncoder(w).Encode(resp)
	}
}

func TestTimeSeriesForecaster_Success(t *testing.T) {
	fake := &fakeWatsonx{
		handleModel: func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/ml/v1/time_series/forecast", r.URL.Path)
			assert.Equal(t, apiVersion, r.URL.Query().Get("version"))
			assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))

			var req tsRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "ibm/granite-ttm-512-96-r2", req.ModelID)
			assert.Equal(t, "test-project", req.ProjectID)
			assert.Equal(t, "date", req.Schema.TimestampColumn)
			assert.Equal(t, []string{"risk_index"}, req.Schema.TargetColumns)
			assert.Equal(t, 3, req.Parameters.PredictionLength)
			assert.Len(t, req.Data.Date, minContextPoints)
			assert.Len(t, req.Data.RiskIndex, minContextPoints)

			tsOK([]float64{41.2, 42.8, 44.1})(w, r)
		},
	}
	c, _ := newTestClient(t, fake)

	f := NewTimeSeriesForecaster(c)
	key := domain.NewJoinKey("Cook", "IL")
	forecast, err := f.ForecastSeries(context.Background(), key, monthlySeries(24, 30))
	require.NoError(t, err)
	assert.Equal(t, ModeTimeSeries, forecast.Mode)
	assert.InDelta(t, 44.1, forecast.Value, 1e-9)
}

func TestTimeSeriesForecaster_EmptySeries(t *testing.T) {
	fake := &fakeWatsonx{handleModel: tsOK(nil)}
	c, _ := newTestClient(t, fake)

	f := NewTimeSeriesForecaster(c)
	_, err := f.ForecastSeries(context.Background(), domain.NewJoinKey("Cook", "IL"), domain.Series{})
	require.Error(t, err)
	assert.Zero(t, fake.modelCalls.Load())
}

func TestClient_RetriesOnServerError(t *testing.T) {
	fake := &fakeWatsonx{}
	fake.handleModel = func(w http.ResponseWriter, r *http.Request) {
		if fake.modelCalls.Load() < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		tsOK([]float64{50})(w, r)
	}
	c, _ := newTestClient(t, fake)

	f := NewTimeSeriesForecaster(c)
	forecast, err := f.ForecastSeries(context.Background(), domain.NewJoinKey("Cook", "IL"), monthlySeries(12, 10))
	require.NoError(t, err)
	assert.InDelta(t, 50, forecast.Value, 1e-9)
	assert.Equal(t, int64(3), fake.modelCalls.Load())
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	fake := &fakeWatsonx{
		handleModel: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		},
	}
	c, _ := newTestClient(t, fake)

	f := NewTimeSeriesForecaster(c)
	_, err := f.ForecastSeries(context.Background(), domain.NewJoinKey("Cook", "IL"), monthlySeries(12, 10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	// Initial attempt plus MaxRetries.
	assert.Equal(t, int64(4), fake.modelCalls.Load())
}

func TestClient_ClientErrorDoesNotRetry(t *testing.T) {
	fake := &fakeWatsonx{
		handleModel: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"errors":[{"message":"bad schema"}]}`))
		},
	}
	c, _ := newTestClient(t, fake)

	f := NewTimeSeriesForecaster(c)
	_, err := f.ForecastSeries(context.Background(), domain.NewJoinKey("Cook", "IL"), monthlySeries(12, 10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int64(1), fake.modelCalls.Load())
}

func TestClient_TokenCachedAcrossRequests(t *testing.T) {
	fake := &fakeWatsonx{handleModel: tsOK([]float64{1})}
	c, _ := newTestClient(t, fake)

	f := NewTimeSeriesForecaster(c)
	for i := 0; i < 3; i++ {
		_, err := f.ForecastSeries(context.Background(), domain.NewJoinKey("Cook", "IL"), monthlySeries(12, 10))
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), fake.tokenCalls.Load())
}

func TestClient_UnauthorizedRefreshesToken(t *testing.T) {
	fake := &fakeWatsonx{}
	fake.handleModel = func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer token-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		tsOK([]float64{7})(w, r)
	}
	c, _ := newTestClient(t, fake)

	f := NewTimeSeriesForecaster(c)
	forecast, err := f.ForecastSeries(context.Background(), domain.NewJoinKey("Cook", "IL"), monthlySeries(12, 10))
	require.NoError(t, err)
	assert.InDelta(t, 7, forecast.Value, 1e-9)
	assert.Equal(t, int64(2), fake.tokenCalls.Load())
}

func TestClient_ExpiredTokenRefetched(t *testing.T) {
	fake := &fakeWatsonx{tokenExpires: 30, handleModel: tsOK([]float64{1})}
	c, _ := newTestClient(t, fake)

	f := NewTimeSeriesForecaster(c)
	// 30s expiry minus the 60s skew means every call re-authenticates.
	for i := 0; i < 2; i++ {
		_, err := f.ForecastSeries(context.Background(), domain.NewJoinKey("Cook", "IL"), monthlySeries(12, 10))
		require.NoError(t, err)
	}
	assert.Equal(t, int64(2), fake.tokenCalls.Load())
}

func TestExtractForecast(t *testing.T) {
	raw := func(s string) json.RawMessage { return json.RawMessage(s) }

	tests := []struct {
		name    string
		resp    tsResponse
		want    float64
		wantErr bool
	}{
		{
			name: "risk_index column",
			resp: tsResponse{Results: []map[string]json.RawMessage{{
				"date":       raw(`["2024-01-01"]`),
				"risk_index": raw(`[10.5, 11.5]`),
			}}},
			want: 11.5,
		},
		{
			name: "renamed target column",
			resp: tsResponse{Results: []map[string]json.RawMessage{{
				"date":       raw(`["2024-01-01"]`),
				"prediction": raw(`[3.25]`),
			}}},
			want: 3.25,
		},
		{
			name:    "no results",
			resp:    tsResponse{},
			wantErr: true,
		},
		{
			name: "only timestamp columns",
			resp: tsResponse{Results: []map[string]json.RawMessage{{
				"date": raw(`["2024-01-01"]`),
			}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractForecast(tt.resp)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}
