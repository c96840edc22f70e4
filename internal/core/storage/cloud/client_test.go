package cloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentum-health/vitalsync/internal/core/storage"
	"github.com/momentum-health/vitalsync/internal/core/vitals"
)

func TestClient_GetHealthData(t *testing.T) {
	start := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	end := start.Add(5 * time.Minute)

	var captured queryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/status":
			w.WriteHeader(http.StatusOK)
		case "/v1/health-data/query":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			json.NewEncoder(w).Encode(queryResponse{
				Status: 0,
				Samples: []rawSample{
					{ID: "smp-1", Type: "heart_rate", Value: 71, TimestampMs: start.Add(time.Minute).UnixMilli(), Source: "garmin"},
					{Type: "weight_kg", Value: 70, TimestampMs: start.UnixMilli()},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "app-1", "sk-test", 5*time.Second)
	require.NoError(t, client.Initialize(context.Background()))
	require.True(t, client.IsInitialized())

	samples, err := client.GetHealthData(context.Background(), "user-1",
		[]vitals.MetricKind{vitals.MetricHeartRate, vitals.MetricWeightKg}, start, end)
	require.NoError(t, err)
	require.Len(t, samples, 2)

	// Credentials and window ride in the request body.
	require.Equal(t, "app-1", captured.AppID)
	require.Equal(t, "sk-test", captured.SecretKey)
	require.Equal(t, "user-1", captured.UserID)
	require.Equal(t, []string{"heart_rate", "weight_kg"}, captured.Types)
	require.Equal(t, start.UnixMilli(), captured.StartMs)
	require.Equal(t, end.UnixMilli(), captured.EndMs)

	require.Equal(t, vitals.MetricHeartRate, samples[0].Type)
	require.Equal(t, 71.0, samples[0].Value)
	require.Equal(t, start.Add(time.Minute), samples[0].Timestamp)
	require.Equal(t, "garmin", samples[0].Source)

	// A missing vendor sample ID is synthesized, not left empty.
	require.NotEmpty(t, samples[1].ID)
}

func TestClient_GetHealthData_VendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/status" {
			w.WriteHeader(http.StatusOK)
			return
		}
		json.NewEncoder(w).Encode(queryResponse{Status: 4001, Msg: "invalid credentials"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "app-1", "bad-key", 5*time.Second)
	require.NoError(t, client.Initialize(context.Background()))

	_, err := client.GetHealthData(context.Background(), "user-1",
		[]vitals.MetricKind{vitals.MetricHeartRate}, time.Now().Add(-time.Hour), time.Now())
	require.ErrorContains(t, err, "invalid credentials")
}

func TestClient_GetHealthData_NotInitialized(t *testing.T) {
	client := NewClient("http://localhost:0", "app-1", "sk", time.Second)

	_, err := client.GetHealthData(context.Background(), "user-1",
		[]vitals.MetricKind{vitals.MetricHeartRate}, time.Now().Add(-time.Hour), time.Now())
	require.ErrorIs(t, err, storage.ErrNotInitialized)
}

func TestClient_Initialize_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "app-1", "sk", time.Second)
	require.Error(t, client.Initialize(context.Background()))
	require.False(t, client.IsInitialized())
}
