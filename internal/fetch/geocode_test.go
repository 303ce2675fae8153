package fetch_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soupbadger/rpi-space/internal/fetch"
	"github.com/soupbadger/rpi-space/model"
)

func TestParseCity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		want     fetch.City
		wantKind fetch.Kind
	}{
		{
			name: "structured city",
			body: `{"address": {"city": "Lagos", "country": "Nigeria"}, "display_name": "Ikeja, Lagos, Nigeria"}`,
			want: fetch.City{Name: "Lagos", Found: true},
		},
		{
			name: "display name fallback",
			body: `{"display_name": "Lagos, Nigeria"}`,
			want: fetch.City{Name: "Lagos", Found: true},
		},
		{
			name: "address without city uses display name",
			body: `{"address": {"state": "Lagos State"}, "display_name": "Epe, Lagos State, Nigeria"}`,
			want: fetch.City{Name: "Epe", Found: true},
		},
		{
			name: "display name without separator",
			body: `{"display_name": "Antarctica"}`,
			want: fetch.City{Name: "Antarctica", Found: true},
		},
		{
			name: "display name kept verbatim",
			body: `{"display_name": " Ikeja , Lagos"}`,
			want: fetch.City{Name: " Ikeja ", Found: true},
		},
		{
			name: "present but empty city wins over display name",
			body: `{"address": {"city": ""}, "display_name": "Epe, Lagos State"}`,
			want: fetch.City{Name: "", Found: true},
		},
		{
			name: "neither field",
			body: `{"error": "Unable to geocode"}`,
			want: fetch.City{},
		},
		{
			name:     "malformed JSON",
			body:     `{"address": {"city": "Lag`,
			wantKind: fetch.KindParse,
		},
		{
			name:     "not an object",
			body:     `["Lagos"]`,
			wantKind: fetch.KindParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := fetch.ParseCity([]byte(tt.body))
			if tt.wantKind != fetch.KindUnknown {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, fetch.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGeocodeClient_ResolveCitySendsQuery(t *testing.T) {
	t.Parallel()

	var gotLat, gotLon, gotKey string
	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotLat, gotLon, gotKey = q.Get("lat"), q.Get("lon"), q.Get("api_key")
		_, _ = w.Write([]byte(`{"address": {"city": "Lagos"}}`))
	}))
	defer server.Close()

	client := fetch.NewGeocodeClient(server.URL, "secret", time.Second)
	city, err := client.ResolveCity(context.Background(), model.GeoCoordinate{Lat: 6.45, Lon: 3.39})

	require.NoError(t, err)
	assert.Equal(t, fetch.City{Name: "Lagos", Found: true}, city)
	assert.Equal(t, "6.45", gotLat)
	assert.Equal(t, "3.39", gotLon)
	assert.Equal(t, "secret", gotKey)
}

func TestGeocodeClient_ErrorKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		wantKind fetch.Kind
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error": "invalid key"}`, fetch.KindNetwork},
		{"server error", http.StatusInternalServerError, "boom", fetch.KindNetwork},
		{"garbage body", http.StatusOK, "<html>", fetch.KindParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := fetch.NewGeocodeClient(server.URL, "secret", time.Second)
			_, err := client.ResolveCity(context.Background(), model.GeoCoordinate{})

			require.Error(t, err)
			assert.Equal(t, tt.wantKind, fetch.KindOf(err))
			assert.NotContains(t, err.Error(), "secret", "api key must not leak into errors")
		})
	}
}
