package backend

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sahayata-dashboard/internal/config"
	"github.com/couchcryptid/sahayata-dashboard/internal/domain"
	"github.com/couchcryptid/sahayata-dashboard/internal/observability"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	cfg := &config.Config{
		BackendBaseURL:   srv.URL,
		HelpRequestURL:   srv.URL + "/dev/submitHelpRequest",
		BackendTimeout:   5 * time.Second,
		BackendRateLimit: 1000,
		BackendBurst:     100,
		MaxResponseBytes: 1 << 20,
	}
	return NewClient(cfg, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestClient_FetchDisasterData_SourceHint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/fetchDisasterData", r.URL.Path)
		assert.Equal(t, "usgs", r.URL.Query().Get("source"))
		_, _ = w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	body, err := testClient(t, srv).Fetch(context.Background(), domain.SourceUSGS)
	require.NoError(t, err)
	assert.JSONEq(t, `{"features":[]}`, string(body))
}

func TestClient_FetchDisasterData_NoHint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := testClient(t, srv).FetchDisasterData(context.Background(), "")
	require.NoError(t, err)
}

func TestClient_FetchDisasterData_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	_, err := c.FetchDisasterData(context.Background(), "nasa")

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusBadGateway, remote.StatusCode)
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.BackendRequests.WithLabelValues(EndpointDisasterData, "error")), 0)
}

func TestClient_FetchDisasterData_Brotli(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept-Encoding"), "br")
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		_, _ = bw.Write([]byte("latitude,longitude\n19.07,72.87,330,a,b,c\n"))
		require.NoError(t, bw.Close())
	}))
	defer srv.Close()

	body, err := testClient(t, srv).FetchDisasterData(context.Background(), "nasa")
	require.NoError(t, err)
	assert.Equal(t, "latitude,longitude\n19.07,72.87,330,a,b,c\n", string(body))
}

func TestClient_FetchDisasterData_Gzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gw := gzip.NewWriter(w)
		_, _ = gw.Write([]byte(`<rss></rss>`))
		require.NoError(t, gw.Close())
	}))
	defer srv.Close()

	body, err := testClient(t, srv).FetchDisasterData(context.Background(), "gdacs")
	require.NoError(t, err)
	assert.Equal(t, `<rss></rss>`, string(body))
}

func TestClient_FetchDisasterData_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("x"), 2<<20))
	}))
	defer srv.Close()

	_, err := testClient(t, srv).FetchDisasterData(context.Background(), "")
	require.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestClient_RegisterVolunteer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/volunteer", r.URL.Path)
		assert.Equal(t, contentTypeJSON, r.Header.Get(headerContentType))

		var got map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "Asha Rao", got["fullName"])
		assert.Equal(t, 12.97, got["lat"])

		writeJSON(t, w, http.StatusCreated, map[string]any{"volunteerId": "vol-42"})
	}))
	defer srv.Close()

	form := domain.NewVolunteerForm()
	form.FullName = "Asha Rao"
	form.Latitude = domain.Float(12.97)

	id, err := testClient(t, srv).RegisterVolunteer(context.Background(), form.Payload())
	require.NoError(t, err)
	assert.Equal(t, "vol-42", id)
}

func TestClient_RegisterVolunteer_BackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusBadRequest, map[string]any{"error": "email already registered"})
	}))
	defer srv.Close()

	_, err := testClient(t, srv).RegisterVolunteer(context.Background(), domain.NewVolunteerForm().Payload())

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "email already registered", remote.Message)
	assert.Equal(t, EndpointVolunteer, remote.Endpoint)
}

func TestClient_SubmitDonation_NumericID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/submitDonation", r.URL.Path)
		var got map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, 50.0, got["amount"])
		assert.Equal(t, "one-time", got["donationType"])
		writeJSON(t, w, http.StatusOK, map[string]any{"success": true, "donationId": 1017})
	}))
	defer srv.Close()

	id, err := testClient(t, srv).SubmitDonation(context.Background(), domain.NewDonationForm())
	require.NoError(t, err)
	assert.Equal(t, "1017", id)
}

func TestClient_SubmitDonation_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<html>oops</html>"))
	}))
	defer srv.Close()

	_, err := testClient(t, srv).SubmitDonation(context.Background(), domain.NewDonationForm())

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusInternalServerError, remote.StatusCode)
	assert.Empty(t, remote.Message)
}

func TestClient_SubmitHelpRequest_AbsoluteURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dev/submitHelpRequest", r.URL.Path)
		var got map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "0", got["lat"])
		assert.Equal(t, "0", got["lng"])
		writeJSON(t, w, http.StatusOK, map[string]any{"requestId": "req-7"})
	}))
	defer srv.Close()

	id, err := testClient(t, srv).SubmitHelpRequest(context.Background(), domain.NewHelpRequestForm().Payload())
	require.NoError(t, err)
	assert.Equal(t, "req-7", id)
}

func TestClient_SubmitHelpRequest_Details(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusUnprocessableEntity, map[string]any{"details": "phone is required"})
	}))
	defer srv.Close()

	_, err := testClient(t, srv).SubmitHelpRequest(context.Background(), domain.NewHelpRequestForm().Payload())

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "phone is required", remote.Message)
	assert.Contains(t, err.Error(), "phone is required")
}

func TestClient_MalformedSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := testClient(t, srv).SubmitDonation(context.Background(), domain.NewDonationForm())
	require.ErrorIs(t, err, ErrMalformedReply)
}

func TestClient_UploadFlow(t *testing.T) {
	var putBody, putType string
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/getUploadUrl", func(w http.ResponseWriter, r *http.Request) {
		var got map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, map[string]string{"fileName": "flood.jpg", "fileType": "image/jpeg"}, got)
		writeJSON(t, w, http.StatusOK, UploadTarget{
			UploadURL: srv.URL + "/bucket/flood.jpg?sig=abc",
			FileURL:   "https://cdn.example/flood.jpg",
		})
	})
	mux.HandleFunc("/bucket/flood.jpg", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		b, _ := io.ReadAll(r.Body)
		putBody, putType = string(b), r.Header.Get(headerContentType)
		w.WriteHeader(http.StatusOK)
	})

	c := testClient(t, srv)
	target, err := c.GetUploadURL(context.Background(), "flood.jpg", "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/flood.jpg", target.FileURL)

	require.NoError(t, c.PutFile(context.Background(), target.UploadURL, "image/jpeg", strings.NewReader("jpegdata"), 8))
	assert.Equal(t, "jpegdata", putBody)
	assert.Equal(t, "image/jpeg", putType)
}

func TestClient_GetUploadURL_MissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]string{"uploadUrl": "https://x"})
	}))
	defer srv.Close()

	_, err := testClient(t, srv).GetUploadURL(context.Background(), "a.mp4", "video/mp4")
	require.ErrorIs(t, err, ErrMalformedReply)
}

func TestClient_PutFile_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := testClient(t, srv).PutFile(context.Background(), srv.URL+"/bucket/x", "video/mp4", strings.NewReader("v"), 1)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, EndpointUpload, remote.Endpoint)
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	c := testClient(t, srv)
	srv.Close()

	_, err := c.FetchDisasterData(context.Background(), "")
	require.Error(t, err)
	var remote *RemoteError
	assert.False(t, errors.As(err, &remote))
}

func TestLimiter_CancelledContext(t *testing.T) {
	l := NewLimiter(0.001, 1)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, l.Wait(ctx, "http://relief.example/a"))
	cancel()
	require.Error(t, l.Wait(ctx, "http://relief.example/b"))
	// A different host has its own budget.
	require.NoError(t, l.Wait(context.Background(), "http://help.example/c"))
}
