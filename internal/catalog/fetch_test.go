package catalog

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/charcards/internal/domain"
)

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"info":{"count":1},"data":[{"name":"Mickey Mouse","films":["Fantasia"],"tvShows":[]}]}`))
	}))
	defer srv.Close()

	p, err := Fetch(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, domain.PayloadObject, p.Kind)
	require.Len(t, p.Entries, 2)
	assert.Equal(t, domain.ValueOther, p.Entries[0].Kind)
	require.Len(t, p.Entries[1].Records, 1)
	assert.Equal(t, "Mickey Mouse", p.Entries[1].Records[0].Name)
}

func TestFetch_NonSuccessStatusIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"data":[{"name":"should not be read"}]}`))
	}))
	defer srv.Close()

	_, err := Fetch(context.Background(), srv.Client(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, KindNetwork, Kind(err))

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
	assert.Contains(t, err.Error(), NetworkErrorMessage)
}

func TestFetch_MalformedJSONIsDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	_, err := Fetch(context.Background(), srv.Client(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, KindDecode, Kind(err))
}

func TestFetch_ConnectionRefusedIsTransportError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = Fetch(context.Background(), http.DefaultClient, "http://"+addr+"/character")
	require.Error(t, err)
	assert.Equal(t, KindTransport, Kind(err))
	assert.NotNil(t, errors.Unwrap(err), "transport 错误应保留底层原因")
}

func TestFetch_ContextCanceledIsTransportError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Fetch(ctx, srv.Client(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, KindTransport, Kind(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestFetch_NilClient(t *testing.T) {
	_, err := Fetch(context.Background(), nil, "http://example.test")
	require.Error(t, err)
	assert.Equal(t, "", Kind(err))
}

func TestFetch_SingleRequestNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := Fetch(context.Background(), srv.Client(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
