package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func certPEM(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "securetoken"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

// newCertServer serves {testKid: cert} and counts requests.
func newCertServer(t *testing.T, cacheControl string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	body, err := json.Marshal(map[string]string{testKid: certPEM(t, testKey())})
	require.NoError(t, err)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", cacheControl)
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestHTTPKeySource_FetchesAndCaches(t *testing.T) {
	srv, hits := newCertServer(t, "public, max-age=600, must-revalidate")
	src := NewHTTPKeySource(srv.URL, srv.Client())

	key, err := src.PublicKey(context.Background(), testKid)
	require.NoError(t, err)
	assert.True(t, key.Equal(&testKey().PublicKey))

	_, err = src.PublicKey(context.Background(), testKid)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestHTTPKeySource_RefetchesAfterMaxAge(t *testing.T) {
	srv, hits := newCertServer(t, "max-age=60")
	src := NewHTTPKeySource(srv.URL, srv.Client())
	now := time.Now()
	src.now = func() time.Time { return now }

	_, err := src.PublicKey(context.Background(), testKid)
	require.NoError(t, err)

	now = now.Add(61 * time.Second)
	_, err = src.PublicKey(context.Background(), testKid)
	require.NoError(t, err)

	assert.Equal(t, int32(2), hits.Load())
}

func TestHTTPKeySource_UnknownKidWhileFresh(t *testing.T) {
	srv, hits := newCertServer(t, "max-age=600")
	src := NewHTTPKeySource(srv.URL, srv.Client())

	_, err := src.PublicKey(context.Background(), testKid)
	require.NoError(t, err)

	_, err = src.PublicKey(context.Background(), "rotated-away")
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.Equal(t, int32(1), hits.Load())
}

func TestHTTPKeySource_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPKeySource(srv.URL, srv.Client()).PublicKey(context.Background(), testKid)
	assert.Error(t, err)
}

func TestHTTPKeySource_BadCertificate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"kid-1":"not a certificate"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPKeySource(srv.URL, srv.Client()).PublicKey(context.Background(), testKid)
	assert.Error(t, err)
}

func TestMaxAge(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"public, max-age=19302, must-revalidate, no-transform", 19302 * time.Second},
		{"max-age=5", 5 * time.Second},
		{"no-cache", defaultKeyMaxAge},
		{"max-age=abc", defaultKeyMaxAge},
		{"max-age=0", defaultKeyMaxAge},
		{"", defaultKeyMaxAge},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, maxAge(tt.header))
		})
	}
}
