package twin

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(opts...))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestListUsers(t *testing.T) {
	srv := setup(t)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/users", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.EqualValues(t, 1, body["page"])
	assert.EqualValues(t, 6, body["per_page"])
	assert.EqualValues(t, 12, body["total"])
	assert.EqualValues(t, 2, body["total_pages"])

	data := body["data"].([]any)
	require.Len(t, data, 6)
	assert.Equal(t, "george.bluth@reqres.in", data[0].(map[string]any)["email"])
}

func TestListUsersSecondPage(t *testing.T) {
	srv := setup(t)
	_, body := doJSON(t, http.MethodGet, srv.URL+"/api/users?page=2", nil)
	data := body["data"].([]any)
	require.Len(t, data, 6)
	assert.Equal(t, "michael.lawson@reqres.in", data[0].(map[string]any)["email"])

	_, body = doJSON(t, http.MethodGet, srv.URL+"/api/users?page=9", nil)
	assert.Empty(t, body["data"])
}

func TestGetUser(t *testing.T) {
	srv := setup(t)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/users/2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "janet.weaver@reqres.in", body["data"].(map[string]any)["email"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/users/23", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, body)
}

func TestCreateUpdateDeleteUser(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	srv := setup(t, WithClock(func() time.Time { return fixed }))

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/users", map[string]string{"name": "Mr. Andersen", "job": "Nobody"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Mr. Andersen", body["name"])
	assert.Equal(t, "Nobody", body["job"])
	assert.Equal(t, "101", body["id"])
	assert.Equal(t, "2025-01-02T03:04:05.000Z", body["createdAt"])

	resp, body = doJSON(t, http.MethodPut, srv.URL+"/api/users/99", map[string]string{"name": "Neo", "job": "The One"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Neo", body["name"])
	assert.Equal(t, "2025-01-02T03:04:05.000Z", body["updatedAt"])

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/users/99", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCreateUserRejectsBadJSON(t *testing.T) {
	srv := setup(t)
	resp, err := http.Post(srv.URL+"/api/users", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestColors(t *testing.T) {
	srv := setup(t)
	_, body := doJSON(t, http.MethodGet, srv.URL+"/api/unknown", nil)
	data := body["data"].([]any)
	require.NotEmpty(t, data)
	assert.Equal(t, "cerulean", data[0].(map[string]any)["name"])

	_, body = doJSON(t, http.MethodGet, srv.URL+"/api/unknown/2", nil)
	assert.Equal(t, "fuchsia rose", body["data"].(map[string]any)["name"])

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/unknown/23", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRegister(t *testing.T) {
	srv := setup(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/register", map[string]string{"email": "eve.holt@reqres.in", "password": "pistol"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 4, body["id"])
	assert.NotEmpty(t, body["token"])

	tests := []struct {
		name string
		body map[string]string
		want string
	}{
		{"missing password", map[string]string{"email": "eve.holt@reqres.in"}, "Missing password"},
		{"missing email", map[string]string{"password": "x"}, "Missing email or username"},
		{"undefined user", map[string]string{"email": "sydney@fife", "password": "x"}, "Note: Only defined users succeed registration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/register", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.want, body["error"])
		})
	}
}

func TestLoginAndLogout(t *testing.T) {
	srv := setup(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/login", map[string]string{"email": "eve.holt@reqres.in", "password": "cityslicka"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/login", map[string]string{"email": "eve.holt@reqres.in"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Missing password", body["error"])

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/logout", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	logout, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	logout.Body.Close()
	assert.Equal(t, http.StatusOK, logout.StatusCode)

	req.Header.Set("Authorization", "Bearer forged")
	logout, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	logout.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, logout.StatusCode)
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := newTokenIssuer([]byte("k"))
	token, err := issuer.Issue(User{ID: 4}, time.Now())
	require.NoError(t, err)

	id, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, 4, id)

	_, err = newTokenIssuer([]byte("other")).Verify(token)
	assert.Error(t, err)
}

func TestDelay(t *testing.T) {
	srv := setup(t, WithDelayUnit(20*time.Millisecond))

	start := time.Now()
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/users?delay=2", nil)
	elapsed := time.Since(start)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	assert.NotEmpty(t, body["data"])

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/users?delay=soon", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIKey(t *testing.T) {
	srv := setup(t, WithAPIKey("reqres-free-v1"))

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/users", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Missing API key", body["error"])

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/users", nil)
	require.NoError(t, err)
	req.Header.Set(APIKeyHeader, "reqres-free-v1")
	ok, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	ok.Body.Close()
	assert.Equal(t, http.StatusOK, ok.StatusCode)
}

func TestServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan net.Addr, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- New().Serve(ctx, "127.0.0.1:0", func(a net.Addr) { addrCh <- a })
	}()

	addr := <-addrCh
	resp, err := http.Get("http://" + addr.String() + "/api/users/1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	assert.NoError(t, <-errCh)
}
