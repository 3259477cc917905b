package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rescp17/sneakvlc/pkg/descriptor"
	"github.com/rescp17/sneakvlc/pkg/feed"
	"github.com/rescp17/sneakvlc/pkg/rendezvous"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	table  *rendezvous.Table
	pub    *feed.Publisher
	http   *httptest.Server
	client *Client
}

func newTestServer(t *testing.T, cfg rendezvous.Config) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	table, err := rendezvous.NewTable(cfg, rendezvous.WithLogger(log))
	require.NoError(t, err)
	pub := feed.NewPublisher(table, log)
	table.OnChange(pub.Publish)

	srv := httptest.NewServer(NewServer(table, pub, log))
	t.Cleanup(func() {
		pub.Close()
		srv.Close()
	})

	return &testServer{
		table:  table,
		pub:    pub,
		http:   srv,
		client: NewClient(srv.URL, "test-sender"),
	}
}

func decodeError(t *testing.T, resp *http.Response) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestPunch(t *testing.T) {
	ts := newTestServer(t, rendezvous.DefaultConfig())

	resp, err := ts.client.Punch(context.Background(), "DEADBEEF", "192.168.1.10", 8080)
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "sneakvlc://deadbeef?ip=192.168.1.10&port=8080", resp.Descriptor)

	entry, err := ts.table.Get(resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", entry.Hash)
}

func TestPunch_Validation(t *testing.T) {
	ts := newTestServer(t, rendezvous.DefaultConfig())

	tests := []struct {
		name string
		body string
	}{
		{"not json", "hello"},
		{"missing hash", `{"ip":"10.0.0.1","port":80}`},
		{"missing ip", `{"hash":"abcd","port":80}`},
		{"missing port", `{"hash":"abcd","ip":"10.0.0.1"}`},
		{"port out of range", `{"hash":"abcd","ip":"10.0.0.1","port":70000}`},
		{"non hex hash", `{"hash":"xyz","ip":"10.0.0.1","port":80}`},
		{"ip with query chars", `{"hash":"abcd","ip":"10.0.0.1&port=1","port":80}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.http.URL+"/api/punch", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decodeError(t, resp)
			assert.NotEmpty(t, body.Error)
			assert.NotEmpty(t, body.Kind)
		})
	}
	assert.Empty(t, ts.table.Snapshot())
}

func TestPunch_TableFull(t *testing.T) {
	cfg := rendezvous.DefaultConfig()
	cfg.MaxSize = rendezvous.MinTableSize
	ts := newTestServer(t, cfg)

	for i := 0; i < cfg.MaxSize; i++ {
		_, err := ts.client.Punch(context.Background(), "abcd", "10.0.0.1", 8000+i)
		require.NoError(t, err)
	}

	_, err := ts.client.Punch(context.Background(), "abcd", "10.0.0.1", 9999)
	require.Error(t, err)
	assert.ErrorIs(t, err, rendezvous.ErrTableFull)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "table_full", apiErr.Kind)
}

func TestRefreshAndWithdraw(t *testing.T) {
	ts := newTestServer(t, rendezvous.DefaultConfig())
	ctx := context.Background()

	resp, err := ts.client.Punch(ctx, "abcd", "10.0.0.1", 8080)
	require.NoError(t, err)

	require.NoError(t, ts.client.Refresh(ctx, resp.ID))
	require.NoError(t, ts.client.Withdraw(ctx, resp.ID))

	err = ts.client.Withdraw(ctx, resp.ID)
	assert.ErrorIs(t, err, rendezvous.ErrNotFound)
	err = ts.client.Refresh(ctx, resp.ID)
	assert.ErrorIs(t, err, rendezvous.ErrNotFound)
}

func TestEntriesAndLookup(t *testing.T) {
	ts := newTestServer(t, rendezvous.DefaultConfig())
	ctx := context.Background()

	entries, err := ts.client.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	first, err := ts.client.Punch(ctx, "aaaa", "10.0.0.1", 1000)
	require.NoError(t, err)
	second, err := ts.client.Punch(ctx, "bbbb", "10.0.0.2", 2000)
	require.NoError(t, err)

	entries, err = ts.client.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first.ID, entries[0].ID)
	assert.Equal(t, second.ID, entries[1].ID)

	entry, err := ts.client.Lookup(ctx, "BBBB")
	require.NoError(t, err)
	assert.Equal(t, second.ID, entry.ID)
	assert.Equal(t, 2000, entry.Port)

	_, err = ts.client.Lookup(ctx, "cccc")
	assert.ErrorIs(t, err, rendezvous.ErrNotFound)
}

func TestEntriesWireShape(t *testing.T) {
	ts := newTestServer(t, rendezvous.DefaultConfig())
	_, err := ts.table.Insert("abcd", "10.0.0.1", 8080)
	require.NoError(t, err)

	resp, err := http.Get(ts.http.URL + "/api/entries")
	require.NoError(t, err)
	defer resp.Body.Close()

	var raw []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	require.Len(t, raw, 1)
	for _, key := range []string{"id", "hash", "ip", "port", "created_at", "last_seen"} {
		assert.Contains(t, raw[0], key)
	}
}

func TestDescriptorAndQR(t *testing.T) {
	ts := newTestServer(t, rendezvous.DefaultConfig())
	punched, err := ts.client.Punch(context.Background(), "abcd", "10.0.0.1", 8080)
	require.NoError(t, err)

	resp, err := http.Get(ts.http.URL + "/api/entries/" + punched.ID + "/descriptor")
	require.NoError(t, err)
	var body DescriptorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, punched.Descriptor, body.Descriptor)

	d, err := descriptor.Decode(body.Descriptor)
	require.NoError(t, err)
	assert.Equal(t, "abcd", d.Hash)

	resp, err = http.Get(ts.http.URL + "/api/entries/" + punched.ID + "/qr")
	require.NoError(t, err)
	png, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	resp, err = http.Get(ts.http.URL + "/api/entries/missing/qr")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, rendezvous.DefaultConfig())
	_, err := ts.table.Insert("abcd", "10.0.0.1", 8080)
	require.NoError(t, err)

	health, err := ts.client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, ServiceName, health.Service)
	assert.Equal(t, 1, health.Entries)
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, rendezvous.DefaultConfig())

	resp, err := http.Get(ts.http.URL + "/api/punch")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestFeedEndpoint(t *testing.T) {
	ts := newTestServer(t, rendezvous.DefaultConfig())

	wsURL, err := feed.FeedURL(ts.http.URL)
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var initial []rendezvous.Entry
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Empty(t, initial)

	punched, err := ts.client.Punch(context.Background(), "abcd", "10.0.0.1", 8080)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var update []rendezvous.Entry
	require.NoError(t, conn.ReadJSON(&update))
	require.Len(t, update, 1)
	assert.Equal(t, punched.ID, update[0].ID)

	// Withdraw through the feed itself.
	require.NoError(t, conn.WriteJSON(feed.Command{Action: feed.ActionWithdraw, ID: punched.ID}))
	require.NoError(t, conn.ReadJSON(&update))
	assert.Empty(t, update)
}

func TestServiceIDHeader(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get(serviceIDHeader))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", "sender-42")
	_, err := client.Entries(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"sender-42"}, seen)
	assert.Equal(t, srv.URL, client.ServerURL())
}

func TestClient_EmptyServerURL(t *testing.T) {
	_, err := NewClient("", "x").Entries(context.Background())
	assert.Error(t, err)
}
