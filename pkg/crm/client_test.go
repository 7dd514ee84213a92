package crm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fescue/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.APIKey = "secret"
	client, err := NewClient(cfg, testLogger())
	require.NoError(t, err)
	return client
}

func TestClient_ListCustomers_Paginates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "/customers", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Query().Get("cursor") {
		case "":
			fmt.Fprint(w, `{"data":[{"id":"c1","name":"Somchai Jaidee","phone_number":"+66812345678","stable_hash_id":"h1","tier":"gold"}],"meta":{"next_cursor":"p2"}}`)
		case "p2":
			fmt.Fprint(w, `{"data":[{"id":"c2","name":"Suda Rakdee","email":"suda@example.com"},{"name":"no id"}],"meta":{"next_cursor":null}}`)
		default:
			http.Error(w, "unexpected cursor", http.StatusBadRequest)
		}
	})

	customers, err := client.ListCustomers(context.Background())
	require.NoError(t, err)
	require.Len(t, customers, 2)

	assert.Equal(t, "c1", customers[0].ID)
	assert.Equal(t, "Somchai Jaidee", customers[0].Name)
	assert.Equal(t, "+66812345678", *customers[0].PhoneNumber)
	assert.Equal(t, "h1", customers[0].StableHash())
	assert.Nil(t, customers[0].Email)
	assert.Equal(t, "gold", customers[0].Data["tier"])

	assert.Equal(t, "c2", customers[1].ID)
	assert.Equal(t, "suda@example.com", *customers[1].Email)
}

func TestClient_ListCustomers_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.ListCustomers(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsExternalFetchError(err))
}

func TestClient_CustomerExistsByID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/customers/c1" {
			fmt.Fprint(w, `{"id":"c1"}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	exists, err := client.CustomerExistsByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = client.CustomerExistsByID(context.Background(), "gone")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestClient_CustomerExistsByStableHash(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("stable_hash_id") == "h1" {
			fmt.Fprint(w, `{"data":[{"id":"c1","stable_hash_id":"h1"}]}`)
			return
		}
		fmt.Fprint(w, `{"data":[]}`)
	})

	exists, err := client.CustomerExistsByStableHash(context.Background(), "h1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = client.CustomerExistsByStableHash(context.Background(), "h2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestNewClient_InvalidExpression(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = "http://crm.local"
	cfg.RecordsPath = "data[?"

	_, err := NewClient(cfg, testLogger())
	assert.Error(t, err)
}
