package clobengine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuditNotifyPostsOrders(t *testing.T) {
	var got struct {
		Orders []ExecutedOrder `json:"orders"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAuditClient(srv.URL, 5*time.Second, nil)
	a.Notify(context.Background(), []ExecutedOrder{
		{OrderID: "ord-1", TokenID: "123", Side: "BUY", Price: 0.47, Size: 10, Lifetime: "GTC"},
	})

	require.Len(t, got.Orders, 1)
	assert.Equal(t, "ord-1", got.Orders[0].OrderID)
}

func TestAuditNotifySwallowsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	core, logs := observer.New(zap.WarnLevel)
	a := NewAuditClient(srv.URL, 5*time.Second, zap.New(core))

	// Must not panic or return anything; the failure shows up as a warning.
	a.Notify(context.Background(), []ExecutedOrder{{OrderID: "ord-1"}})
	assert.Equal(t, 1, logs.FilterMessage("audit sync failed").Len())
}

func TestAuditNotifyDisabledWithoutEndpoint(t *testing.T) {
	a := NewAuditClient("", time.Second, nil)
	a.Notify(context.Background(), []ExecutedOrder{{OrderID: "ord-1"}}) // no-op
}
