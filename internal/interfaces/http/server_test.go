package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-sync/internal/config"
	"github.com/your-org/storefront-sync/internal/domain/cart"
	"github.com/your-org/storefront-sync/internal/domain/product"
	"github.com/your-org/storefront-sync/internal/domain/user"
	"github.com/your-org/storefront-sync/internal/feed"
	httpserver "github.com/your-org/storefront-sync/internal/interfaces/http"
	"github.com/your-org/storefront-sync/internal/infrastructure/memory"
	"github.com/your-org/storefront-sync/internal/pkg/auth"
	"github.com/your-org/storefront-sync/internal/session"
)

type envelope struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

type api struct {
	server  *httpserver.Server
	manager *session.Manager
	store   *memory.Store
	user    user.User
	mug     product.Product
	token   string
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "storefront-sync", Version: "test", Environment: "test"},
		JWT: config.JWTConfig{
			Secret:            strings.Repeat("k", 32),
			Issuer:            "storefront-sync",
			AccessTokenExpiry: time.Hour,
		},
		Security: config.SecurityConfig{
			CORSAllowedOrigins: []string{"http://localhost:3000"},
			CORSAllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			CORSAllowedHeaders: []string{"Authorization", "Content-Type"},
		},
		Sync: config.SyncConfig{
			StoreDriver:    "memory",
			DebounceWindow: 20 * time.Millisecond,
			WriteTimeout:   time.Second,
			StreamPing:     time.Second,
		},
	}
}

func newAPI(t *testing.T, checks map[string]httpserver.HealthCheck) *api {
	t.Helper()
	cfg := testConfig()
	logger, _ := test.NewNullLogger()

	hub := feed.NewHub()
	st := memory.NewStore(hub, logrus.NewEntry(logger))
	u := st.PutUser(context.Background(), user.User{Email: "ada@example.com", Name: "Ada"})
	mug := st.PutProduct(context.Background(), product.Product{Name: "Mug", Price: decimal.RequireFromString("9.50"), StockQuantity: 5})

	manager := session.NewManager(session.Stores{
		Products: st.Products(),
		Cart:     st.Cart(),
		Wishlist: st.Wishlist(),
		Users:    st.Users(),
		Feed:     hub,
	}, session.Options{
		DebounceWindow: cfg.Sync.DebounceWindow,
		WriteTimeout:   cfg.Sync.WriteTimeout,
		Logger:         logrus.NewEntry(logger),
	})
	t.Cleanup(manager.Close)

	token, err := auth.NewJWTManager(cfg.JWT).GenerateAccessToken(u.ID, u.Email, false)
	require.NoError(t, err)

	return &api{
		server:  httpserver.NewServer(cfg, httpserver.Dependencies{Manager: manager, HealthChecks: checks, Logger: logger}),
		manager: manager,
		store:   st,
		user:    u,
		mug:     mug,
		token:   token,
	}
}

func (a *api) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	rec := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}

func TestHealth(t *testing.T) {
	a := newAPI(t, map[string]httpserver.HealthCheck{
		"database": func() error { return nil },
	})
	code, _ := a.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)

	down := newAPI(t, map[string]httpserver.HealthCheck{
		"database": func() error { return nil },
		"redis":    func() error { return errors.New("connection refused") },
	})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	down.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis check failed")
}

func TestProducts_Public(t *testing.T) {
	a := newAPI(t, nil)
	a.token = ""

	code, env := a.do(t, http.MethodGet, "/api/v1/products", nil)
	require.Equal(t, http.StatusOK, code)

	var data struct {
		Products []product.Product `json:"products"`
		Count    int               `json:"count"`
	}
	decode(t, env.Data, &data)
	assert.Equal(t, 1, data.Count)
	assert.Equal(t, "Mug", data.Products[0].Name)

	code, env = a.do(t, http.MethodGet, "/api/v1/products/"+a.mug.ID.String(), nil)
	require.Equal(t, http.StatusOK, code)
	var p product.Product
	decode(t, env.Data, &p)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("9.50")))

	code, _ = a.do(t, http.MethodGet, "/api/v1/products/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = a.do(t, http.MethodGet, "/api/v1/products/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCart_RequiresTokenAndSession(t *testing.T) {
	a := newAPI(t, nil)

	token := a.token
	a.token = ""
	code, _ := a.do(t, http.MethodGet, "/api/v1/cart", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	a.token = token
	code, env := a.do(t, http.MethodGet, "/api/v1/cart", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, env.Error, "No active session")
}

func TestSession_UnknownUser(t *testing.T) {
	a := newAPI(t, nil)
	token, err := auth.NewJWTManager(testConfig().JWT).GenerateAccessToken(uuid.New(), "ghost@example.com", false)
	require.NoError(t, err)
	a.token = token

	code, _ := a.do(t, http.MethodPost, "/api/v1/session", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Zero(t, a.manager.Count())
}

func TestCartAndWishlistFlow(t *testing.T) {
	a := newAPI(t, nil)

	code, env := a.do(t, http.MethodPost, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	var snap session.Snapshot
	decode(t, env.Data, &snap)
	assert.Equal(t, session.StateAuthenticated.String(), snap.State)
	require.NotNil(t, snap.User)
	assert.Equal(t, a.user.ID, snap.User.ID)

	code, env = a.do(t, http.MethodPost, "/api/v1/cart/items", payload{"product_id": a.mug.ID, "quantity": 2})
	require.Equal(t, http.StatusOK, code, env.Error)
	code, env = a.do(t, http.MethodPost, "/api/v1/cart/items", payload{"product_id": a.mug.ID})
	require.Equal(t, http.StatusOK, code, env.Error)

	var cs cart.Snapshot
	decode(t, env.Data, &cs)
	require.Len(t, cs.Items, 1)
	assert.Equal(t, 3, cs.Items[0].Quantity)
	assert.Equal(t, 3, cs.ItemCount)
	itemID := cs.Items[0].ID

	code, _ = a.do(t, http.MethodPost, "/api/v1/cart/items", payload{"product_id": a.mug.ID, "quantity": -1})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.do(t, http.MethodPut, "/api/v1/cart/items/"+itemID.String(), payload{"quantity": 0})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = a.do(t, http.MethodPut, "/api/v1/cart/items/"+itemID.String(), payload{"quantity": 5})
	require.Equal(t, http.StatusOK, code, env.Error)
	stored, err := a.store.Cart().FindByID(context.Background(), itemID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Quantity)

	code, env = a.do(t, http.MethodPost, "/api/v1/cart/items/"+itemID.String()+"/increment", nil)
	require.Equal(t, http.StatusAccepted, code, env.Error)
	var step struct {
		Quantity int `json:"quantity"`
	}
	decode(t, env.Data, &step)
	assert.Equal(t, 6, step.Quantity)
	assert.Eventually(t, func() bool {
		stored, err := a.store.Cart().FindByID(context.Background(), itemID)
		return err == nil && stored.Quantity == 6
	}, 2*time.Second, 10*time.Millisecond)

	code, env = a.do(t, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, code)
	var totals struct {
		Totals cart.Totals `json:"totals"`
	}
	decode(t, env.Data, &totals)
	assert.True(t, totals.Totals.SubTotal.Equal(decimal.RequireFromString("57")), totals.Totals.SubTotal.String())

	code, _ = a.do(t, http.MethodPut, "/api/v1/cart/items/"+uuid.NewString(), payload{"quantity": 2})
	assert.Equal(t, http.StatusNotFound, code)

	wishPath := "/api/v1/wishlist/" + a.mug.ID.String() + "/toggle"
	var toggled struct {
		InWishlist bool `json:"in_wishlist"`
	}
	code, env = a.do(t, http.MethodPost, wishPath, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	decode(t, env.Data, &toggled)
	assert.True(t, toggled.InWishlist)

	code, env = a.do(t, http.MethodPost, wishPath, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	decode(t, env.Data, &toggled)
	assert.False(t, toggled.InWishlist)

	code, env = a.do(t, http.MethodGet, "/api/v1/wishlist", nil)
	require.Equal(t, http.StatusOK, code)
	var wl struct {
		Count int `json:"count"`
	}
	decode(t, env.Data, &wl)
	assert.Zero(t, wl.Count)

	code, _ = a.do(t, http.MethodDelete, "/api/v1/cart/items/"+itemID.String(), nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = a.do(t, http.MethodDelete, "/api/v1/cart/items/"+itemID.String(), nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = a.do(t, http.MethodDelete, "/api/v1/session", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Zero(t, a.manager.Count())

	code, _ = a.do(t, http.MethodDelete, "/api/v1/session", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestStream_PushesSnapshots(t *testing.T) {
	a := newAPI(t, nil)
	code, env := a.do(t, http.MethodPost, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, code, env.Error)

	srv := httptest.NewServer(a.server.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/session/stream?access_token=" + a.token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	type frame struct {
		Type string           `json:"type"`
		Data session.Snapshot `json:"data"`
	}
	read := func() frame {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		return f
	}

	first := read()
	assert.Equal(t, "snapshot", first.Type)
	assert.Empty(t, first.Data.Cart.Items)

	// a write from elsewhere reaches the stream through the feed
	_, err = a.store.Cart().Upsert(context.Background(), a.user.ID, a.mug.ID, 4)
	require.NoError(t, err)

	for {
		f := read()
		if f.Type == "snapshot" && len(f.Data.Cart.Items) == 1 {
			assert.Equal(t, 4, f.Data.Cart.Items[0].Quantity)
			break
		}
	}

	a.manager.Release(a.user.ID)
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err := conn.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err.Error())
			break
		}
	}
}

func TestStream_RequiresSession(t *testing.T) {
	a := newAPI(t, nil)
	srv := httptest.NewServer(a.server.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/session/stream?access_token=" + a.token
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

type payload map[string]interface{}
