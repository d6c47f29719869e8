package offers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/valeevte/OfferBooth/internal/database"
	"github.com/valeevte/OfferBooth/internal/offersapi"
	"github.com/valeevte/OfferBooth/internal/products"
)

func TestSync_SQLiteWithTokenRenewal(t *testing.T) {
	var (
		authCalls atomic.Int32
		body      atomic.Value
	)
	body.Store(`[{"id":"1","price":100,"items_in_stock":10},{"id":"2","price":250,"items_in_stock":12}]`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth":
			authCalls.Add(1)
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"access_token":"fresh"}`)
		case "/api/v1/products/a/offers":
			if r.Header.Get("Bearer") != "fresh" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, body.Load().(string))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	db, err := database.OpenSQLite(t.Context(), database.DBConfig{
		SQLitePath: filepath.Join(t.TempDir(), "booth.sqlite"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := products.NewSQLiteRepository(db, nil)
	require.NoError(t, repo.InsertProduct(t.Context(), products.Product{ID: "a", Name: "Alpha", Description: "first"}))

	client := offersapi.NewClient(offersapi.NewHTTPClient(time.Second), srv.URL, nil)
	svc := offersapi.NewService(client, offersapi.NewSession(client, "refresh", "expired", nil))
	r := NewReconciler(repo, svc, nil)

	res, err := r.Sync(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.EqualValues(t, 1, authCalls.Load())

	got, err := repo.ListOffers(t.Context(), "a")
	require.NoError(t, err)
	assert.Equal(t, []products.Offer{
		{ID: "1", ProductID: "a", Price: 100, ItemsInStock: 10},
		{ID: "2", ProductID: "a", Price: 250, ItemsInStock: 12},
	}, got)

	body.Store(`[{"id":"2","price":240,"items_in_stock":12}]`)
	res, err = r.Sync(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Result{Products: 1, Updated: 1, Deleted: 1}, res)
	assert.EqualValues(t, 1, authCalls.Load())

	res, err = r.Sync(t.Context())
	require.NoError(t, err)
	assert.Zero(t, res.Writes())
}

func TestSync_SQLiteOfferIDSharedByTwoProducts(t *testing.T) {
	db, err := database.OpenSQLite(t.Context(), database.DBConfig{
		SQLitePath: filepath.Join(t.TempDir(), "booth.sqlite"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := products.NewSQLiteRepository(db, nil)
	require.NoError(t, repo.InsertProduct(t.Context(), products.Product{ID: "a", Name: "Alpha", Description: "first"}))
	require.NoError(t, repo.InsertProduct(t.Context(), products.Product{ID: "b", Name: "Beta", Description: "second"}))

	src := newFakeSource()
	src.set("a", offersapi.Offer{ID: "x", Price: 10, ItemsInStock: 1})
	src.set("b", offersapi.Offer{ID: "x", Price: 20, ItemsInStock: 2})
	r := NewReconciler(repo, src, nil)

	res, err := r.Sync(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Result{Products: 2, Inserted: 1, Failed: 1}, res)

	// the row stays with its first product on every later cycle
	for range 2 {
		res, err = r.Sync(t.Context())
		require.NoError(t, err)
		assert.Equal(t, Result{Products: 2, Failed: 1}, res)
	}

	got, err := repo.ListOffers(t.Context(), "a")
	require.NoError(t, err)
	assert.Equal(t, []products.Offer{{ID: "x", ProductID: "a", Price: 10, ItemsInStock: 1}}, got)
	got, err = repo.ListOffers(t.Context(), "b")
	require.NoError(t, err)
	assert.Empty(t, got)
}
