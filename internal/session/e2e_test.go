package session

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-client/internal/auth"
	"github.com/angelmondragon/storefront-client/internal/cart"
	cartclient "github.com/angelmondragon/storefront-client/internal/cart/client"
	"github.com/angelmondragon/storefront-client/internal/cart/guest"
	"github.com/angelmondragon/storefront-client/internal/localstore"
	"github.com/angelmondragon/storefront-client/internal/mockapi"
	"github.com/angelmondragon/storefront-client/internal/orders"
	"github.com/angelmondragon/storefront-client/internal/toast"
	"github.com/angelmondragon/storefront-client/pkg/config"
	"github.com/angelmondragon/storefront-client/pkg/logger"
	"github.com/angelmondragon/storefront-client/pkg/rest"
)

type e2eStack struct {
	manager *Manager
	backend *mockapi.Server
	store   *localstore.Store
	guest   *guest.Store
	toaster *toast.Toaster
}

func newE2EStack(t *testing.T) *e2eStack {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "test"})

	backend := mockapi.New(config.MockAPIConfig{
		JWTSecret: "e2e-secret",
		JWTIssuer: "e2e",
		TokenTTL:  time.Hour,
	}, logg)
	backend.SeedUser("alice", "pw", false)
	backend.SeedProducts([]mockapi.Product{
		{ID: "A", Title: "Product A", Price: decimal.RequireFromString("10.00")},
		{ID: "B", Title: "Product B", Price: decimal.RequireFromString("5.00")},
	})

	server := httptest.NewServer(backend.Handler())
	t.Cleanup(server.Close)

	store := localstore.New(t.TempDir(), logg)
	creds := &Credentials{}

	restClient, err := rest.New(config.BackendConfig{BaseURL: server.URL, Timeout: 2 * time.Second},
		creds, logg, nil)
	if err != nil {
		t.Fatalf("rest client: %v", err)
	}
	cartClient, err := cartclient.New(restClient)
	if err != nil {
		t.Fatalf("cart client: %v", err)
	}
	authClient, err := auth.New(restClient, store)
	if err != nil {
		t.Fatalf("auth client: %v", err)
	}
	ordersClient, err := orders.New(restClient)
	if err != nil {
		t.Fatalf("orders client: %v", err)
	}

	guestStore := guest.NewStore(store)
	toaster := toast.New(toast.WithDuration(50 * time.Millisecond))
	manager, err := NewManager(Deps{
		Guest:       guestStore,
		Cart:        cartClient,
		Auth:        authClient,
		Orders:      ordersClient,
		Credentials: creds,
		Toast:       toaster,
		Logger:      logg,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	return &e2eStack{
		manager: manager,
		backend: backend,
		store:   store,
		guest:   guestStore,
		toaster: toaster,
	}
}

func TestGuestToAuthenticatedJourney(t *testing.T) {
	t.Parallel()

	stack := newE2EStack(t)
	ctx := context.Background()

	// Guest shops.
	count, err := stack.manager.AddToCart(ctx,
		guest.Product{ID: "A", Name: "Product A", Price: cart.PriceFromString("10.00")}, 1)
	if err != nil || count != 1 {
		t.Fatalf("add A: count=%d err=%v", count, err)
	}
	count, err = stack.manager.AddToCart(ctx,
		guest.Product{ID: "B", Name: "Product B", Price: cart.PriceFromString("5.00")}, 3)
	if err != nil || count != 4 {
		t.Fatalf("add B: count=%d err=%v", count, err)
	}

	snapshot, err := stack.manager.CartSnapshot(ctx)
	if err != nil {
		t.Fatalf("guest snapshot: %v", err)
	}
	if len(snapshot.Items) != 2 {
		t.Fatalf("expected 2 guest lines, got %d", len(snapshot.Items))
	}
	if !snapshot.GrandTotal.Equal(decimal.RequireFromString("25.00")) {
		t.Fatalf("expected guest total 25.00, got %s", snapshot.GrandTotal)
	}

	// Guest signs in; the cart merges server-side.
	if err := stack.manager.Login(ctx, "alice", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	if got := stack.backend.CartLines("alice"); got["A"] != 1 || got["B"] != 3 {
		t.Fatalf("unexpected server cart after merge: %v", got)
	}
	if lines := stack.guest.Load(); len(lines) != 0 {
		t.Fatalf("expected guest store empty after merge, got %d lines", len(lines))
	}

	// The authenticated snapshot reflects the merged server cart.
	snapshot, err = stack.manager.CartSnapshot(ctx)
	if err != nil {
		t.Fatalf("authenticated snapshot: %v", err)
	}
	if got := cart.TotalQuantity(snapshot.Items); got != 4 {
		t.Fatalf("expected 4 items server-side, got %d", got)
	}
	if !snapshot.GrandTotal.Equal(decimal.RequireFromString("25.00")) {
		t.Fatalf("expected total 25.00, got %s", snapshot.GrandTotal)
	}

	// Checkout with a manual transaction reference empties the cart.
	total, err := stack.manager.Checkout(ctx, "TX-1001")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !total.Equal(decimal.RequireFromString("25.00")) {
		t.Fatalf("expected order total 25.00, got %s", total)
	}

	count, err = stack.manager.CartCount(ctx)
	if err != nil || count != 0 {
		t.Fatalf("expected empty cart after checkout, count=%d err=%v", count, err)
	}

	history, err := stack.manager.OrderHistory(ctx)
	if err != nil || len(history) != 1 {
		t.Fatalf("expected one order, got %d (%v)", len(history), err)
	}
	if history[0].TransactionID != "TX-1001" {
		t.Fatalf("unexpected transaction reference %q", history[0].TransactionID)
	}
}

func TestLoginWithEmptyGuestCartOverWire(t *testing.T) {
	t.Parallel()

	stack := newE2EStack(t)
	ctx := context.Background()

	if err := stack.manager.Login(ctx, "alice", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if got := stack.backend.CartLines("alice"); len(got) != 0 {
		t.Fatalf("expected no server cart for empty merge, got %v", got)
	}
}

func TestStaleCredentialFallsBackToGuest(t *testing.T) {
	t.Parallel()

	stack := newE2EStack(t)
	ctx := context.Background()

	// A persisted credential that is unexpired but not signed by the
	// backend: restore adopts it, the first request gets a 401, and
	// the session ends at the manager boundary.
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "e2e",
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("wrong-secret"))
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	stack.store.Set(auth.StorageKey, auth.Profile{Username: "alice", Access: forged})

	stack.manager.Restore(ctx)
	if stack.manager.Mode() != ModeAuthenticated {
		t.Fatal("expected restore to adopt the unexpired credential")
	}

	if _, err := stack.manager.CartSnapshot(ctx); err == nil {
		t.Fatal("expected the stale credential to be rejected")
	}
	if stack.manager.Mode() != ModeGuest {
		t.Fatal("expected fallback to guest mode after 401")
	}
	if _, ok := stack.manager.Profile(); ok {
		t.Fatal("expected no profile after fallback")
	}
}

func TestMergeSkipsWithdrawnProductsOverWire(t *testing.T) {
	t.Parallel()

	stack := newE2EStack(t)
	ctx := context.Background()

	stack.manager.AddToCart(ctx, guest.Product{ID: "A", Name: "Product A", Price: cart.PriceFromString("10.00")}, 2)
	stack.manager.AddToCart(ctx, guest.Product{ID: "withdrawn", Name: "Gone", Price: cart.PriceFromString("1.00")}, 1)

	if err := stack.manager.Login(ctx, "alice", "pw"); err != nil {
		t.Fatalf("login must survive a withdrawn product in the snapshot: %v", err)
	}

	got := stack.backend.CartLines("alice")
	if got["A"] != 2 {
		t.Fatalf("expected surviving product merged, got %v", got)
	}
	if _, ok := got["withdrawn"]; ok {
		t.Fatalf("expected withdrawn product skipped, got %v", got)
	}
	if lines := stack.guest.Load(); len(lines) != 0 {
		t.Fatal("expected guest store cleared after successful merge")
	}
}
