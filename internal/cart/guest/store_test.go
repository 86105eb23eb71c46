package guest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-client/internal/cart"
	"github.com/angelmondragon/storefront-client/internal/localstore"
	"github.com/angelmondragon/storefront-client/pkg/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(localstore.New(t.TempDir(), logger.New(logger.Options{ServiceName: "test"})))
}

func productA() Product {
	return Product{ID: "a", Name: "Product A", Price: cart.PriceFromString("10.00")}
}

func TestAddOrIncrementConsolidates(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	store.AddOrIncrement(productA(), 2)
	lines := store.AddOrIncrement(productA(), 3)

	require.Len(t, lines, 1, "same product must consolidate into one line")
	require.Equal(t, 5, lines[0].Quantity)
}

func TestAddDistinctProducts(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	store.AddOrIncrement(productA(), 1)
	lines := store.AddOrIncrement(Product{ID: "b", Name: "Product B", Price: cart.PriceFromString("5.00")}, 3)

	require.Len(t, lines, 2)
	require.NotEqual(t, lines[0].LineID, lines[1].LineID)
	require.Equal(t, 4, cart.TotalQuantity(lines))
}

func TestSetQuantityFloorRemovesLine(t *testing.T) {
	t.Parallel()

	for _, qty := range []int{0, -3} {
		store := newTestStore(t)
		lines := store.AddOrIncrement(productA(), 2)

		lines = store.SetQuantity(lines[0].LineID, qty)
		require.Empty(t, lines, "qty %d must remove the line", qty)
		require.Empty(t, store.Load(), "removal must persist")
	}
}

func TestSetQuantityUpdates(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	lines := store.AddOrIncrement(productA(), 2)
	lines = store.SetQuantity(lines[0].LineID, 7)

	require.Len(t, lines, 1)
	require.Equal(t, 7, lines[0].Quantity)
}

func TestSetQuantityUnknownLineNoop(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	store.AddOrIncrement(productA(), 2)
	lines := store.SetQuantity("missing", 9)

	require.Len(t, lines, 1)
	require.Equal(t, 2, lines[0].Quantity)
}

func TestRemoveLine(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	lines := store.AddOrIncrement(productA(), 1)

	require.Empty(t, store.RemoveLine(lines[0].LineID))
	// Removing again is a no-op.
	require.Empty(t, store.RemoveLine(lines[0].LineID))
}

func TestLoadCorruptBlobIsEmptyCart(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, StorageKey+".json"), []byte("][nonsense"), 0o644))

	store := NewStore(localstore.New(dir, logger.New(logger.Options{ServiceName: "test"})))
	require.Empty(t, store.Load(), "corrupt blob must read as an empty cart")
}

func TestLoadDropsNonPositiveQuantities(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blob := `[{"id":"1","product_id":"a","quantity":0},{"id":"2","product_id":"b","quantity":2}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, StorageKey+".json"), []byte(blob), 0o644))

	store := NewStore(localstore.New(dir, logger.New(logger.Options{ServiceName: "test"})))
	lines := store.Load()
	require.Len(t, lines, 1)
	require.Equal(t, cart.ID("b"), lines[0].ProductID)
}

func TestClearDistinctFromEmptySave(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	store.AddOrIncrement(productA(), 1)

	store.Save(nil)
	require.Empty(t, store.Load())

	store.AddOrIncrement(productA(), 1)
	store.Clear()
	require.Empty(t, store.Load())
}
