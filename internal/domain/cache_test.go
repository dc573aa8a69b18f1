// internal/domain/cache_test.go
package domain

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"
)

func TestCacheResolve_SingleLoadWithinTTL(t *testing.T) {
	db, mock := newMockDB(t)

	// One SELECT serves both calls; the second must come from the map.
	mock.ExpectQuery(`FROM custom_domains WHERE domain = \? AND is_verified = 1`).
		WithArgs("shop.example.com").
		WillReturnRows(eligibleRow("shop.example.com", 7))

	c := NewCache(db, time.Minute, 16)
	defer c.Close()

	for i := 0; i < 2; i++ {
		rec, err := c.Resolve(context.Background(), "shop.example.com")
		if err != nil {
			t.Fatalf("Resolve #%d: %v", i+1, err)
		}
		if rec.StoreID != 7 {
			t.Fatalf("Resolve #%d: store_id = %d, want 7", i+1, rec.StoreID)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCacheResolve_StaleEntryDroppedOnRevocation(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`FROM custom_domains WHERE domain = \?`).
		WithArgs("shop.example.com").
		WillReturnRows(eligibleRow("shop.example.com", 7))
	// Second load after the TTL: the registry no longer returns the row.
	mock.ExpectQuery(`FROM custom_domains WHERE domain = \?`).
		WithArgs("shop.example.com").
		WillReturnError(sql.ErrNoRows)

	c := NewCache(db, time.Nanosecond, 16)
	defer c.Close()

	if _, err := c.Resolve(context.Background(), "shop.example.com"); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	time.Sleep(time.Millisecond) // let the entry age past the TTL

	if _, err := c.Resolve(context.Background(), "shop.example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale Resolve err = %v, want ErrNotFound", err)
	}
	// The stale entry must be gone, not resurrected on the next lookup.
	if _, ok := c.m.Load("shop.example.com"); ok {
		t.Error("revoked domain still cached")
	}
}
