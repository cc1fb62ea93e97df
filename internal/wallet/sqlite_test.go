package wallet

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ggonzalez94/walletd/internal/vault"
)

func testSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "wallets.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(addr string) Record {
	return Record{
		Address: addr,
		Key: vault.Sealed{
			Ciphertext: bytes.Repeat([]byte{0xaa}, 64),
			Nonce:      bytes.Repeat([]byte{0xbb}, 16),
			Tag:        bytes.Repeat([]byte{0xcc}, 16),
		},
		CreatedAt: time.Unix(1748774400, 0).UTC(),
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	store := testSQLite(t)
	ctx := context.Background()
	rec := testRecord("0x1111111111111111111111111111111111111111")

	winner, created, err := store.PutIfAbsent(ctx, "session-1", rec)
	if err != nil {
		t.Fatalf("PutIfAbsent: %v", err)
	}
	if !created {
		t.Fatal("first insert reported created=false")
	}
	if winner.Address != rec.Address {
		t.Errorf("winner address = %q, want %q", winner.Address, rec.Address)
	}

	got, ok, err := store.Get(ctx, "session-1")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if got.Address != rec.Address {
		t.Errorf("address = %q, want %q", got.Address, rec.Address)
	}
	if !bytes.Equal(got.Key.Ciphertext, rec.Key.Ciphertext) ||
		!bytes.Equal(got.Key.Nonce, rec.Key.Nonce) ||
		!bytes.Equal(got.Key.Tag, rec.Key.Tag) {
		t.Error("sealed key did not survive the round trip")
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("createdAt = %v, want %v", got.CreatedAt, rec.CreatedAt)
	}
}

func TestSQLiteGetMissing(t *testing.T) {
	store := testSQLite(t)
	_, ok, err := store.Get(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("Get reported a record for an unknown session")
	}
}

func TestSQLitePutIfAbsentKeepsFirst(t *testing.T) {
	store := testSQLite(t)
	ctx := context.Background()

	first := testRecord("0x1111111111111111111111111111111111111111")
	second := testRecord("0x2222222222222222222222222222222222222222")

	if _, created, err := store.PutIfAbsent(ctx, "session-1", first); err != nil || !created {
		t.Fatalf("first insert = %v, %v", created, err)
	}
	winner, created, err := store.PutIfAbsent(ctx, "session-1", second)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if created {
		t.Error("second insert reported created=true")
	}
	if winner.Address != first.Address {
		t.Errorf("winner = %q, want first record %q", winner.Address, first.Address)
	}
}

func TestSQLitePutIfAbsentConcurrent(t *testing.T) {
	store := testSQLite(t)
	ctx := context.Background()

	const workers = 4
	type result struct {
		addr    string
		created bool
	}
	results := make(chan result, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		rec := testRecord("0x" + string(rune('1'+i)) + "111111111111111111111111111111111111111")
		go func(rec Record) {
			defer wg.Done()
			winner, created, err := store.PutIfAbsent(ctx, "shared", rec)
			if err != nil {
				t.Errorf("PutIfAbsent: %v", err)
				return
			}
			results <- result{addr: winner.Address, created: created}
		}(rec)
	}
	wg.Wait()
	close(results)

	var insertions int
	addrs := make(map[string]bool)
	for r := range results {
		addrs[r.addr] = true
		if r.created {
			insertions++
		}
	}
	if insertions != 1 {
		t.Errorf("exactly one insert should win, got %d", insertions)
	}
	if len(addrs) != 1 {
		t.Errorf("all callers should see one winner, got %v", addrs)
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wallets.db")
	ctx := context.Background()
	rec := testRecord("0x1111111111111111111111111111111111111111")

	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if _, _, err := store.PutIfAbsent(ctx, "session-1", rec); err != nil {
		t.Fatalf("PutIfAbsent: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, ok, err := reopened.Get(ctx, "session-1")
	if err != nil || !ok {
		t.Fatalf("Get after reopen = %v, %v", ok, err)
	}
	if got.Address != rec.Address {
		t.Errorf("address after reopen = %q, want %q", got.Address, rec.Address)
	}
}
