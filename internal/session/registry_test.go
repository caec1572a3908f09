package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lighter-mcp/internal/apperr"
)

var records = []WalletRecord{
	{Address: "0xAbC0000000000000000000000000000000000001", ChainID: "evm:eip155:42161"},
	{Address: "0xdef0000000000000000000000000000000000002", ChainID: "evm:eip155:8453"},
}

func TestBindMatchesCaseInsensitively(t *testing.T) {
	r := NewRegistry(nil, nil)

	rec, err := r.Bind("s1", "0xabc0000000000000000000000000000000000001", records)
	require.NoError(t, err)
	assert.Equal(t, records[0].Address, rec.Address)

	addr, ok := r.Get("s1")
	require.True(t, ok)
	assert.Equal(t, records[0].Address, addr)
}

func TestBindIsIdempotentAndRebindOverwrites(t *testing.T) {
	r := NewRegistry(nil, nil)

	_, err := r.Bind("s1", records[0].Address, records)
	require.NoError(t, err)
	_, err = r.Bind("s1", records[0].Address, records)
	require.NoError(t, err)
	addr, _ := r.Get("s1")
	assert.Equal(t, records[0].Address, addr)

	_, err = r.Bind("s1", records[1].Address, records)
	require.NoError(t, err)
	addr, _ = r.Get("s1")
	assert.Equal(t, records[1].Address, addr)
}

func TestBindRejectsUnknownWallet(t *testing.T) {
	r := NewRegistry(nil, nil)

	_, err := r.Bind("s1", "0x9999999999999999999999999999999999999999", records)
	assert.True(t, apperr.Is(err, apperr.WalletRecordNotFound))

	_, ok := r.Get("s1")
	assert.False(t, ok)
}

func TestBindValidatesInput(t *testing.T) {
	r := NewRegistry(nil, nil)

	_, err := r.Bind("", records[0].Address, records)
	assert.True(t, apperr.Is(err, apperr.AuthenticationMissing))

	_, err = r.Bind("s1", "  ", records)
	assert.True(t, apperr.Is(err, apperr.InvalidParameter))
}

func TestRequireWithoutBinding(t *testing.T) {
	r := NewRegistry(nil, nil)
	_, err := r.Require("nobody")
	assert.True(t, apperr.Is(err, apperr.WalletNotSelected))
}

func TestGetFallsBackToStore(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save("s1", records[1].Address))

	r := NewRegistry(store, nil)
	addr, ok := r.Get("s1")
	require.True(t, ok)
	assert.Equal(t, records[1].Address, addr)
}

func TestConcurrentBinds(t *testing.T) {
	r := NewRegistry(nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session := fmt.Sprintf("s%d", i%5)
			_, err := r.Bind(session, records[i%2].Address, records)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 5; i++ {
		addr, ok := r.Get(fmt.Sprintf("s%d", i))
		require.True(t, ok)
		assert.Contains(t, []string{records[0].Address, records[1].Address}, addr)
	}
}

func TestKeyLockTableStaysBounded(t *testing.T) {
	r := NewRegistry(nil, nil)

	tests := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"short", "s1"},
		{"uuid", "7f9c2ba4-e88f-4a2b-9d5c-1b1c3c6a2e10"},
		{"long", fmt.Sprintf("%0256d", 7)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stripe := stripeFor(tt.id)
			assert.GreaterOrEqual(t, stripe, 0)
			assert.Less(t, stripe, lockStripes)
			assert.Same(t, r.keyLock(tt.id), r.keyLock(tt.id))
		})
	}

	for i := 0; i < 10000; i++ {
		_, err := r.Bind(fmt.Sprintf("churn-%d", i), records[i%2].Address, records)
		require.NoError(t, err)
	}
	assert.Equal(t, lockStripes, len(r.locks))
	addr, ok := r.Get("churn-9999")
	require.True(t, ok)
	assert.Equal(t, records[1].Address, addr)
}

func TestBadgerStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenBadgerStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save("s1", records[0].Address))
	require.NoError(t, s.Close())

	s, err = OpenBadgerStore(dir)
	require.NoError(t, err)
	defer s.Close()

	addr, ok, err := s.Load("s1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, records[0].Address, addr)

	_, ok, err = s.Load("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
