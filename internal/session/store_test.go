package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionsworth/internal/core"
)

func TestStore_CreateAndGet(t *testing.T) {
	st := NewStore(DefaultConfig(), nil)

	sess, err := st.Create()
	require.NoError(t, err)
	assert.Len(t, sess.ID(), 32)

	got, ok := st.Get(sess.ID())
	require.True(t, ok)
	assert.Same(t, sess, got)

	snap := got.Snapshot()
	assert.Equal(t, core.DefaultRates(), snap.Rates)
	assert.Len(t, snap.Grants, 1)
	assert.Equal(t, 0.0, snap.Total)
}

func TestStore_GetOrCreate(t *testing.T) {
	st := NewStore(DefaultConfig(), nil)

	first, created, err := st.GetOrCreate("")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := st.GetOrCreate(first.ID())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, first, again)

	_, created, err = st.GetOrCreate("unknown")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 2, st.Len())
}

func TestStore_UsesConfiguredRates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultRates = core.GlobalRates{MarketPrice: 10, IncomeTaxRate: 30, CapitalGainsTaxRate: 20}
	st := NewStore(cfg, nil)

	sess, err := st.Create()
	require.NoError(t, err)
	assert.Equal(t, cfg.DefaultRates, sess.Snapshot().Rates)
	assert.Equal(t, cfg.DefaultRates, st.DefaultRates())
}

func TestStore_SessionsAreIsolated(t *testing.T) {
	st := NewStore(DefaultConfig(), nil)
	a, _ := st.Create()
	b, _ := st.Create()

	_, err := a.SetGlobalRate(core.MarketPrice, 50)
	require.NoError(t, err)
	a.AddGrant()

	assert.Equal(t, 1.0, b.Snapshot().Rates.MarketPrice)
	assert.Len(t, b.Snapshot().Grants, 1)
	assert.Len(t, a.Snapshot().Grants, 2)
}

func TestSession_SetGrantFieldOutOfRange(t *testing.T) {
	st := NewStore(DefaultConfig(), nil)
	sess, _ := st.Create()
	before := sess.Snapshot()

	snap, err := sess.SetGrantField(5, core.NumShares, 10)
	assert.ErrorIs(t, err, core.ErrOutOfRange)
	assert.Equal(t, before, snap)
}

func TestSession_ConcurrentOperations(t *testing.T) {
	st := NewStore(DefaultConfig(), nil)
	sess, _ := st.Create()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.AddGrant()
			_, _ = sess.SetGlobalRate(core.MarketPrice, 2)
		}()
	}
	wg.Wait()

	snap := sess.Snapshot()
	require.Len(t, snap.Grants, 51)
	for _, g := range snap.Grants {
		assert.Equal(t, core.DefaultGrant(snap.Rates), g)
	}
}

func TestSession_Replace(t *testing.T) {
	st := NewStore(DefaultConfig(), nil)
	sess, _ := st.Create()

	p := core.NewEmptyPortfolio(core.GlobalRates{MarketPrice: 10, IncomeTaxRate: 24, CapitalGainsTaxRate: 15})
	p.AppendGrant(100, 1, 5)
	snap := sess.Replace(p)

	assert.Equal(t, 729.0, snap.Total)
	assert.Equal(t, snap, sess.Snapshot())
}
