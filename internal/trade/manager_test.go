package trade

import (
	"context"
	"testing"
	"time"

	"trade_engine/internal/models"
	"trade_engine/internal/runtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	opened    int
	closed    int
	perf      map[string]models.Performance
	openErr   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{perf: map[string]models.Performance{}}
}

func (f *fakeRepo) InsertOpen(_ context.Context, p *models.Position) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.opened++
	p.ID = int64(f.opened)
	return nil
}

func (f *fakeRepo) UpdateClose(_ context.Context, _ *models.Position) error {
	f.closed++
	return nil
}

func (f *fakeRepo) UpdatePerformance(_ context.Context, symbol string, perf models.Performance) error {
	f.perf[symbol] = perf
	return nil
}

func newState(t *testing.T) *runtime.SymbolState {
	t.Helper()
	return runtime.NewRegistry(100).Ensure("BTCUSDT")
}

func TestOpenPosition(t *testing.T) {
	repo := newFakeRepo()
	m := NewManager(100, 3, repo, nil)
	st := newState(t)

	pos, err := m.Open(context.Background(), st, "rsi_dip", 50, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.PositionOpen, pos.Status)
	assert.Equal(t, 2.0, pos.Quantity, "quantity = invested / entry price")
	assert.Equal(t, 50.0, pos.MaxPrice)
	assert.Equal(t, 1, repo.opened)
	assert.Same(t, pos, st.Position())
}

func TestOpenRejectsNonPositivePrice(t *testing.T) {
	repo := newFakeRepo()
	m := NewManager(100, 3, repo, nil)
	st := newState(t)

	for _, price := range []float64{0, -1} {
		_, err := m.Open(context.Background(), st, "rsi_dip", price, time.Now())
		assert.ErrorIs(t, err, ErrInvalidPrice)
	}
	assert.Zero(t, repo.opened)
	assert.Nil(t, st.Position())
}

func TestDuplicateBuyIsRejected(t *testing.T) {
	m := NewManager(100, 3, newFakeRepo(), nil)
	st := newState(t)
	now := time.Now()

	_, err := m.Open(context.Background(), st, "a", 50, now)
	require.NoError(t, err)

	_, err = m.Open(context.Background(), st, "a", 55, now)
	assert.ErrorIs(t, err, ErrPositionOpen)
	assert.Equal(t, 50.0, st.Position().EntryPrice, "rejected buy mutates nothing")
}

func TestTouchTracksMaxPrice(t *testing.T) {
	m := NewManager(100, 3, newFakeRepo(), nil)
	st := newState(t)

	_, err := m.Open(context.Background(), st, "a", 100, time.Now())
	require.NoError(t, err)

	m.Touch(st, 110)
	m.Touch(st, 105)
	pos := st.Position()
	assert.Equal(t, 105.0, pos.CurrentPrice)
	assert.Equal(t, 110.0, pos.MaxPrice, "max never decreases")
}

func TestClosePosition(t *testing.T) {
	repo := newFakeRepo()
	m := NewManager(100, 3, repo, nil)
	st := newState(t)
	entry := time.Now()

	_, err := m.Open(context.Background(), st, "a", 100, entry)
	require.NoError(t, err)

	pos, err := m.Close(context.Background(), st, 105, entry.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.PositionClosed, pos.Status)
	assert.InDelta(t, 5.0, pos.ResultPct, 1e-9)
	assert.InDelta(t, 30.0, pos.DurationMin, 1e-9)
	assert.Nil(t, st.Position())
	assert.Equal(t, 1, repo.perf["BTCUSDT"].Wins)

	// closing is terminal
	_, err = m.Close(context.Background(), st, 110, entry.Add(time.Hour))
	assert.ErrorIs(t, err, ErrPositionClosed)
}

func TestCloseWithoutPosition(t *testing.T) {
	m := NewManager(100, 3, newFakeRepo(), nil)
	_, err := m.Close(context.Background(), newState(t), 100, time.Now())
	assert.ErrorIs(t, err, ErrPositionClosed)
}

func TestLossStreakSuspendsSymbol(t *testing.T) {
	m := NewManager(100, 2, newFakeRepo(), nil)
	st := newState(t)

	var suspended []string
	m.OnSuspend(func(symbol string) { suspended = append(suspended, symbol) })

	now := time.Now()
	for i := 0; i < 2; i++ {
		_, err := m.Open(context.Background(), st, "a", 100, now)
		require.NoError(t, err)
		_, err = m.Close(context.Background(), st, 99, now.Add(time.Minute))
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"BTCUSDT"}, suspended)
	assert.True(t, st.Suspended())
}

func TestOpenPersistFailureLeavesNoPosition(t *testing.T) {
	repo := newFakeRepo()
	repo.openErr = assert.AnError
	m := NewManager(100, 3, repo, nil)
	st := newState(t)

	_, err := m.Open(context.Background(), st, "a", 100, time.Now())
	assert.Error(t, err)
	assert.Nil(t, st.Position())
}
