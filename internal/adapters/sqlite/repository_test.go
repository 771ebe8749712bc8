package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cryptoRsiBot/internal/domain"
	"cryptoRsiBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) (*Repository, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "trading-bot-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	repo, err := NewRepository(Config{
		DBPath: dbPath,
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}

	return repo, cleanup
}

func sampleTrade() *domain.Trade {
	sl := 49000.0
	tp := 52000.0
	return &domain.Trade{
		Symbol:     "BTC/USDT",
		Side:       domain.Buy,
		EntryPrice: 50000.0,
		Quantity:   0.0002,
		StopLoss:   &sl,
		TakeProfit: &tp,
		Status:     domain.StatusOpen,
		Indicators: map[string]float64{
			"rsi": 25.5,
			"atr": 120.0,
		},
	}
}

func TestRepository_CreateAndFindByID(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	trade := sampleTrade()
	require.NoError(t, repo.Create(ctx, trade))

	// Create assigns identity and timestamps
	assert.NotEmpty(t, trade.ID)
	assert.False(t, trade.CreatedAt.IsZero())
	assert.False(t, trade.UpdatedAt.IsZero())

	found, err := repo.FindByID(ctx, trade.ID)
	require.NoError(t, err)
	require.NotNil(t, found)

	assert.Equal(t, trade.ID, found.ID)
	assert.Equal(t, "BTC/USDT", found.Symbol)
	assert.Equal(t, domain.Buy, found.Side)
	assert.Equal(t, 50000.0, found.EntryPrice)
	assert.Equal(t, 0.0002, found.Quantity)
	assert.Equal(t, domain.StatusOpen, found.Status)
	assert.Nil(t, found.ExitPrice)
	require.NotNil(t, found.StopLoss)
	assert.Equal(t, 49000.0, *found.StopLoss)
	require.NotNil(t, found.TakeProfit)
	assert.Equal(t, 52000.0, *found.TakeProfit)
	assert.Equal(t, 25.5, found.Indicators["rsi"])
	assert.Equal(t, 120.0, found.Indicators["atr"])
}

func TestRepository_FindByID_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	found, err := repo.FindByID(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRepository_Update(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	trade := sampleTrade()
	require.NoError(t, repo.Create(ctx, trade))

	exit := 52000.0
	trade.ExitPrice = &exit
	trade.Status = domain.StatusClosed
	trade.Reason = domain.ReasonTakeProfitHit
	require.NoError(t, repo.Update(ctx, trade))

	found, err := repo.FindByID(ctx, trade.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, domain.StatusClosed, found.Status)
	assert.Equal(t, domain.ReasonTakeProfitHit, found.Reason)
	require.NotNil(t, found.ExitPrice)
	assert.Equal(t, 52000.0, *found.ExitPrice)
}

func TestRepository_Update_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	trade := sampleTrade()
	trade.ID = "ghost"
	err := repo.Update(context.Background(), trade)
	assert.True(t, errors.Is(err, ports.ErrTradeNotFound))
}

func TestRepository_FindAllOpen(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	first := sampleTrade()
	require.NoError(t, repo.Create(ctx, first))

	second := sampleTrade()
	second.Side = domain.Sell
	require.NoError(t, repo.Create(ctx, second))

	closed := sampleTrade()
	require.NoError(t, repo.Create(ctx, closed))
	exit := 51000.0
	closed.ExitPrice = &exit
	closed.Status = domain.StatusClosed
	closed.Reason = domain.ReasonManualClose
	require.NoError(t, repo.Update(ctx, closed))

	open, err := repo.FindAllOpen(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 2)
	for _, trade := range open {
		assert.Equal(t, domain.StatusOpen, trade.Status)
	}
}

func TestRepository_FindRecent(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	var last *domain.Trade
	for i := 0; i < 5; i++ {
		trade := sampleTrade()
		require.NoError(t, repo.Create(ctx, trade))
		last = trade
		time.Sleep(5 * time.Millisecond) // Distinct updated_at ordering
	}

	recent, err := repo.FindRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, last.ID, recent[0].ID)
}

func TestRepository_EmptyIndicators(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	trade := sampleTrade()
	trade.Indicators = nil
	trade.StopLoss = nil
	trade.TakeProfit = nil
	require.NoError(t, repo.Create(ctx, trade))

	found, err := repo.FindByID(ctx, trade.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Nil(t, found.Indicators)
	assert.Nil(t, found.StopLoss)
	assert.Nil(t, found.TakeProfit)
}
