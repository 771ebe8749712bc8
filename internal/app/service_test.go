package app

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoRsiBot/config"
	"cryptoRsiBot/internal/domain"
	"cryptoRsiBot/internal/ports"
	"cryptoRsiBot/internal/position"
	"cryptoRsiBot/internal/risk"
)

// Mock implementations

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type mockExchange struct {
	serverTimeErr error
	serverTimeCh  chan struct{} // When set, SetServerTime blocks until it is closed
	klines        []*domain.Kline
	klinesErr     error
	balance       float64
	orderResp     *ports.OrderResponse
	orderErr      error
	orderCount    int
}

func (m *mockExchange) Ping(ctx context.Context) error { return nil }
func (m *mockExchange) SetServerTime(ctx context.Context) error {
	if m.serverTimeCh != nil {
		<-m.serverTimeCh
	}
	return m.serverTimeErr
}
func (m *mockExchange) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error) {
	return m.klines, m.klinesErr
}
func (m *mockExchange) GetAvailableBalance(ctx context.Context, asset string) (float64, error) {
	return m.balance, nil
}
func (m *mockExchange) PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity string) (*ports.OrderResponse, error) {
	m.orderCount++
	if m.orderErr != nil {
		return nil, m.orderErr
	}
	if m.orderResp != nil {
		return m.orderResp, nil
	}
	return &ports.OrderResponse{OrderID: int64(m.orderCount), AvgPrice: 0, Status: "FILLED", Timestamp: time.Now()}, nil
}

type mockRepo struct {
	trades map[string]*domain.Trade
	nextID int
}

func newMockRepo() *mockRepo { return &mockRepo{trades: make(map[string]*domain.Trade)} }

func (m *mockRepo) Create(ctx context.Context, trade *domain.Trade) error {
	m.nextID++
	trade.ID = "trade-" + strconv.Itoa(m.nextID)
	trade.CreatedAt = time.Now().UTC()
	trade.UpdatedAt = trade.CreatedAt
	copied := *trade
	m.trades[trade.ID] = &copied
	return nil
}

func (m *mockRepo) Update(ctx context.Context, trade *domain.Trade) error {
	if _, ok := m.trades[trade.ID]; !ok {
		return ports.ErrTradeNotFound
	}
	copied := *trade
	m.trades[trade.ID] = &copied
	return nil
}

func (m *mockRepo) FindByID(ctx context.Context, id string) (*domain.Trade, error) {
	trade, ok := m.trades[id]
	if !ok {
		return nil, nil
	}
	copied := *trade
	return &copied, nil
}

func (m *mockRepo) FindAllOpen(ctx context.Context) ([]*domain.Trade, error) {
	var open []*domain.Trade
	for _, trade := range m.trades {
		if trade.IsOpen() {
			copied := *trade
			open = append(open, &copied)
		}
	}
	return open, nil
}

func (m *mockRepo) FindRecent(ctx context.Context, limit int) ([]*domain.Trade, error) {
	var all []*domain.Trade
	for _, trade := range m.trades {
		copied := *trade
		all = append(all, &copied)
		if len(all) >= limit {
			break
		}
	}
	return all, nil
}

type mockNotifier struct{}

func (m *mockNotifier) Send(ctx context.Context, message string) bool { return true }

type mockSignals struct {
	required int
	snapshot *domain.IndicatorSnapshot
	signal   domain.Signal
	reason   string
}

func (m *mockSignals) RequiredDataPoints() int {
	if m.required > 0 {
		return m.required
	}
	return 10
}

func (m *mockSignals) Analyze(ctx context.Context, klines []*domain.Kline) *domain.IndicatorSnapshot {
	if m.snapshot != nil {
		return m.snapshot
	}
	return &domain.IndicatorSnapshot{}
}

func (m *mockSignals) Evaluate(ctx context.Context, snapshot *domain.IndicatorSnapshot, open *domain.Trade) (domain.Signal, string) {
	return m.signal, m.reason
}

// Test helpers

func testConfig() *config.Config {
	return &config.Config{
		Symbol:       "BTC/USDT",
		Timeframe:    "1h",
		PollInterval: time.Minute,
		ErrorBackoff: 5 * time.Second,
	}
}

func testKlines(closePrice float64) []*domain.Kline {
	now := time.Now()
	klines := make([]*domain.Kline, 20)
	for i := range klines {
		klines[i] = &domain.Kline{
			OpenTime:  now.Add(time.Duration(i-20) * time.Hour),
			CloseTime: now.Add(time.Duration(i-19) * time.Hour),
			Open:      closePrice,
			High:      closePrice + 10,
			Low:       closePrice - 10,
			Close:     closePrice,
			Volume:    1,
		}
	}
	return klines
}

func newTestService(t *testing.T, exchange *mockExchange, repo *mockRepo, signals *mockSignals) (*TradingService, *position.Manager) {
	t.Helper()
	sizer, err := risk.NewSizer(risk.Config{
		RiskPerTrade:    1.0,
		ATRMultiplier:   2.0,
		TakeProfitRatio: 2.0,
		UseATRStopLoss:  true,
	})
	require.NoError(t, err)

	mgr, err := position.NewManager(position.Config{
		Symbol:   "BTC/USDT",
		Logger:   &mockLogger{},
		Exchange: exchange,
		Trades:   repo,
		Notifier: &mockNotifier{},
		Sizer:    sizer,
	})
	require.NoError(t, err)

	svc, err := NewTradingService(testConfig(), &mockLogger{}, exchange, repo, signals, mgr)
	require.NoError(t, err)
	return svc, mgr
}

func TestNewTradingService(t *testing.T) {
	exchange := &mockExchange{}
	repo := newMockRepo()
	signals := &mockSignals{}

	sizer, err := risk.NewSizer(risk.Config{RiskPerTrade: 1, ATRMultiplier: 2, TakeProfitRatio: 2})
	require.NoError(t, err)
	mgr, err := position.NewManager(position.Config{
		Symbol:   "BTC/USDT",
		Logger:   &mockLogger{},
		Exchange: exchange,
		Trades:   repo,
		Notifier: &mockNotifier{},
		Sizer:    sizer,
	})
	require.NoError(t, err)

	t.Run("valid dependencies", func(t *testing.T) {
		svc, err := NewTradingService(testConfig(), &mockLogger{}, exchange, repo, signals, mgr)
		require.NoError(t, err)
		assert.NotNil(t, svc)
		assert.False(t, svc.IsRunning())
	})

	t.Run("missing dependency", func(t *testing.T) {
		_, err := NewTradingService(testConfig(), nil, exchange, repo, signals, mgr)
		assert.Error(t, err)
	})

	t.Run("invalid poll interval", func(t *testing.T) {
		cfg := testConfig()
		cfg.PollInterval = 0
		_, err := NewTradingService(cfg, &mockLogger{}, exchange, repo, signals, mgr)
		assert.Error(t, err)
	})
}

func TestTradingService_Tick(t *testing.T) {
	ctx := context.Background()

	t.Run("open buy signal opens a position", func(t *testing.T) {
		exchange := &mockExchange{klines: testKlines(50000), balance: 1000}
		repo := newMockRepo()
		signals := &mockSignals{signal: domain.SignalOpenBuy}
		svc, mgr := newTestService(t, exchange, repo, signals)

		require.NoError(t, svc.tick(ctx))
		assert.True(t, mgr.HasOpen())
		assert.Equal(t, 1, exchange.orderCount)
		assert.Equal(t, domain.Buy, mgr.Current().Side)
	})

	t.Run("insufficient funds skips the signal without error", func(t *testing.T) {
		exchange := &mockExchange{klines: testKlines(50000), balance: 0}
		repo := newMockRepo()
		signals := &mockSignals{signal: domain.SignalOpenBuy}
		svc, mgr := newTestService(t, exchange, repo, signals)

		require.NoError(t, svc.tick(ctx))
		assert.False(t, mgr.HasOpen())
		assert.Equal(t, 0, exchange.orderCount)
	})

	t.Run("close signal closes the position", func(t *testing.T) {
		exchange := &mockExchange{klines: testKlines(50000), balance: 1000}
		repo := newMockRepo()
		signals := &mockSignals{signal: domain.SignalOpenBuy}
		svc, mgr := newTestService(t, exchange, repo, signals)

		require.NoError(t, svc.tick(ctx))
		require.True(t, mgr.HasOpen())
		tradeID := mgr.Current().ID

		signals.signal = domain.SignalClose
		signals.reason = "RSI 75.00 reached overbought 70.00"
		require.NoError(t, svc.tick(ctx))
		assert.False(t, mgr.HasOpen())

		stored, err := repo.FindByID(ctx, tradeID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusClosed, stored.Status)
		assert.Equal(t, signals.reason, stored.Reason)
	})

	t.Run("protective breach closes before the strategy is consulted", func(t *testing.T) {
		atr := 100.0
		exchange := &mockExchange{klines: testKlines(50000), balance: 1000}
		repo := newMockRepo()
		signals := &mockSignals{signal: domain.SignalOpenBuy, snapshot: &domain.IndicatorSnapshot{ATR: &atr}}
		svc, mgr := newTestService(t, exchange, repo, signals)

		// AvgPrice fallback pins the entry to the candle close at 50000,
		// so the stop sits at 49800.
		require.NoError(t, svc.tick(ctx))
		require.True(t, mgr.HasOpen())
		tradeID := mgr.Current().ID

		// Strategy would open again, but the breach takes priority
		exchange.klines = testKlines(49700)
		require.NoError(t, svc.tick(ctx))
		assert.False(t, mgr.HasOpen())

		stored, err := repo.FindByID(ctx, tradeID)
		require.NoError(t, err)
		assert.Equal(t, domain.ReasonStopLossHit, stored.Reason)
	})

	t.Run("kline fetch failure aborts the iteration", func(t *testing.T) {
		exchange := &mockExchange{klinesErr: errors.New("network down")}
		svc, _ := newTestService(t, exchange, newMockRepo(), &mockSignals{})

		assert.Error(t, svc.tick(ctx))
	})

	t.Run("empty kline response aborts the iteration", func(t *testing.T) {
		exchange := &mockExchange{klines: nil}
		svc, _ := newTestService(t, exchange, newMockRepo(), &mockSignals{})

		assert.Error(t, svc.tick(ctx))
	})

	t.Run("no signal leaves state untouched", func(t *testing.T) {
		exchange := &mockExchange{klines: testKlines(50000), balance: 1000}
		svc, mgr := newTestService(t, exchange, newMockRepo(), &mockSignals{signal: domain.SignalNone})

		require.NoError(t, svc.tick(ctx))
		assert.False(t, mgr.HasOpen())
		assert.Equal(t, 0, exchange.orderCount)
	})
}

func TestTradingService_StartStop(t *testing.T) {
	ctx := context.Background()

	t.Run("start and stop lifecycle", func(t *testing.T) {
		exchange := &mockExchange{klines: testKlines(50000), balance: 1000}
		svc, _ := newTestService(t, exchange, newMockRepo(), &mockSignals{})

		require.NoError(t, svc.Start(ctx))
		assert.True(t, svc.IsRunning())

		// Second start is a no-op
		require.NoError(t, svc.Start(ctx))

		svc.Stop(ctx)
		assert.False(t, svc.IsRunning())

		// Stopping again is a no-op
		svc.Stop(ctx)
	})

	t.Run("stop during a slow start does not panic", func(t *testing.T) {
		exchange := &mockExchange{klines: testKlines(50000), balance: 1000, serverTimeCh: make(chan struct{})}
		svc, _ := newTestService(t, exchange, newMockRepo(), &mockSignals{})

		startDone := make(chan error, 1)
		go func() { startDone <- svc.Start(ctx) }()

		stopDone := make(chan struct{})
		go func() {
			svc.Stop(ctx)
			close(stopDone)
		}()

		// Let both calls land before releasing the blocked time sync
		time.Sleep(20 * time.Millisecond)
		close(exchange.serverTimeCh)

		require.NoError(t, <-startDone)
		select {
		case <-stopDone:
		case <-time.After(time.Second):
			t.Fatal("Stop did not return")
		}

		// Depending on lock order, Stop either no-opped before the loop
		// launched or stopped it; either way a final Stop leaves the
		// service idle.
		if svc.IsRunning() {
			svc.Stop(ctx)
		}
		assert.False(t, svc.IsRunning())
	})

	t.Run("start fails when time sync fails", func(t *testing.T) {
		exchange := &mockExchange{serverTimeErr: errors.New("clock drift")}
		svc, _ := newTestService(t, exchange, newMockRepo(), &mockSignals{})

		assert.Error(t, svc.Start(ctx))
		assert.False(t, svc.IsRunning())
	})

	t.Run("start recovers leftover trades", func(t *testing.T) {
		exchange := &mockExchange{klines: testKlines(50000), balance: 1000}
		repo := newMockRepo()
		leftover := &domain.Trade{Symbol: "BTC/USDT", Side: domain.Buy, EntryPrice: 48000, Quantity: 0.01, Status: domain.StatusOpen}
		require.NoError(t, repo.Create(context.Background(), leftover))

		svc, _ := newTestService(t, exchange, repo, &mockSignals{})
		require.NoError(t, svc.Start(ctx))
		defer svc.Stop(ctx)

		stored, err := repo.FindByID(ctx, leftover.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusClosed, stored.Status)
		assert.Equal(t, domain.ReasonRestartRecovery, stored.Reason)
	})
}

func TestTradingService_ManualOperations(t *testing.T) {
	ctx := context.Background()

	t.Run("close trade defaults the reason", func(t *testing.T) {
		exchange := &mockExchange{balance: 1000}
		repo := newMockRepo()
		svc, _ := newTestService(t, exchange, repo, &mockSignals{})

		trade := &domain.Trade{Symbol: "BTC/USDT", Side: domain.Buy, EntryPrice: 50000, Quantity: 0.01, Status: domain.StatusOpen}
		require.NoError(t, repo.Create(ctx, trade))

		closed, err := svc.CloseTrade(ctx, trade.ID, 51000, "")
		require.NoError(t, err)
		assert.Equal(t, domain.ReasonManualClose, closed.Reason)
	})

	t.Run("unknown trade", func(t *testing.T) {
		exchange := &mockExchange{balance: 1000}
		svc, _ := newTestService(t, exchange, newMockRepo(), &mockSignals{})

		_, err := svc.CloseTrade(ctx, "missing", 51000, "")
		assert.True(t, errors.Is(err, ports.ErrTradeNotFound))
	})

	t.Run("open and recent listings", func(t *testing.T) {
		exchange := &mockExchange{balance: 1000}
		repo := newMockRepo()
		svc, _ := newTestService(t, exchange, repo, &mockSignals{})

		open := &domain.Trade{Symbol: "BTC/USDT", Side: domain.Buy, EntryPrice: 50000, Quantity: 0.01, Status: domain.StatusOpen}
		require.NoError(t, repo.Create(ctx, open))

		trades, err := svc.OpenTrades(ctx)
		require.NoError(t, err)
		assert.Len(t, trades, 1)

		recent, err := svc.RecentTrades(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, recent, 1)
	})
}
