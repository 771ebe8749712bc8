package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"

	"cryptoRsiBot/config"
	"cryptoRsiBot/internal/domain"
	"cryptoRsiBot/internal/ports"
	"cryptoRsiBot/internal/position"
)

// candleMultiplier oversizes the candle fetch relative to the longest
// indicator period so smoothed indicators have warm-up data.
const candleMultiplier = 2

// TradingService drives the polling loop for one symbol: fetch candles,
// compute indicators, decide, act, sleep. Iterations are strictly sequential
// and never overlap; errors abort the iteration and back off without killing
// the loop. It also exposes the manual operations (close, list) that form the
// inbound boundary of the core.
type TradingService struct {
	cfg      *config.Config
	logger   ports.Logger
	exchange ports.ExchangeClient
	trades   ports.TradeRepository
	signals  ports.SignalGenerator
	position *position.Manager

	running atomic.Bool
	mu      sync.Mutex // Serializes Start/Stop; stopCh/done are set before running flips true
	stopCh  chan struct{}
	done    chan struct{}
}

// NewTradingService creates a new application service instance.
func NewTradingService(
	cfg *config.Config,
	logger ports.Logger,
	exchange ports.ExchangeClient,
	trades ports.TradeRepository,
	signals ports.SignalGenerator,
	posManager *position.Manager,
) (*TradingService, error) {
	if cfg == nil || logger == nil || exchange == nil || trades == nil || signals == nil || posManager == nil {
		return nil, fmt.Errorf("missing required dependencies for TradingService")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("configuration PollInterval must be positive")
	}
	if cfg.ErrorBackoff <= 0 {
		return nil, fmt.Errorf("configuration ErrorBackoff must be positive")
	}

	return &TradingService{
		cfg:      cfg,
		logger:   logger,
		exchange: exchange,
		trades:   trades,
		signals:  signals,
		position: posManager,
	}, nil
}

// IsRunning reports whether the trading loop is active.
func (s *TradingService) IsRunning() bool {
	return s.running.Load()
}

// Start begins the trading loop. It recovers trades left open by a previous
// run, then launches the loop and returns. Calling Start while the loop is
// already running is a no-op. Start and Stop are serialized: a Stop issued
// while Start is still recovering blocks until Start finishes, then acts on
// the resulting state.
func (s *TradingService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		s.logger.Warn(ctx, "Trading loop is already running")
		return nil
	}

	s.logger.Info(ctx, "Starting trading loop", map[string]interface{}{
		"symbol":    s.cfg.Symbol,
		"timeframe": s.cfg.Timeframe,
		"interval":  s.cfg.PollInterval.String(),
	})

	// Time sync matters for signed API calls; failure here is a connectivity
	// problem the loop cannot work around.
	if err := s.exchange.SetServerTime(ctx); err != nil {
		return fmt.Errorf("failed to synchronize server time: %w", err)
	}

	// Trades left open by a previous run are closed at their entry price
	// before any new signal is acted on.
	if err := s.position.Recover(ctx); err != nil {
		return fmt.Errorf("startup recovery failed: %w", err)
	}

	// The channels must exist before running reads true, or a concurrent
	// Stop would close a nil channel.
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.running.Store(true)

	go s.loop(ctx, s.stopCh, s.done)
	return nil
}

// Stop requests the loop to terminate. The in-flight iteration is allowed to
// finish: only the sleep between iterations is interrupted, never an
// exchange call. Stop blocks until the loop has exited.
func (s *TradingService) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running.Load() {
		s.mu.Unlock()
		s.logger.Warn(ctx, "Trading loop is not running")
		return
	}
	s.running.Store(false)
	stopCh, done := s.stopCh, s.done
	s.mu.Unlock()

	s.logger.Info(ctx, "Stopping trading loop...")
	close(stopCh)
	<-done
	s.logger.Info(ctx, "Trading loop stopped")
}

func (s *TradingService) loop(ctx context.Context, stopCh, done chan struct{}) {
	defer close(done)

	b := &backoff.Backoff{
		Min:    s.cfg.ErrorBackoff,
		Max:    s.cfg.PollInterval,
		Factor: 2,
		Jitter: true,
	}

	for s.running.Load() {
		if ctx.Err() != nil {
			s.logger.Info(ctx, "Context canceled, exiting trading loop")
			s.running.Store(false)
			return
		}

		delay := s.cfg.PollInterval
		if err := s.tick(ctx); err != nil {
			delay = b.Duration()
			s.logger.Error(ctx, err, "Iteration failed, backing off", map[string]interface{}{
				"retryIn": delay.String(),
			})
		} else {
			b.Reset()
		}

		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Context canceled, exiting trading loop")
			s.running.Store(false)
			return
		case <-stopCh:
			return
		case <-time.After(delay):
		}
	}
}

// tick runs one iteration: fetch -> compute -> decide -> act. A returned
// error aborts the iteration; the caller backs off and retries next tick.
func (s *TradingService) tick(ctx context.Context) error {
	limit := s.signals.RequiredDataPoints() * candleMultiplier
	klines, err := s.exchange.GetKlines(ctx, s.cfg.Symbol, s.cfg.Timeframe, limit)
	if err != nil {
		return fmt.Errorf("failed to fetch candles: %w", err)
	}
	if len(klines) == 0 {
		return fmt.Errorf("exchange returned no candles for %s", s.cfg.Symbol)
	}

	price := klines[len(klines)-1].Close
	snapshot := s.signals.Analyze(ctx, klines)

	s.logger.Debug(ctx, "Tick", map[string]interface{}{
		"price":      price,
		"indicators": snapshot.Values(),
	})

	// Protective levels are checked before the strategy gets a say.
	if hit, reason := s.position.CheckProtectiveLevels(price); hit {
		if _, err := s.position.Close(ctx, price, reason); err != nil {
			return fmt.Errorf("failed to close position on protective level: %w", err)
		}
		return nil
	}

	signal, closeReason := s.signals.Evaluate(ctx, snapshot, s.position.Current())
	switch signal {
	case domain.SignalOpenBuy, domain.SignalOpenSell:
		side := domain.Buy
		if signal == domain.SignalOpenSell {
			side = domain.Sell
		}
		if _, err := s.position.Open(ctx, side, price, snapshot); err != nil {
			if errors.Is(err, ports.ErrInsufficientFunds) {
				// Not transient: skip the signal, next tick runs at the
				// normal interval.
				s.logger.Warn(ctx, "Signal skipped, insufficient balance", map[string]interface{}{
					"signal": signal.String(),
					"price":  price,
				})
				return nil
			}
			return fmt.Errorf("failed to open position: %w", err)
		}
	case domain.SignalClose:
		if _, err := s.position.Close(ctx, price, closeReason); err != nil {
			return fmt.Errorf("failed to close position: %w", err)
		}
	}

	return nil
}

// --- Manual operations (inbound boundary of the core) ---

// CloseTrade closes a trade by ID at the given price (manual override).
func (s *TradingService) CloseTrade(ctx context.Context, id string, price float64, reason string) (*domain.Trade, error) {
	if reason == "" {
		reason = domain.ReasonManualClose
	}
	return s.position.CloseByID(ctx, id, price, reason)
}

// OpenTrades lists all currently open trades.
func (s *TradingService) OpenTrades(ctx context.Context) ([]*domain.Trade, error) {
	return s.trades.FindAllOpen(ctx)
}

// RecentTrades lists the most recently updated trades, up to limit.
func (s *TradingService) RecentTrades(ctx context.Context, limit int) ([]*domain.Trade, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.trades.FindRecent(ctx, limit)
}
