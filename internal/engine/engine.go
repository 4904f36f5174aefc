package engine

import (
	"context"
	"errors"

	. "matcher/internal/common"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const defaultQueueSize = 100

var ErrEngineStopped = errors.New("engine stopped")

// Reporter receives execution reports. Failures are logged and never undo a match.
type Reporter interface {
	ReportTrade(trade Trade) error
	ReportError(order Order, err error) error
}

// Report is the outcome of one processed order.
type Report struct {
	ID     string  // Execution report uuid
	Order  Order   // Incoming order, Quantity holds what was left unfilled
	Trades []Trade // Fills, oldest first
	Rested bool    // Whether a remainder now rests in the book
}

type submission struct {
	order Order
	reply chan result
}

type result struct {
	report Report
	err    error
}

// Engine is the single writer of an OrderBook. One goroutine owns the book
// and applies submissions in arrival order; reads go straight to the book.
type Engine struct {
	book     *OrderBook
	reporter Reporter
	logger   zerolog.Logger
	queue    chan submission
	t        *tomb.Tomb
}

type Option func(*Engine)

func WithQueueSize(n int) Option {
	return func(engine *Engine) {
		if n > 0 {
			engine.queue = make(chan submission, n)
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(engine *Engine) {
		engine.logger = logger
	}
}

func NewEngine(book *OrderBook, opts ...Option) *Engine {
	engine := &Engine{
		book:   book,
		logger: log.Logger,
		queue:  make(chan submission, defaultQueueSize),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

func (engine *Engine) SetReporter(reporter Reporter) {
	engine.reporter = reporter
}

// Book exposes the owned book for read-only queries.
func (engine *Engine) Book() *OrderBook {
	return engine.book
}

// Start launches the owning goroutine. It stops when ctx is done or Stop is called.
func (engine *Engine) Start(ctx context.Context) {
	engine.t, _ = tomb.WithContext(ctx)
	engine.t.Go(engine.run)
	engine.logger.Info().Msg("matching engine running")
}

// Stop shuts the owning goroutine down and waits for it.
func (engine *Engine) Stop() error {
	if engine.t == nil {
		return nil
	}
	engine.t.Kill(nil)
	err := engine.t.Wait()
	engine.logger.Info().Msg("matching engine stopped")
	if errors.Is(err, context.Canceled) {
		// The parent context ending is a normal shutdown.
		return nil
	}
	return err
}

// Submit hands the order to the owning goroutine and waits for its report.
// The book only changes when Submit returns a nil error. Once handed
// off, ctx no longer applies; an engine stopping first replies ErrEngineStopped
// without touching the book.
func (engine *Engine) Submit(ctx context.Context, order Order) (Report, error) {
	if engine.t == nil {
		return Report{}, ErrEngineStopped
	}
	// Checked up front: select picks at random among ready cases.
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	if !engine.t.Alive() {
		return Report{}, ErrEngineStopped
	}

	sub := submission{order: order, reply: make(chan result, 1)}
	select {
	case <-ctx.Done():
		return Report{}, ctx.Err()
	case <-engine.t.Dying():
		return Report{}, ErrEngineStopped
	case engine.queue <- sub:
	}

	select {
	case res := <-sub.reply:
		return res.report, res.err
	case <-engine.t.Dead():
		// A reply may have landed just before the loop exited.
		select {
		case res := <-sub.reply:
			return res.report, res.err
		default:
			return Report{}, ErrEngineStopped
		}
	}
}

func (engine *Engine) run() error {
	for {
		select {
		case <-engine.t.Dying():
			engine.drain()
			return nil
		case sub := <-engine.queue:
			sub.reply <- engine.process(sub.order)
		}
	}
}

// drain rejects whatever was queued when the engine started dying.
func (engine *Engine) drain() {
	for {
		select {
		case sub := <-engine.queue:
			sub.reply <- result{err: ErrEngineStopped}
		default:
			return
		}
	}
}

func (engine *Engine) process(order Order) result {
	trades, err := engine.book.Process(order)
	if err != nil {
		engine.logger.Warn().Err(err).Int64("id", order.ID).Msg("order rejected")
		if engine.reporter != nil {
			if rerr := engine.reporter.ReportError(order, err); rerr != nil {
				engine.logger.Error().Err(rerr).Int64("id", order.ID).Msg("unable to report rejection")
			}
		}
		return result{err: err}
	}

	report := Report{
		ID:     uuid.NewString(),
		Order:  order,
		Trades: trades,
	}
	report.Order.TotalQuantity = order.Quantity
	report.Order.Quantity = order.Quantity - tradedQuantity(trades)
	report.Rested = !report.Order.Filled()

	engine.logger.Info().
		Str("report", report.ID).
		Int64("id", order.ID).
		Stringer("side", order.Side).
		Int("trades", len(trades)).
		Int64("unfilled", report.Order.Quantity).
		Msg("order processed")

	if engine.reporter != nil {
		for _, trade := range trades {
			if err := engine.reporter.ReportTrade(trade); err != nil {
				engine.logger.Error().Err(err).Str("report", report.ID).Msg("unable to report trade")
			}
		}
	}
	return result{report: report}
}

func tradedQuantity(trades []Trade) int64 {
	var total int64
	for _, trade := range trades {
		total += trade.Quantity
	}
	return total
}
