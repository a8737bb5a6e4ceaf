// Package redis publishes committed ledger transactions to a Redis stream so
// downstream consumers can follow the log without polling the ledger.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/R3E-Network/token_ledger/internal/app/domain/ledger"
	"github.com/R3E-Network/token_ledger/internal/app/storage"
	"github.com/R3E-Network/token_ledger/internal/app/system"
	"github.com/R3E-Network/token_ledger/pkg/logger"
	goredis "github.com/go-redis/redis/v8"
)

// ErrQueueFull is returned by Publish when the buffer cannot take the batch.
var ErrQueueFull = errors.New("transaction stream queue is full")

// StreamClient is the subset of the go-redis client used by StreamSink.
type StreamClient interface {
	XAdd(ctx context.Context, a *goredis.XAddArgs) *goredis.StringCmd
}

var (
	_ storage.TransactionSink = (*StreamSink)(nil)
	_ system.Service          = (*StreamSink)(nil)
)

// StreamSink buffers transactions and appends them to a capped stream from a
// background worker. Publish never blocks the ledger.
type StreamSink struct {
	client StreamClient
	stream string
	maxLen int64
	log    *logger.Logger

	queue chan []ledger.Transaction

	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	running bool

	published atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// NewStreamSink creates a sink writing to stream. maxLen caps the stream
// approximately; zero leaves it unbounded.
func NewStreamSink(client StreamClient, stream string, maxLen int64, buffer int, log *logger.Logger) *StreamSink {
	if log == nil {
		log = logger.NewDefault("ledger-stream")
	}
	if stream == "" {
		stream = "ledger:transactions"
	}
	if buffer <= 0 {
		buffer = 1024
	}
	return &StreamSink{
		client: client,
		stream: stream,
		maxLen: maxLen,
		log:    log,
		queue:  make(chan []ledger.Transaction, buffer),
	}
}

// NewClient returns a go-redis client for addr.
func NewClient(addr, password string, db int) *goredis.Client {
	return goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
}

func (s *StreamSink) Name() string { return "ledger-transaction-stream" }

// Publish enqueues txs for delivery.
func (s *StreamSink) Publish(_ context.Context, txs []ledger.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	batch := append([]ledger.Transaction(nil), txs...)
	select {
	case s.queue <- batch:
		return nil
	default:
		s.dropped.Add(uint64(len(txs)))
		return ErrQueueFull
	}
}

func (s *StreamSink) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	stop := make(chan struct{})
	s.stop = stop
	s.running = true
	s.mu.Unlock()

	// Cancelling ctx must not abort a batch already taken off the queue;
	// each append is still bounded by its own timeout.
	sendCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-stop:
				return
			case batch := <-s.queue:
				s.deliver(sendCtx, batch)
			}
		}
	}()

	s.log.WithField("stream", s.stream).Info("transaction stream started")
	return nil
}

// Stop lets the worker finish its in-flight batch, then flushes whatever is
// still queued using ctx.
func (s *StreamSink) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stop := s.stop
	s.running = false
	s.stop = nil
	s.mu.Unlock()

	close(stop)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		select {
		case batch := <-s.queue:
			s.deliver(ctx, batch)
		default:
			s.log.Info("transaction stream stopped")
			return nil
		}
	}
}

// Stats reports delivered, dropped and failed transaction counts.
func (s *StreamSink) Stats() (published, dropped, failed uint64) {
	return s.published.Load(), s.dropped.Load(), s.failed.Load()
}

func (s *StreamSink) deliver(ctx context.Context, batch []ledger.Transaction) {
	for _, tx := range batch {
		values, err := streamValues(tx)
		if err != nil {
			s.failed.Add(1)
			s.log.WithError(err).WithField("index", tx.Index).Warn("encode transaction for stream failed")
			continue
		}
		sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		args := &goredis.XAddArgs{Stream: s.stream, Values: values}
		if s.maxLen > 0 {
			args.MaxLen = s.maxLen
			args.Approx = true
		}
		err = s.client.XAdd(sendCtx, args).Err()
		cancel()
		if err != nil {
			s.failed.Add(1)
			s.log.WithError(err).WithField("index", tx.Index).Warn("stream append failed")
			continue
		}
		s.published.Add(1)
	}
}

func streamValues(tx ledger.Transaction) (map[string]interface{}, error) {
	if tx.Operation == nil {
		return nil, fmt.Errorf("transaction %d has no operation", tx.Index)
	}
	payload, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"index":     strconv.FormatUint(tx.Index, 10),
		"kind":      string(tx.Operation.Kind()),
		"timestamp": tx.Timestamp.UTC().Format(time.RFC3339Nano),
		"payload":   string(payload),
	}, nil
}
