package runner

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/yourorg/textbatch/internal/cache"
	"github.com/yourorg/textbatch/internal/parser"
	"github.com/yourorg/textbatch/pkg/types"
)

// Client is a remote backend the runner can drive: render a row into a
// request payload, then invoke it. Both the chat and the cleaning clients
// satisfy it.
type Client interface {
	Render(row types.Row) string
	System() string
	Invoke(ctx context.Context, payload string) (string, error)
}

var sleepFn = sleepCtx

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Invoker executes single rows against a client with a concurrency cap,
// retries, and a response cache. It never returns an error: every outcome,
// including panics and exhausted retries, is encoded in the records.
type Invoker struct {
	client Client
	cache  *cache.Cache // nil disables caching
	sem    chan struct{}
	fields []string

	timeout  time.Duration
	attempts int
	delay    time.Duration

	apiCalls  atomic.Int64
	cacheHits atomic.Int64
}

// NewInvoker caps in-flight remote calls at concurrency. Cache may be nil.
func NewInvoker(client Client, c *cache.Cache, fields []string, concurrency, attempts int, timeout, delay time.Duration) *Invoker {
	if concurrency < 1 {
		concurrency = 1
	}
	if attempts < 1 {
		attempts = 1
	}
	return &Invoker{
		client:   client,
		cache:    c,
		sem:      make(chan struct{}, concurrency),
		fields:   fields,
		timeout:  timeout,
		attempts: attempts,
		delay:    delay,
	}
}

// Counters reports remote calls made and cache hits served so far.
func (iv *Invoker) Counters() (apiCalls, cacheHits int64) {
	return iv.apiCalls.Load(), iv.cacheHits.Load()
}

// Invoke processes one row end to end and returns its checkpoint records.
// A cached response is served without taking a concurrency slot.
func (iv *Invoker) Invoke(ctx context.Context, row types.Row) []types.Record {
	payload := iv.client.Render(row)
	fp := cache.Fingerprint(iv.client.System(), payload)

	if iv.cache != nil {
		if cached, ok := iv.cache.Lookup(fp); ok {
			iv.cacheHits.Add(1)
			return iv.records(row, cached, true)
		}
	}

	select {
	case iv.sem <- struct{}{}:
	case <-ctx.Done():
		return []types.Record{failure(row, iv.fields, ctx.Err())}
	}
	defer func() { <-iv.sem }()

	var lastErr error
	for attempt := 1; attempt <= iv.attempts; attempt++ {
		content, err := iv.call(ctx, payload)
		if err == nil {
			iv.apiCalls.Add(1)
			if iv.cache != nil {
				iv.cache.Store(fp, content)
			}
			return iv.records(row, content, false)
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt < iv.attempts {
			sleepFn(ctx, iv.delay*time.Duration(attempt))
		}
	}
	return []types.Record{failure(row, iv.fields, lastErr)}
}

func (iv *Invoker) call(ctx context.Context, payload string) (string, error) {
	if iv.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, iv.timeout)
		defer cancel()
	}
	return iv.client.Invoke(ctx, payload)
}

// records turns a raw response into one or more checkpoint records. An
// unparsable response is still a successful call: the raw text is preserved
// and parsing_success is false.
func (iv *Invoker) records(row types.Row, content string, fromCache bool) []types.Record {
	v := parser.Parse(content)
	extracted, ok := parser.Extract(v, iv.fields)
	if !ok {
		return []types.Record{{
			RowIndex:    row.Index,
			Success:     true,
			ParsingOK:   false,
			FromCache:   fromCache,
			Fields:      parser.NullFields(iv.fields),
			RawResponse: content,
			HasRaw:      true,
			Error:       v.Err,
		}}
	}
	out := make([]types.Record, 0, len(extracted))
	for _, fields := range extracted {
		out = append(out, types.Record{
			RowIndex:  row.Index,
			Success:   true,
			ParsingOK: true,
			FromCache: fromCache,
			Fields:    fields,
		})
	}
	return out
}

func failure(row types.Row, fields []string, err error) types.Record {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return types.Record{
		RowIndex:  row.Index,
		Success:   false,
		ParsingOK: false,
		Fields:    parser.NullFields(fields),
		Error:     msg,
	}
}

// safeInvoke shields the batch from panics in a row's task.
func (iv *Invoker) safeInvoke(ctx context.Context, row types.Row) (recs []types.Record) {
	defer func() {
		if r := recover(); r != nil {
			recs = []types.Record{failure(row, iv.fields, fmt.Errorf("panic: %v", r))}
		}
	}()
	return iv.Invoke(ctx, row)
}
