package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

const defaultHandlerTimeout = 10 * time.Second

// HandlerOption customizes the collaborators shared by every flow handler.
type HandlerOption func(*handlerBase)

// WithLogger sets the logger used when no provider supplies one.
func WithLogger(logger Logger) HandlerOption {
	return func(b *handlerBase) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithLoggerProvider sets the provider handlers ask for their named logger.
func WithLoggerProvider(provider LoggerProvider) HandlerOption {
	return func(b *handlerBase) {
		if provider != nil {
			b.provider = provider
		}
	}
}

// WithActivitySink sets the sink used to emit lifecycle events.
func WithActivitySink(sink ActivitySink) HandlerOption {
	return func(b *handlerBase) {
		b.activity.sink = normalizeActivitySink(sink)
	}
}

// WithNotifier sets the outbound notification transport.
func WithNotifier(notifier Notifier) HandlerOption {
	return func(b *handlerBase) {
		b.notifier = normalizeNotifier(notifier)
	}
}

// WithLinkBuilder sets how deep links in notifications are rendered.
func WithLinkBuilder(links LinkBuilder) HandlerOption {
	return func(b *handlerBase) {
		b.links = links
	}
}

// WithClock injects the time source (useful for tests).
func WithClock(clock Clock) HandlerOption {
	return func(b *handlerBase) {
		if clock != nil {
			b.now = clock
		}
	}
}

// WithTimeout bounds each handler execution.
func WithTimeout(timeout time.Duration) HandlerOption {
	return func(b *handlerBase) {
		if timeout > 0 {
			b.timeout = timeout
		}
	}
}

func withFlowMetrics(m *flowMetrics) HandlerOption {
	return func(b *handlerBase) {
		b.metrics = m
	}
}

type handlerBase struct {
	repo     RepositoryManager
	logger   Logger
	provider LoggerProvider
	activity activityRecorder
	notifier Notifier
	links    LinkBuilder
	metrics  *flowMetrics
	now      Clock
	timeout  time.Duration
}

func newHandlerBase(name string, repo RepositoryManager, opts []HandlerOption) handlerBase {
	b := handlerBase{
		repo:     repo,
		activity: activityRecorder{sink: noopActivitySink{}},
		notifier: LogNotifier{},
		now:      utcNow,
		timeout:  defaultHandlerTimeout,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&b)
		}
	}

	b.provider, b.logger = ResolveLogger(name, b.provider, b.logger)
	b.activity.logger = b.logger
	b.activity.now = b.now
	if n, ok := b.notifier.(LogNotifier); ok && n.Logger == nil {
		b.notifier = LogNotifier{Logger: b.logger}
	}

	return b
}

// guard fails fast on a cancelled context and bounds the remaining work.
func (b *handlerBase) guard(ctx context.Context, operation string) (context.Context, context.CancelFunc, error) {
	select {
	case <-ctx.Done():
		return ctx, func() {}, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during "+operation,
		)
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	return ctx, cancel, nil
}

// notify sends n and logs delivery failures without surfacing them.
func (b *handlerBase) notify(ctx context.Context, n Notification) {
	if err := b.notifier.Send(ctx, n); err != nil {
		b.logger.Warn("notifier error", "kind", n.Kind, "error", err)
	}
}

func (b *handlerBase) record(ctx context.Context, event ActivityEvent) {
	b.activity.record(ctx, event)
}

func (b *handlerBase) observe(flow string, err error) {
	b.metrics.observe(flow, err)
}

// notFoundAs maps repository not-found errors to target and passes every
// other error through.
func notFoundAs(err, target error) error {
	if err == nil {
		return nil
	}
	if repository.IsRecordNotFound(err) {
		return target
	}
	return err
}

// optional drops not-found errors so lookups can return a nil record.
func optional[T any](record T, err error) (T, error) {
	if err != nil && repository.IsRecordNotFound(err) {
		var zero T
		return zero, nil
	}
	return record, err
}
