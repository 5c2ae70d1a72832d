package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"forwarder/internal/models"
	"forwarder/internal/providers"
	"forwarder/internal/structures"
	"forwarder/internal/transport"
)

const (
	OpSend   = "send"
	OpEdit   = "edit"
	OpDelete = "delete"

	outcomeOK          = "ok"
	outcomeRetriedOK   = "retried_ok"
	outcomeRateLimited = "rate_limited"
	outcomeFailed      = "failed"
)

// Outbound is the part of the transport the policy drives.
type Outbound interface {
	Send(ctx context.Context, dest models.FeedID, msg *models.Message) (models.MessageID, error)
	EditCopy(ctx context.Context, c models.Copy, msg *models.Message) error
	DeleteCopy(ctx context.Context, c models.Copy) error
}

// PolicyInterface wraps every outbound call in pacing and rate-limit handling.
type PolicyInterface interface {
	Send(ctx context.Context, dest models.FeedID, msg *models.Message) (models.Copy, error)
	Edit(ctx context.Context, c models.Copy, msg *models.Message) error
	Delete(ctx context.Context, c models.Copy) error
}

// Policy sleeps ForwardDelay before each call. A rate-limited call is
// repeated once after the server-requested wait; any other failure, or a
// second rate limit, is returned to the caller.
type Policy struct {
	out         Outbound
	delay       time.Duration
	maxWait     time.Duration
	callTimeout time.Duration
	logger      providers.Logger
	metrics     providers.MetricsProviderInterface
}

func NewPolicy(conf *structures.Config, out Outbound, logger providers.Logger, metrics providers.MetricsProviderInterface) PolicyInterface {
	return &Policy{
		out:         out,
		delay:       conf.Dispatch.ForwardDelay,
		maxWait:     conf.Dispatch.MaxRateLimitWait,
		callTimeout: conf.Dispatch.CallTimeout,
		logger:      logger,
		metrics:     metrics,
	}
}

func (p *Policy) Send(ctx context.Context, dest models.FeedID, msg *models.Message) (models.Copy, error) {
	var id models.MessageID
	err := p.run(ctx, OpSend, dest, func(ctx context.Context) error {
		var err error
		id, err = p.out.Send(ctx, dest, msg)
		return err
	})
	if err != nil {
		return models.Copy{}, err
	}
	return models.Copy{Feed: dest, Message: id}, nil
}

func (p *Policy) Edit(ctx context.Context, c models.Copy, msg *models.Message) error {
	return p.run(ctx, OpEdit, c.Feed, func(ctx context.Context) error {
		return p.out.EditCopy(ctx, c, msg)
	})
}

func (p *Policy) Delete(ctx context.Context, c models.Copy) error {
	return p.run(ctx, OpDelete, c.Feed, func(ctx context.Context) error {
		return p.out.DeleteCopy(ctx, c)
	})
}

func (p *Policy) run(ctx context.Context, op string, feed models.FeedID, call func(context.Context) error) error {
	if err := sleep(ctx, p.delay); err != nil {
		return err
	}

	var (
		attempts int
		wait     time.Duration
		lastErr  error
	)
	err := retry.Do(
		func() error {
			if attempts > 0 {
				p.logger.Warnf(providers.TypeDispatch, "%s to feed %d rate limited, waiting %s", op, feed, wait)
				if err := sleep(ctx, wait); err != nil {
					lastErr = err
					return retry.Unrecoverable(err)
				}
			}
			attempts++

			lastErr = p.attempt(ctx, call)
			if w, limited := transport.RetryAfter(lastErr); limited {
				wait = w
				if p.maxWait > 0 && wait > p.maxWait {
					p.logger.Errorf(providers.TypeDispatch, "%s to feed %d asks for %s wait, over the %s limit", op, feed, wait, p.maxWait)
					return retry.Unrecoverable(lastErr)
				}
			}
			return lastErr
		},
		retry.Attempts(2),
		retry.Delay(time.Millisecond),
		retry.MaxJitter(time.Millisecond),
		retry.Context(ctx),
		retry.RetryIf(transport.IsRateLimited),
	)
	if err != nil && lastErr == nil {
		lastErr = err
	}

	switch {
	case lastErr == nil && attempts > 1:
		p.metrics.IncDispatch(op, outcomeRetriedOK)
	case lastErr == nil:
		p.metrics.IncDispatch(op, outcomeOK)
	case transport.IsRateLimited(lastErr):
		p.metrics.IncDispatch(op, outcomeRateLimited)
		p.logger.Errorf(providers.TypeDispatch, "%s to feed %d still rate limited: %s", op, feed, lastErr)
	default:
		p.metrics.IncDispatch(op, outcomeFailed)
		p.logger.Errorf(providers.TypeDispatch, "%s to feed %d failed: %s", op, feed, lastErr)
	}
	return lastErr
}

func (p *Policy) attempt(ctx context.Context, call func(context.Context) error) error {
	if p.callTimeout <= 0 {
		return call(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	return call(ctx)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsPermanent reports whether err came back from the transport as a
// non-retryable failure.
func IsPermanent(err error) bool {
	var perm *transport.PermanentError
	return errors.As(err, &perm)
}
