package transport

import (
	"context"
	"errors"
	"net/http"
)

// maxRefreshReplays bounds how often one request is re-issued because of an
// expired session. A replay that is still rejected surfaces the failure.
const maxRefreshReplays = 1

// pending is one suspended caller waiting on the in-flight refresh
type pending struct {
	req      request
	ctx      context.Context
	attempts int
	// sentUnder is the credential generation the request first went out with
	sentUnder uint64
	// probe entries come from Refresh and carry no request to replay
	probe bool
	done  chan result
}

type result struct {
	body []byte
	err  error
}

func newPending(ctx context.Context, req request) *pending {
	return &pending{req: req, ctx: ctx, done: make(chan result, 1)}
}

// Refresh renews the session, joining a refresh that is already in flight
func (c *Client) Refresh(ctx context.Context) error {
	entry := newPending(ctx, request{method: http.MethodPost, path: c.refreshPath})
	entry.probe = true
	_, err := c.enqueue(entry)
	return err
}

// awaitRefresh parks req behind the single in-flight refresh, starting one
// if none is running.
func (c *Client) awaitRefresh(ctx context.Context, req request, sentUnder uint64) ([]byte, error) {
	// Nothing to refresh: the visitor never had a session
	if !c.HasCredential() {
		return nil, &Error{Kind: KindUnauthenticated, Method: req.method, Path: req.path, Status: c.expiredStatus, RequestID: req.id, Err: ErrSessionExpired}
	}

	entry := newPending(ctx, req)
	entry.sentUnder = sentUnder
	return c.enqueue(entry)
}

// enqueue parks entry behind the in-flight refresh, or starts one. The stale
// check and the leader check-and-set share one lock hold.
func (c *Client) enqueue(entry *pending) ([]byte, error) {
	c.mu.Lock()
	if !entry.probe && !c.refreshing && c.generation != entry.sentUnder {
		// The session was already renewed after the request went out
		c.mu.Unlock()
		return c.replay(entry)
	}
	c.queue = append(c.queue, entry)
	leader := !c.refreshing
	c.refreshing = true
	c.metrics.pending.Set(float64(len(c.queue)))
	c.mu.Unlock()

	if leader {
		// Detached so one caller giving up does not fail everyone else's refresh
		go c.runRefresh(context.WithoutCancel(entry.ctx))
	}

	select {
	case r := <-entry.done:
		return r.body, r.err
	case <-entry.ctx.Done():
		return nil, &Error{Kind: KindNetwork, Method: entry.req.method, Path: entry.req.path, RequestID: entry.req.id, Err: entry.ctx.Err()}
	}
}

// runRefresh issues the refresh call and drains the queue exactly once
func (c *Client) runRefresh(ctx context.Context) {
	_, err := c.send(ctx, request{method: http.MethodPost, path: c.refreshPath, id: newRequestID()})

	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	c.refreshing = false
	if err == nil {
		c.generation++
	}
	handlers := append([]func(error){}, c.onExpired...)
	c.mu.Unlock()
	c.metrics.pending.Set(0)

	if err != nil {
		c.metrics.refreshes.WithLabelValues("failure").Inc()
		c.logger.Warn().Err(err).Int("waiting", len(queue)).Msg("Session refresh failed")

		c.ClearSession()
		for _, e := range queue {
			e.done <- result{err: &Error{
				Kind:      KindUnauthenticated,
				Method:    e.req.method,
				Path:      e.req.path,
				Status:    StatusCode(err),
				Message:   UserMessage(err),
				RequestID: e.req.id,
				Err:       err,
			}}
		}
		for _, fn := range handlers {
			fn(err)
		}
		return
	}

	c.metrics.refreshes.WithLabelValues("success").Inc()
	c.logger.Debug().Int("waiting", len(queue)).Msg("Session refreshed")

	// Replayed one at a time so callers resolve in arrival order
	for _, e := range queue {
		body, rerr := c.replay(e)
		e.done <- result{body: body, err: rerr}
	}
}

// replay re-issues a parked request after a successful refresh
func (c *Client) replay(e *pending) ([]byte, error) {
	if e.probe {
		return nil, nil
	}
	if err := e.ctx.Err(); err != nil {
		return nil, &Error{Kind: KindNetwork, Method: e.req.method, Path: e.req.path, RequestID: e.req.id, Err: err}
	}

	e.attempts++
	body, err := c.send(e.ctx, e.req)
	if errors.Is(err, ErrSessionExpired) && e.attempts >= maxRefreshReplays {
		c.logger.Warn().
			Str("method", e.req.method).
			Str("path", e.req.path).
			Str("request_id", e.req.id).
			Msg("Session still expired after refresh")
	}
	return body, err
}
