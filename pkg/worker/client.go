package worker

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "github.com/DavidOeztuerk/Skillswap-sub014/pkg/errors"
	"github.com/DavidOeztuerk/Skillswap-sub014/pkg/frame"
	"github.com/DavidOeztuerk/Skillswap-sub014/pkg/stats"
)

// Client is the host-side view of one cipher context. It assigns correlation
// ids, demultiplexes the worker's reply stream, and exposes blocking calls.
// Replies may arrive out of request order when calls are pipelined from
// several goroutines; matching is by correlation id only, so Client is safe
// for concurrent use.
type Client struct {
	logger *logrus.Logger
	worker *Worker
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[string]chan Response
	closed  bool

	events chan Response
	done   chan struct{}
}

// NewClient builds a cipher context together with its host-side dispatcher
// and starts the context's dispatch loop.
func NewClient(logger *logrus.Logger, opts Options) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		logger:  logger,
		worker:  New(logger, opts),
		cancel:  cancel,
		pending: make(map[string]chan Response),
		events:  make(chan Response, 8),
		done:    make(chan struct{}),
	}

	go c.worker.Run(ctx)
	go c.demux()

	return c
}

// demux routes correlated replies to their pending caller and everything else
// (the startup ready) to the events channel. When the worker's reply stream
// closes, all pending callers are failed.
func (c *Client) demux() {
	for resp := range c.worker.Replies() {
		if resp.ID != "" {
			c.mu.Lock()
			ch, ok := c.pending[resp.ID]
			if ok {
				delete(c.pending, resp.ID)
			}
			c.mu.Unlock()

			if ok {
				ch <- resp
				continue
			}
			// Reply for a caller that gave up (context canceled). Drop it.
			c.logger.WithField("id", resp.ID).Debug("Dropped reply with no pending caller")
			continue
		}

		select {
		case c.events <- resp:
		default:
		}
	}

	c.mu.Lock()
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
	close(c.done)
}

// Events delivers broadcast-style replies that carry no correlation id, such
// as the startup ready.
func (c *Client) Events() <-chan Response {
	return c.events
}

// Snapshot returns the context's statistics without a protocol round trip.
func (c *Client) Snapshot() stats.Statistics {
	return c.worker.Snapshot()
}

// Close tears down the cipher context. In-flight calls fail with
// ErrWorkerClosed.
func (c *Client) Close() {
	c.cancel()
	<-c.done
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) roundTrip(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	req.ID = uuid.NewString()

	ch := make(chan Response, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Response{}, apperrors.ErrWorkerClosed
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	select {
	case c.worker.Requests() <- req:
	case <-ctx.Done():
		c.forget(req.ID)
		return Response{}, ctx.Err()
	case <-c.done:
		c.forget(req.ID)
		return Response{}, apperrors.ErrWorkerClosed
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return Response{}, apperrors.ErrWorkerClosed
		}
		if resp.Kind == ReplyError {
			return resp, apperrors.New(resp.Error).WithCode(resp.Code)
		}
		return resp, nil
	case <-ctx.Done():
		c.forget(req.ID)
		return Response{}, ctx.Err()
	case <-c.done:
		return Response{}, apperrors.ErrWorkerClosed
	}
}

// Init seeds the context, optionally installing an initial key.
func (c *Client) Init(ctx context.Context, jwk []byte, generation uint8) error {
	req := Request{Kind: KindInit}
	if jwk != nil {
		req.Key = &KeyMaterial{JWK: jwk, Generation: generation}
	}
	_, err := c.roundTrip(ctx, req)
	return err
}

// UpdateKey rotates to a new key generation. Frames encrypted under the
// immediately prior generation keep decrypting; anything older is retired.
func (c *Client) UpdateKey(ctx context.Context, jwk []byte, generation uint8) error {
	_, err := c.roundTrip(ctx, Request{
		Kind: KindUpdateKey,
		Key:  &KeyMaterial{JWK: jwk, Generation: generation},
	})
	return err
}

// Encrypt transforms one outgoing frame. The input buffer is moved: the
// caller must not reuse it after the call.
func (c *Client) Encrypt(ctx context.Context, frameData []byte) ([]byte, error) {
	resp, err := c.roundTrip(ctx, Request{Kind: KindEncrypt, Frame: frameData})
	if err != nil {
		return nil, err
	}
	return resp.Frame, nil
}

// Decrypt transforms one incoming frame. The input buffer is moved: the
// caller must not reuse it after the call.
func (c *Client) Decrypt(ctx context.Context, frameData []byte) (frame.DecryptResult, error) {
	resp, err := c.roundTrip(ctx, Request{Kind: KindDecrypt, Frame: frameData})
	if err != nil {
		return frame.DecryptResult{}, err
	}
	return frame.DecryptResult{
		Payload:      resp.Frame,
		WasEncrypted: resp.WasEncrypted,
		Generation:   resp.Generation,
	}, nil
}

// SetEncryption toggles outgoing encryption. The flag is independent of key
// presence.
func (c *Client) SetEncryption(ctx context.Context, enabled bool) error {
	kind := KindDisableEncryption
	if enabled {
		kind = KindEnableEncryption
	}
	_, err := c.roundTrip(ctx, Request{Kind: kind})
	return err
}

// Stats polls the context's statistics snapshot.
func (c *Client) Stats(ctx context.Context) (stats.Statistics, error) {
	resp, err := c.roundTrip(ctx, Request{Kind: KindGetStats})
	if err != nil {
		return stats.Statistics{}, err
	}
	if resp.Stats == nil {
		return stats.Statistics{}, apperrors.New("stats reply without snapshot")
	}
	return *resp.Stats, nil
}

// Cleanup clears all key material and resets statistics. The context remains
// usable and may be re-initialized.
func (c *Client) Cleanup(ctx context.Context) error {
	_, err := c.roundTrip(ctx, Request{Kind: KindCleanup})
	return err
}
