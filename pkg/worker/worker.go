package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/DavidOeztuerk/Skillswap-sub014/pkg/errors"
	"github.com/DavidOeztuerk/Skillswap-sub014/pkg/frame"
	"github.com/DavidOeztuerk/Skillswap-sub014/pkg/keyring"
	"github.com/DavidOeztuerk/Skillswap-sub014/pkg/metrics"
	"github.com/DavidOeztuerk/Skillswap-sub014/pkg/stats"
)

// DefaultQueueDepth bounds how many requests may be in flight before senders
// block. Frame rate times worst-case cipher latency stays well under this.
const DefaultQueueDepth = 64

// Options configures one cipher context.
type Options struct {
	// Suite selects the AEAD construction. Defaults to AES-256-GCM.
	Suite keyring.Suite

	// GenerationTolerance overrides the codec's classification tolerance.
	// Zero selects the default.
	GenerationTolerance uint8

	// QueueDepth sizes the request and reply channels. Zero selects the
	// default.
	QueueDepth int
}

// runtimeState is the single mutable record the dispatch loop owns. It is
// replaced wholesale on every update; no field-level mutation escapes the
// loop.
type runtimeState struct {
	keys  keyring.State
	stats stats.Statistics
}

// Worker is one isolated cipher context. Exactly one is created per media
// direction/track. Message handling is strictly sequential: a message is
// fully processed before the next is dequeued, so there is no internal
// pipelining and no shared mutable state.
type Worker struct {
	logger *logrus.Logger
	codec  frame.Codec
	suite  keyring.Suite

	requests chan Request
	replies  chan Response

	state    runtimeState
	snapshot atomic.Pointer[stats.Statistics]
}

// New builds a cipher context. Call Run to start its dispatch loop.
func New(logger *logrus.Logger, opts Options) *Worker {
	suite := opts.Suite
	if suite == "" {
		suite = keyring.SuiteAESGCM
	}

	depth := opts.QueueDepth
	if depth <= 0 {
		depth = DefaultQueueDepth
	}

	w := &Worker{
		logger:   logger,
		codec:    frame.NewCodec(opts.GenerationTolerance),
		suite:    suite,
		requests: make(chan Request, depth),
		replies:  make(chan Response, depth),
	}
	w.publishSnapshot()
	return w
}

// Requests is the inbound message channel. Frame buffers sent here are moved:
// the sender must not reuse them afterwards.
func (w *Worker) Requests() chan<- Request {
	return w.requests
}

// Replies is the outbound message channel. It is closed when Run returns.
func (w *Worker) Replies() <-chan Response {
	return w.replies
}

// Snapshot returns the statistics as of the last fully processed message.
// Safe to call from any goroutine.
func (w *Worker) Snapshot() stats.Statistics {
	return *w.snapshot.Load()
}

// Run executes the dispatch loop until ctx is canceled. It posts ready once
// on startup and exactly one reply per request. Per-frame failures produce
// typed error replies; nothing short of cancellation stops the loop.
func (w *Worker) Run(ctx context.Context) {
	metrics.ContextOpened()
	defer metrics.ContextClosed()
	defer close(w.replies)

	w.logger.WithField("suite", w.suite).Debug("Cipher context started")

	if !w.post(ctx, Response{Kind: ReplyReady}) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			w.state.keys = w.state.keys.Clear()
			w.logger.Debug("Cipher context stopped")
			return
		case req := <-w.requests:
			resp := w.dispatch(req)
			w.publishSnapshot()
			if !w.post(ctx, resp) {
				return
			}
		}
	}
}

func (w *Worker) post(ctx context.Context, resp Response) bool {
	select {
	case w.replies <- resp:
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *Worker) publishSnapshot() {
	snapshot := w.state.stats
	w.snapshot.Store(&snapshot)
}

// dispatch processes one message and returns its single reply.
func (w *Worker) dispatch(req Request) Response {
	if err := req.Validate(); err != nil {
		w.logger.WithError(err).WithField("kind", req.Kind).Warn("Rejected protocol message")
		return errorResponse(req.ID, err)
	}

	switch req.Kind {
	case KindInit:
		return w.handleInit(req)
	case KindUpdateKey:
		return w.handleUpdateKey(req)
	case KindEncrypt:
		return w.handleEncrypt(req)
	case KindDecrypt:
		return w.handleDecrypt(req)
	case KindEnableEncryption:
		return w.handleSetEncryption(req, true)
	case KindDisableEncryption:
		return w.handleSetEncryption(req, false)
	case KindGetStats:
		snapshot := w.state.stats
		return Response{Kind: ReplyStats, ID: req.ID, Stats: &snapshot}
	case KindCleanup:
		return w.handleCleanup(req)
	default:
		// Unreachable: Validate rejects unknown kinds.
		return errorResponse(req.ID, apperrors.NewUnknownKind(string(req.Kind)))
	}
}

func (w *Worker) handleInit(req Request) Response {
	resp := Response{Kind: ReplyReady, ID: req.ID}
	if req.Key == nil {
		return resp
	}

	if err := w.installKey(req.Key); err != nil {
		return errorResponse(req.ID, err)
	}
	resp.Generation = req.Key.Generation
	return resp
}

func (w *Worker) handleUpdateKey(req Request) Response {
	if err := w.installKey(req.Key); err != nil {
		return errorResponse(req.ID, err)
	}
	return Response{Kind: ReplyKeyUpdated, ID: req.ID, Generation: req.Key.Generation}
}

func (w *Worker) installKey(material *KeyMaterial) error {
	handle, err := keyring.ImportJWK(material.JWK, w.suite)
	if err != nil {
		w.logger.WithError(err).Error("Failed to import key material")
		return err
	}

	w.state.keys = w.state.keys.WithKey(handle, material.Generation)
	w.state.stats = w.state.stats.WithKeyGeneration(material.Generation)
	metrics.RecordKeyInstall(material.Generation)

	w.logger.WithFields(logrus.Fields{
		"generation": material.Generation,
		"suite":      w.suite,
	}).Info("Installed key generation")
	return nil
}

func (w *Worker) handleEncrypt(req Request) Response {
	keys := w.state.keys
	if !keys.EncryptionEnabled || keys.Current == nil {
		// Expected before key exchange completes or while disabled.
		w.state.stats = w.state.stats.FoldPassthrough()
		metrics.RecordFrame("encrypt", metrics.OutcomePassthrough)
		return Response{Kind: ReplyEncryptSuccess, ID: req.ID, Frame: req.Frame}
	}

	start := time.Now()
	out, err := w.codec.EncryptFrame(keys.Current.Handle, keys.Current.Generation, req.Frame)
	elapsed := time.Since(start)

	if err != nil {
		w.state.stats = w.state.stats.FoldEncryptionError()
		metrics.RecordError("encrypt", apperrors.GetErrorCode(err))
		w.logger.WithError(err).Error("Frame encryption failed")
		return errorResponse(req.ID, err)
	}

	w.state.stats = w.state.stats.FoldEncrypted(toMillis(elapsed))
	metrics.RecordFrame("encrypt", metrics.OutcomeEncrypted)
	metrics.ObserveEncryptLatency(elapsed.Seconds())

	return Response{
		Kind:         ReplyEncryptSuccess,
		ID:           req.ID,
		Frame:        out,
		ElapsedMs:    toMillis(elapsed),
		WasEncrypted: true,
		Generation:   keys.Current.Generation,
	}
}

func (w *Worker) handleDecrypt(req Request) Response {
	start := time.Now()
	result, err := w.codec.DecryptFrame(w.state.keys, req.Frame)
	elapsed := time.Since(start)

	if err != nil {
		w.state.stats = w.state.stats.FoldDecryptionError()
		metrics.RecordError("decrypt", apperrors.GetErrorCode(err))
		w.logger.WithError(err).Warn("Frame decryption failed")
		return errorResponse(req.ID, err)
	}

	if !result.WasEncrypted {
		w.state.stats = w.state.stats.FoldPassthrough()
		metrics.RecordFrame("decrypt", metrics.OutcomePassthrough)
		return Response{Kind: ReplyDecryptSuccess, ID: req.ID, Frame: result.Payload}
	}

	w.state.stats = w.state.stats.FoldDecrypted(toMillis(elapsed))
	metrics.RecordFrame("decrypt", metrics.OutcomeDecrypted)
	metrics.ObserveDecryptLatency(elapsed.Seconds())

	return Response{
		Kind:         ReplyDecryptSuccess,
		ID:           req.ID,
		Frame:        result.Payload,
		ElapsedMs:    toMillis(elapsed),
		WasEncrypted: true,
		Generation:   result.Generation,
	}
}

func (w *Worker) handleSetEncryption(req Request, enabled bool) Response {
	w.state.keys = w.state.keys.WithEncryption(enabled)
	w.state.stats = w.state.stats.WithEncryptionEnabled(enabled)
	w.logger.WithField("enabled", enabled).Info("Encryption toggled")
	// Acknowledged with ready; the toggle has no dedicated reply kind.
	return Response{Kind: ReplyReady, ID: req.ID}
}

func (w *Worker) handleCleanup(req Request) Response {
	w.state.keys = w.state.keys.Clear()
	w.state.stats = stats.Statistics{}
	w.logger.Info("Cipher context cleaned up")
	return Response{Kind: ReplyCleanupComplete, ID: req.ID}
}

func toMillis(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}
