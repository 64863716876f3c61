package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DavidOeztuerk/Skillswap-sub014/pkg/stats"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeChannel struct {
	mu        sync.Mutex
	published []amqp.Publishing
	keys      []string
}

func (f *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, msg)
	f.keys = append(f.keys, key)
	return nil
}

func (f *fakeChannel) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func (f *fakeChannel) last() (string, amqp.Publishing) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keys[len(f.keys)-1], f.published[len(f.published)-1]
}

func TestPublisherPublishesSnapshots(t *testing.T) {
	channel := &fakeChannel{}

	source := func() stats.Statistics {
		var s stats.Statistics
		s = s.FoldEncrypted(2).FoldEncrypted(4)
		return s.WithKeyGeneration(3).WithEncryptionEnabled(true)
	}

	p := NewPublisher(testLogger(), channel, "framecipher.stats", 10*time.Millisecond, source)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return channel.count() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher did not stop on cancel")
	}

	key, msg := channel.last()
	assert.Equal(t, "framecipher.stats", key)
	assert.Equal(t, "application/json", msg.ContentType)

	var envelope snapshotEnvelope
	require.NoError(t, json.Unmarshal(msg.Body, &envelope))
	assert.Equal(t, "framecipher", envelope.Service)
	assert.WithinDuration(t, time.Now().UTC(), envelope.Timestamp, time.Minute)
	assert.Equal(t, uint64(2), envelope.Stats.EncryptedFrames)
	assert.InDelta(t, 3.0, envelope.Stats.AverageEncryptionTimeMs, 1e-9)
	assert.Equal(t, uint8(3), envelope.Stats.KeyGeneration)
	assert.True(t, envelope.Stats.EncryptionEnabled)
}

func TestPublisherKeepsRunningAfterPublishFailure(t *testing.T) {
	channel := &failingChannel{failures: 1}
	p := NewPublisher(testLogger(), channel, "framecipher.stats", 10*time.Millisecond, func() stats.Statistics {
		return stats.Statistics{}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	go p.Run(ctx)

	// The first tick fails; later ticks must still go out.
	require.Eventually(t, func() bool {
		return channel.successes() >= 1
	}, 2*time.Second, 5*time.Millisecond)
}

type failingChannel struct {
	mu       sync.Mutex
	failures int
	ok       int
}

func (f *failingChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return amqp.ErrClosed
	}
	f.ok++
	return nil
}

func (f *failingChannel) successes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ok
}
