// Package archive keeps the frames the predictor failed on, so they can be
// labeled and added to the training set.
package archive

import (
	"context"
	"fmt"

	"github.com/autopeer-io/remotepilot/internal/pkg/metrics"
	"github.com/autopeer-io/remotepilot/pkg/log"
)

// Archiver accepts failed frames. Archive never blocks the caller.
type Archiver interface {
	Archive(sessionID string, seq uint32, image []byte)

	// Start uploads queued frames until ctx is done.
	Start(ctx context.Context) error
}

// Key returns the object key of a frame.
func Key(sessionID string, seq uint32) string {
	return fmt.Sprintf("%s/%010d.jpg", sessionID, seq)
}

type item struct {
	key   string
	image []byte
}

// Queue uploads frames to a Store from a bounded queue. Frames arriving
// while the queue is full are dropped.
type Queue struct {
	store Store
	items chan item
}

var _ Archiver = (*Queue)(nil)

func NewQueue(store Store, size int) *Queue {
	return &Queue{
		store: store,
		items: make(chan item, size),
	}
}

func (q *Queue) Archive(sessionID string, seq uint32, image []byte) {
	select {
	case q.items <- item{key: Key(sessionID, seq), image: image}:
	default:
		metrics.ArchivedFrames.WithLabelValues("dropped").Inc()
		log.Debug("Archive queue full, dropping frame", "session", sessionID, "seq", seq)
	}
}

func (q *Queue) Start(ctx context.Context) error {
	if err := q.store.EnsureBucket(ctx); err != nil {
		// The service keeps running without an archive.
		log.Error(err, "Failed-frame archive unavailable")
		<-ctx.Done()
		return nil
	}

	log.Info("Failed-frame archive ready")
	for {
		select {
		case <-ctx.Done():
			return nil
		case it := <-q.items:
			if err := q.store.Put(ctx, it.key, it.image, "image/jpeg"); err != nil {
				metrics.ArchivedFrames.WithLabelValues("error").Inc()
				log.Warn("Failed to archive frame", "key", it.key, "error", err)
				continue
			}
			metrics.ArchivedFrames.WithLabelValues("ok").Inc()
		}
	}
}

// Discard is the Archiver used when no object store is configured.
type Discard struct{}

func (Discard) Archive(string, uint32, []byte) {}

func (Discard) Start(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
