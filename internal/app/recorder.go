package app

import (
	"context"
	"sync/atomic"
	"time"

	"ludo/internal/ports"
)

type historyWrite func(ctx context.Context, store ports.HistoryStore) error

// Recorder forwards history writes to a store from a single background
// goroutine. A full queue drops the write. A nil Recorder discards everything.
type Recorder struct {
	store   ports.HistoryStore
	queue   chan historyWrite
	onError func(error)
	dropped atomic.Int64
}

// NewRecorder buffers up to size writes. onError may be nil.
func NewRecorder(store ports.HistoryStore, size int, onError func(error)) *Recorder {
	if size <= 0 {
		size = 256
	}
	return &Recorder{
		store:   store,
		queue:   make(chan historyWrite, size),
		onError: onError,
	}
}

// Run drains the queue until ctx is done, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) {
	if r == nil || r.store == nil {
		return
	}
	for {
		select {
		case w := <-r.queue:
			r.write(ctx, w)
		case <-ctx.Done():
			flush := context.WithoutCancel(ctx)
			for {
				select {
				case w := <-r.queue:
					r.write(flush, w)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(ctx context.Context, w historyWrite) {
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := w(wctx, r.store); err != nil && r.onError != nil {
		r.onError(err)
	}
}

func (r *Recorder) enqueue(w historyWrite) {
	if r == nil || r.store == nil {
		return
	}
	select {
	case r.queue <- w:
	default:
		r.dropped.Add(1)
	}
}

// Dropped counts writes lost to a full queue.
func (r *Recorder) Dropped() int64 {
	if r == nil {
		return 0
	}
	return r.dropped.Load()
}

func (r *Recorder) User(rec ports.UserRecord) {
	r.enqueue(func(ctx context.Context, s ports.HistoryStore) error { return s.SaveUser(ctx, rec) })
}

func (r *Recorder) Room(rec ports.RoomRecord) {
	r.enqueue(func(ctx context.Context, s ports.HistoryStore) error { return s.SaveRoom(ctx, rec) })
}

func (r *Recorder) Membership(rec ports.MembershipRecord) {
	r.enqueue(func(ctx context.Context, s ports.HistoryStore) error { return s.SaveMembership(ctx, rec) })
}

func (r *Recorder) RoomStatus(roomID, status string, at time.Time) {
	r.enqueue(func(ctx context.Context, s ports.HistoryStore) error {
		return s.SaveRoomStatus(ctx, roomID, status, at)
	})
}

func (r *Recorder) Move(rec ports.MoveRecord) {
	r.enqueue(func(ctx context.Context, s ports.HistoryStore) error { return s.SaveMove(ctx, rec) })
}

func (r *Recorder) Chat(rec ports.ChatRecord) {
	r.enqueue(func(ctx context.Context, s ports.HistoryStore) error { return s.SaveChat(ctx, rec) })
}

func (r *Recorder) Ban(rec ports.BanRecord) {
	r.enqueue(func(ctx context.Context, s ports.HistoryStore) error { return s.SaveBan(ctx, rec) })
}
