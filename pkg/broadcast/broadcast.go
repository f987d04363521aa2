// Package broadcast implements the decoration transport
// (SPEC_FULL.md §4.7): a per-document fan-out of Interval Store updates
// to subscriber channels, modeled directly on the teacher's
// Kolabpad.subscribers/notify pattern, plus a thin WebSocket relay.
package broadcast

import (
	"sync"

	"github.com/tabd/tabd/pkg/interval"
)

// Update is one decoration-update event: the full current store for a
// document, sent after each onEditBatch fold.
type Update struct {
	URI   string
	Items []interval.TaggedInterval
}

// Broadcaster fans out decoration updates for every open document to
// subscriber channels. Publish is non-blocking per subscriber — a full
// channel drops the update, exactly like Kolabpad.broadcast, since the
// next publish always supersedes a dropped one.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[uint64]chan Update
	nextID      uint64
	bufferSize  int
}

// New returns a Broadcaster whose subscriber channels are buffered to
// bufferSize.
func New(bufferSize int) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Broadcaster{
		subscribers: make(map[string]map[uint64]chan Update),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a new subscriber channel for uri and returns it
// along with a token to later Unsubscribe.
func (b *Broadcaster) Subscribe(uri string) (<-chan Update, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan Update, b.bufferSize)
	if b.subscribers[uri] == nil {
		b.subscribers[uri] = make(map[uint64]chan Update)
	}
	b.subscribers[uri][id] = ch
	return ch, id
}

// Unsubscribe removes and closes a subscriber channel.
func (b *Broadcaster) Unsubscribe(uri string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[uri]
	if !ok {
		return
	}
	if ch, ok := subs[id]; ok {
		close(ch)
		delete(subs, id)
	}
	if len(subs) == 0 {
		delete(b.subscribers, uri)
	}
}

// Publish implements session.Broadcaster: sends items to every
// subscriber of uri, dropping on any channel that is currently full.
func (b *Broadcaster) Publish(uri string, items []interval.TaggedInterval) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	cp := make([]interval.TaggedInterval, len(items))
	copy(cp, items)
	update := Update{URI: uri, Items: cp}

	for _, ch := range b.subscribers[uri] {
		select {
		case ch <- update:
		default:
		}
	}
}
