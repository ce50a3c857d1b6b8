// Package relay is the fan-out adapter and the core's only concurrent
// boundary. It wraps nbd-wtf/go-nostr's SimplePool and exposes
// exactly the two things the core needs — a bounded inbound channel of
// validated events and a blocking Publish call — so that everything on the
// other side of this package can stay single-threaded.
package relay

import (
	"context"
	"fmt"
	"strings"
	"sync"

	goerrors "github.com/go-errors/errors"
	"github.com/google/uuid"
	"github.com/nbd-wtf/go-nostr"

	"github.com/xeruf/mostr/internal/nostrevent"
	"github.com/xeruf/mostr/internal/signer"
)

// channelCapacity bounds the inbound channel; when it is full the
// subscription goroutine waits, which is backpressure, not an error.
const channelCapacity = 256

// trackedKinds is the kind catalog this module ever subscribes for; all
// other kinds are left for relays to deliver to other clients — this
// module tolerates unknown kinds on apply but does not go looking for them.
var trackedKinds = []int{
	int(nostrevent.KindNote), int(nostrevent.KindTask), int(nostrevent.KindReply),
	int(nostrevent.KindOpen), int(nostrevent.KindDone), int(nostrevent.KindClosed), int(nostrevent.KindPending),
	int(nostrevent.KindTracking),
}

// Adapter is the event source/sink pair the core depends on.
type Adapter struct {
	pool   *nostr.SimplePool
	signer *signer.Signer

	relaysMu sync.Mutex
	relays   []string

	inbound chan nostrevent.Event

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(sg *signer.Signer, relays []string) *Adapter {
	return &Adapter{
		pool:    nostr.NewSimplePool(context.Background()),
		signer:  sg,
		relays:  append([]string(nil), relays...),
		inbound: make(chan nostrevent.Event, channelCapacity),
	}
}

// Inbound is the channel the core drains between commands, at its
// suspension points. It is closed once Close returns.
func (a *Adapter) Inbound() <-chan nostrevent.Event {
	return a.inbound
}

// Start begins subscribing to every configured relay. Reconnects and
// resubscribes are nbd-wtf/go-nostr's concern inside SimplePool; missed
// events re-arrive and are re-applied idempotently once the link recovers.
func (a *Adapter) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	filter := nostr.Filter{Kinds: trackedKinds}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer close(a.inbound)
		for incoming := range a.pool.SubMany(ctx, a.currentRelays(), nostr.Filters{filter}) {
			if incoming.Event == nil {
				continue
			}
			select {
			case a.inbound <- toCoreEvent(*incoming.Event):
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Publish signs e and best-effort delivers it to every configured relay.
// The core already applied e to the store optimistically before calling
// this; a publish failure here is surfaced as a status line, never rolled
// back.
func (a *Adapter) Publish(ctx context.Context, e nostrevent.Event) error {
	wire, err := a.signer.Sign(e)
	if err != nil {
		return goerrors.Errorf("relay: %w", err)
	}

	correlation := uuid.NewString()
	relays := a.currentRelays()
	var failures []string
	for _, url := range relays {
		r, err := a.pool.EnsureRelay(url)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", url, err))
			continue
		}
		if err := r.Publish(ctx, wire); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", url, err))
		}
	}
	if len(relays) > 0 && len(failures) == len(relays) {
		return goerrors.Errorf("relay: publish %s (correlation %s) failed on every relay: %s", e.ID, correlation, strings.Join(failures, "; "))
	}
	return nil
}

// AddRelay and RemoveRelay back the `wss://…` command-line control
// message: they mutate the durable relay set without requiring a
// restart. A newly added relay is not retroactively subscribed on the live
// SubMany stream started by Start — picking it up requires the next Start,
// which is an accepted simplification for a single-session CLI.
func (a *Adapter) AddRelay(url string) {
	a.relaysMu.Lock()
	defer a.relaysMu.Unlock()
	for _, r := range a.relays {
		if r == url {
			return
		}
	}
	a.relays = append(a.relays, url)
}

func (a *Adapter) RemoveRelay(url string) {
	a.relaysMu.Lock()
	defer a.relaysMu.Unlock()
	out := a.relays[:0]
	for _, r := range a.relays {
		if r != url {
			out = append(out, r)
		}
	}
	a.relays = out
}

func (a *Adapter) Relays() []string {
	return a.currentRelays()
}

func (a *Adapter) currentRelays() []string {
	a.relaysMu.Lock()
	defer a.relaysMu.Unlock()
	return append([]string(nil), a.relays...)
}

// Close cancels the subscription goroutine and waits for it to exit,
// closing Inbound. Any event queued on it is simply dropped; nothing in the
// core depended on buffered delivery surviving shutdown (the pending
// write buffer is drained separately, before Close is called).
func (a *Adapter) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
}

func toCoreEvent(e nostr.Event) nostrevent.Event {
	tags := make(nostrevent.Tags, len(e.Tags))
	for i, t := range e.Tags {
		tags[i] = nostrevent.Tag(t)
	}
	return nostrevent.Event{
		ID:        e.ID,
		Author:    e.PubKey,
		CreatedAt: int64(e.CreatedAt),
		Kind:      nostrevent.Kind(e.Kind),
		Content:   e.Content,
		Tags:      tags,
	}
}
