package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xeruf/mostr/internal/command"
	"github.com/xeruf/mostr/internal/config"
	"github.com/xeruf/mostr/internal/nostrevent"
	"github.com/xeruf/mostr/internal/relay"
	"github.com/xeruf/mostr/internal/render"
	"github.com/xeruf/mostr/internal/store"
	"github.com/xeruf/mostr/internal/view"
)

// tickInterval governs how often the pending write buffer is checked for
// expiry, independent of whether the user has typed anything: a pending
// action confirms once its window elapses even with no further input.
const tickInterval = time.Second

type repl struct {
	ctx     context.Context
	dir     string
	store   *store.Store
	view    *view.State
	interp  *command.Interpreter
	adapter *relay.Adapter
	render  *render.Renderer
}

// seedArgs creates one root task per CLI positional argument, tagged
// "arg", before the first prompt is printed.
func (r *repl) seedArgs(args []string) {
	for _, a := range args {
		r.applyAndPublish([]nostrevent.Event{r.interp.SeedArg(a)})
	}
}

func (r *repl) run(in io.Reader, out io.Writer) error {
	lines := make(chan string)
	go scanLines(in, lines)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	fmt.Fprint(out, "> ")
	for {
		select {
		case <-r.ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				r.commitPendingOnShutdown()
				return nil
			}
			r.handleLine(line)
			fmt.Fprint(out, "> ")

		case e, ok := <-r.adapter.Inbound():
			if !ok {
				return nil
			}
			r.store.Apply(e)

		case now := <-ticker.C:
			r.flushPending(now)
		}
	}
}

func scanLines(in io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

func (r *repl) handleLine(line string) {
	res := r.interp.Dispatch(line)
	r.applyAndPublish(res.Events)

	if res.RelayURL != "" {
		r.toggleRelay(res.RelayURL)
	}

	r.render.StatusLine(res.Status, res.Err)
	r.render.Table(r.view)
}

func (r *repl) flushPending(now time.Time) {
	events := r.interp.Tick(now)
	if len(events) == 0 {
		return
	}
	r.applyAndPublish(events)
	r.render.Table(r.view)
}

// commitPendingOnShutdown confirms a write still held for undo at end of
// input, as if its window had elapsed, and publishes it synchronously so
// the relay adapter is not closed before the publish completes.
func (r *repl) commitPendingOnShutdown() {
	for _, e := range r.interp.Tick(time.Now().Add(command.DefaultPendingWindow)) {
		r.store.Apply(e)
		if err := r.adapter.Publish(r.ctx, e); err != nil {
			r.render.StatusLine("", err)
		}
	}
}

func (r *repl) applyAndPublish(events []nostrevent.Event) {
	for _, e := range events {
		r.store.Apply(e)
		go func(e nostrevent.Event) {
			if err := r.adapter.Publish(r.ctx, e); err != nil {
				r.render.StatusLine("", err)
			}
		}(e)
	}
}

// toggleRelay implements the `wss://…`/`ws://…` control message as an
// add-or-remove toggle on the live relay set, persisting the change so it
// survives the next launch; the relay file is the durable source of truth.
func (r *repl) toggleRelay(url string) {
	present := false
	for _, existing := range r.adapter.Relays() {
		if existing == url {
			present = true
			break
		}
	}
	if present {
		r.adapter.RemoveRelay(url)
	} else {
		r.adapter.AddRelay(url)
	}
	if err := config.SaveRelays(r.dir, r.adapter.Relays()); err != nil {
		r.render.StatusLine("", err)
	}
}
