// Command evtask is the line-oriented task tracker REPL: load config,
// start the relay adapter, and dispatch typed lines through the command
// interpreter until stdin closes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/xeruf/mostr/internal/aggregate"
	"github.com/xeruf/mostr/internal/command"
	"github.com/xeruf/mostr/internal/config"
	"github.com/xeruf/mostr/internal/relay"
	"github.com/xeruf/mostr/internal/render"
	"github.com/xeruf/mostr/internal/signer"
	"github.com/xeruf/mostr/internal/store"
	"github.com/xeruf/mostr/internal/tracking"
	"github.com/xeruf/mostr/internal/view"
)

func main() {
	configDirFlag := flag.String("config", "", "config directory path")
	flag.Parse()

	dir, err := resolveConfigDir(*configDirFlag)
	if err != nil {
		log.Fatal(err)
	}

	cfg, err := config.LoadOrPrompt(dir, os.Stdin, os.Stdout)
	if err != nil {
		log.Fatal(err)
	}

	sg, err := signer.New(cfg.Key)
	if err != nil {
		log.Fatal(err)
	}

	ledger := tracking.NewLedger()
	st := store.New(ledger)
	agg := aggregate.New(st, ledger, sg.PublicKey)
	vw := view.New()
	interp := command.New(st, vw, sg.PublicKey)

	adapter := relay.New(sg, cfg.Relays)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	adapter.Start(ctx)
	defer adapter.Close()

	out := render.New(st, agg, ledger, sg.PublicKey, os.Stdout, render.DetectColor(os.Stdout))

	session := &repl{
		ctx:     ctx,
		dir:     dir,
		store:   st,
		view:    vw,
		interp:  interp,
		adapter: adapter,
		render:  out,
	}
	session.seedArgs(flag.Args())
	if err := session.run(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveConfigDir(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return config.DefaultDir()
}
