package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"opsconsole/internal/domain"
	"opsconsole/internal/usecase/timeline"
)

func newWatchCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the connection monitor headless and print transitions",
		Long: `watch runs the background monitor without the dashboard. Every state
change and error is printed as a timeline row until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
}

func runWatch(ctx context.Context, opts *rootOptions, out io.Writer) error {
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	client, baseURL, err := a.clientFor(a.cfg.Gateway.ActiveProfile, false)
	if err != nil {
		return err
	}
	mon := a.newMonitor(client)
	store := timeline.New(a.cfg.Console.TimelineSize, a.log)

	unsubscribe := a.bus.SubscribeAll(func(ctx context.Context, ev domain.Event) {
		logTransition(a.log, ev)
		if store.Handle(ctx, ev) {
			writeEntry(out, store.Entries()[0])
		}
	})
	defer unsubscribe()

	fmt.Fprintf(out, "Watching %s (%s). Press Ctrl+C to stop.\n", baseURL, a.cfg.Gateway.ActiveProfile)
	if a.applyForcedState(mon) {
		<-ctx.Done()
		return nil
	}

	mon.Start(ctx)
	<-ctx.Done()
	mon.Stop()
	return nil
}

func logTransition(log *slog.Logger, ev domain.Event) {
	switch ev.Type {
	case domain.EventConnectionState:
		var p domain.StatePayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			log.Info("connection state changed", "from", p.Previous.String(), "to", p.Current.String())
		}
	case domain.EventConnectionError:
		var p domain.ErrorPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			log.Warn("connection error", "message", p.Message, "class", p.Class)
		}
	}
}

func writeEntry(w io.Writer, e timeline.Entry) {
	line := e.Timestamp.Local().Format("15:04:05") + "  " + e.Title
	if e.Detail != "" {
		line += "  " + e.Detail
	}
	fmt.Fprintln(w, line)
}
