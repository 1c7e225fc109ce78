package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/eyevinn-osaas/strom-sub001/internal/api"
	"github.com/eyevinn-osaas/strom-sub001/internal/catalog"
	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
	"github.com/eyevinn-osaas/strom-sub001/internal/diag"
	"github.com/eyevinn-osaas/strom-sub001/internal/flow"
	"github.com/eyevinn-osaas/strom-sub001/internal/memengine"
	"github.com/eyevinn-osaas/strom-sub001/internal/metric"
)

// Run builds the flow on the in-memory engine, optionally simulates its
// runtime outputs and prints a summary. With an HTTP port the instance keeps
// running behind the API until ctx ends.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	cat, err := catalog.Load(ctx, a.cfg.CatalogPath)
	if err != nil {
		return err
	}
	promReg, metrics, err := metric.NewRegistry()
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	sinks := diag.Multi{diag.LogSink{}}
	if a.cfg.EventsURL != "" {
		sio, err := diag.DialSocketIO(ctx, diag.SocketIOOptions{URL: a.cfg.EventsURL})
		if err != nil {
			return fmt.Errorf("failed to connect diagnostics sink: %w", err)
		}
		defer sio.Close()
		sinks = append(sinks, sio)
	}

	eng := memengine.New(cat)
	inst, err := flow.Build(ctx, a.model, flow.Options{
		Registry: a.registry,
		Engine:   eng,
		Sink:     sinks,
		Metrics:  metrics,
		State:    a.cfg.State,
	})
	if err != nil {
		return fmt.Errorf("failed to build flow: %w", err)
	}
	defer func() {
		if err := inst.Teardown(ctx); err != nil {
			a.logger.Error("Teardown failed.", "error", err)
		}
	}()

	if a.cfg.Simulate {
		if err := simulate(ctx, eng, inst); err != nil {
			return fmt.Errorf("simulation failed: %w", err)
		}
	}
	a.printSummary(inst)

	if a.cfg.HTTPPort > 0 {
		srv := api.NewServer(ctx, inst, promReg)
		srv.Start(ctx, fmt.Sprintf(":%d", a.cfg.HTTPPort))
		<-ctx.Done()
		// ctx is done; shut down on a fresh one carrying the logger.
		if err := srv.Shutdown(ctxlog.WithLogger(context.Background(), a.logger)); err != nil {
			return err
		}
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

func (a *App) printSummary(inst *flow.Instance) {
	d := inst.Diagnostics()
	fmt.Fprintf(a.outW, "flow %q (graph %s, %s)\n", d.Flow, d.Graph, d.State)
	fmt.Fprintf(a.outW, "  nodes: %d\n", d.Nodes)
	fmt.Fprintf(a.outW, "  pending links: %d\n", len(d.Pending))
	for _, p := range d.Pending {
		fmt.Fprintf(a.outW, "    %s waits for %s.%s\n", p.Link, p.Producer, p.Pattern)
	}
	fmt.Fprintf(a.outW, "  terminators: %d\n", len(d.Terminators))
	for _, t := range d.Terminators {
		fmt.Fprintf(a.outW, "    %s discards %s\n", t.Node, t.Producer)
	}

	refs := make([]string, 0, len(d.Splices))
	for ref := range d.Splices {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	fmt.Fprintf(a.outW, "  dynamic routes: %d\n", len(d.Routes))
	for _, ref := range refs {
		fmt.Fprintf(a.outW, "    %s: %s\n", ref, d.Splices[ref])
	}
	for _, w := range d.Warnings {
		fmt.Fprintf(a.outW, "  warning: %s\n", w)
	}
}
