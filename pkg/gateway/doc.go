// Package gateway assembles a running switchboard from configuration.
//
// New wires, in order: the metrics collector, the tracer, one adapter per
// backend (credentials resolved once), the registry with its breakers and
// token buckets, the optional response cache (memory or Redis), the audit
// store, the non-blocking recorder, the retention pruner, and finally the
// router. Audit events pass through the collector on their way to the
// recorder so cost and token counters see every served request.
//
//	gw, err := gateway.New(cfg, gateway.WithVersion(version))
//	if err != nil {
//	    return err
//	}
//	defer gw.Close(context.Background())
//
//	if err := gw.Start(ctx); err != nil {
//	    return err
//	}
//	go gw.Watch(ctx, configPath)
//
//	resp, err := gw.Route(ctx, req)
//
// Close stops the retention scheduler, drains the audit queue, then closes
// storage, cache, adapters and the tracer.
package gateway
