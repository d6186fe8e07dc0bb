// Package metrics provides Prometheus metrics collection for the Switchboard
// gateway.
//
// # Overview
//
// A Collector owns a private Prometheus registry and implements the observer
// interfaces of the router, the response cache and the audit recorder. The
// gateway passes the same Collector to each of them; none of those packages
// import Prometheus.
//
// # Metrics Categories
//
//   - Route Metrics: requests and latency by final status
//   - Backend Metrics: attempts by outcome and dispatch latency per backend
//   - Breaker Metrics: transitions, plus state and failure gauges
//   - Bucket Metrics: token balance and capacity per backend
//   - Cache Metrics: lookups by result
//   - Audit Metrics: queue depth, synchronous fallback writes, write errors
//   - Cost Metrics: spend and tokens per backend, spend per caller
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//
//	breakers := breaker.NewSet(breaker.WithTransitionFunc(collector.BreakerTransition))
//	respCache := cache.New(store, ttl, cache.WithObserver(collector))
//	rec := recorder.NewRecorder(storage, recCfg, recorder.WithObserver(collector))
//	router := routing.New(reg,
//		routing.WithObserver(collector),
//		routing.WithAuditSink(collector.AuditSink(rec)),
//	)
//	_ = collector.WatchStatus(reg)
//
//	mux.Handle("/metrics", collector.Handler())
//
// # Scrape-time Gauges
//
// Breaker state, bucket balance and health are read from the registry on
// every scrape through WatchStatus rather than pushed on change, so an Open
// breaker whose cooldown has elapsed and a bucket that has refilled are
// reported accurately.
//
// # Cardinality Management
//
// Backend ids come from configuration and are bounded. Caller identities are
// not: at most 1000 distinct callers are labelled on cost metrics and the
// rest are aggregated into "other".
package metrics
