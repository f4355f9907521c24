// Package metrics aggregates request latency and status data for a load run.
//
// The central [Collector] type is shared by every virtual user:
//
//	collector := metrics.NewCollector()
//	collector.Start()
//
//	collector.RecordRequest(latency, resp.StatusCode, err)
//
//	stats := collector.Stats(elapsed)
//
// Latencies are kept in an HdrHistogram covering 1µs to 60s with three
// significant figures, so percentiles stay accurate without storing samples.
//
// A request counts as failed when it produced a transport error or a status
// code of 400 or above. Status codes are bucketed in [Stats.StatusCodes] and
// transport errors are grouped by [FriendlyErrorName] in [Stats.Errors].
//
// # Time-Series Data
//
// Call [Collector.Snapshot] periodically (the progress reporter does this once
// per tick) to build the history rendered by the HTML report:
//
//	collector.Snapshot()
//	history := collector.History()
package metrics
