// Package metrics exposes Prometheus counters and histograms for link
// issuance, validation outcomes, rate limit rejections and nonce store
// latency. It serves them from a private registry at /metrics.
package metrics
