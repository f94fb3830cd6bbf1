// Package health reports whether notification transports are reachable.
//
// A Checker reports a Result with a Status of Healthy, Degraded or
// Unhealthy. Transports that can probe their backend implement Pinger;
// PingCheck turns one into a Checker. An Aggregator runs many checkers
// concurrently under a shared deadline and folds their results into one
// overall status.
//
//	agg := health.NewAggregator()
//	agg.Register(health.PingCheck("email.smtp", smtpSender))
//	agg.Register(health.PingCheck("sms.webhook", smsGateway))
//
//	results := agg.CheckAll(ctx)
//	overall := health.OverallStatus(results)
//
// DetailedHandler and ReadinessHandler expose an aggregator over HTTP.
package health
