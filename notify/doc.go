// Package notify is the messaging service: it routes each message to the
// first sender whose condition accepts it, wraps every sender in resilience
// and instrumentation, and owns the senders' resources.
//
// Senders are registered per channel. A registration is either a single
// sender or an ordered fallback chain:
//
//	svc, _ := notify.New(notify.WithLogger(logger))
//	_ = svc.Register(message.ChannelEmail, smtpReady, smtpSender, webhookSender)
//	_ = svc.Register(message.ChannelEmail, condition.Always[message.Message](), logSender)
//	defer svc.Close()
//
//	receipt, err := svc.Send(ctx, &message.Email{To: []string{"jane@example.com"}, Subject: "Hi", Text: "..."})
//
// Senders that hold resources (io.Closer or cleanup.Cleanable) are released
// in reverse registration order by Close. When a Service is dropped without
// Close, a runtime cleanup drains the same resources.
//
// FromConfig builds a Service from configuration keys:
//
//	mail.smtp.*      SMTP relay (needs mail.smtp.host)
//	email.webhook.*  email over an HTTP gateway (needs email.webhook.url)
//	sms.webhook.*    SMS over an HTTP gateway (needs sms.webhook.url)
//	notify.dev-mode  log sender as the last resort on every channel
//	notify.retry.*, notify.timeout, notify.breaker.*, notify.rate-limit.*
//	notify.dedup.*   receipt cache suppressing repeated sends
package notify
