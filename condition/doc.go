// Package condition provides composable predicates used to decide which
// implementation is eligible to handle a subject.
//
// A Condition inspects a subject (usually a message) and, through injected
// collaborators, the ambient environment:
//
//   - And, Or, Not: boolean composition, short-circuiting in argument order.
//   - Always, Never: fixed answers.
//   - RequiredCapability: accepts when a CapabilityProbe reports a named
//     capability as present (for example an optional module linked into the
//     binary).
//   - RequiredConfig, RequiredConfigValue, RequiredConfigPattern: accept when
//     a configuration key is present, or present with a given value.
//   - Func: any custom predicate.
//
// Conditions never panic or fail when a capability or key is absent; they
// simply reject. Probes are passed in explicitly; there is no process-wide
// registry. Probe results are not cached unless the caller wraps a probe with
// Cached.
//
// # Usage
//
//	probe := condition.FirstOf(
//	    condition.NewCapabilities("smtp"),
//	    condition.BuildInfoProbe{},
//	)
//	smtpReady := condition.And[message.Message](
//	    condition.RequiredCapability[message.Message](probe, "github.com/wneessen/go-mail"),
//	    condition.RequiredConfig[message.Message](props, "mail.smtp.host"),
//	)
package condition
