// Package config supplies the configuration sources consulted by conditions
// and transports.
//
// Properties is backed by koanf and loads YAML or JSON from a file or from
// bytes. Env reads environment variables, mapping dotted keys such as
// "mail.smtp.host" to MAIL_SMTP_HOST. Layered searches several sources in
// order. All three implement condition.ConfigSource.
//
// String values may reference secrets as secretref:<provider>:<ref>.
// A SecretResolver resolves them through registered SecretProviders, which
// are released when the resolver is closed.
package config
