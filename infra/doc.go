// Package infra holds the adapters behind the core interfaces: the snapshot
// directory, MQTT commit transport and location feed, metrics sinks, Redis
// and error reporting.
package infra
