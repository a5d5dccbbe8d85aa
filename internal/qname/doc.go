// Package qname parses and validates the qualified names that identify
// registered specs, e.g. "demo/port" or "app.billing/invoice".
package qname
