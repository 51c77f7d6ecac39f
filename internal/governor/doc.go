// Package governor meters outbound Gmail API calls so a session never
// exceeds its configured call budget and consecutive calls stay spaced by
// the configured await period.
package governor
