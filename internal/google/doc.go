// Package google handles OAuth2 authentication against the Google APIs.
// It loads client credentials from disk, persists and reuses a refreshable
// token, and hands out authorized HTTP clients for the Gmail transport.
package google
