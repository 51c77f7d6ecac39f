// Package cmd implements the command-line interface for gmailward.
//
// This package provides the following commands:
//   - auth: Run the OAuth consent flow and store the token
//   - fetch: Fetch and display messages matching a search query
//   - read: Display one message, optionally marking it read
//   - send: Compose and send a message, or store it as a draft
//   - labels: List, create, and delete labels
//   - empty-trash: Permanently delete every trashed message
//   - version: Display version information
//
// The fetch command is the default command when no subcommand is specified.
package cmd
