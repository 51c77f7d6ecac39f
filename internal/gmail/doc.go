// Package gmail is a rate-governed Gmail session library.
//
// A Service wraps one mailbox behind a call governor: every remote call
// consumes budget, consecutive calls are spaced apart, and destructive
// mutations are checked against a set of protected labels before any
// network traffic happens. Message listings paginate lazily, envelopes
// are decoded into Message values with lazily fetched attachments, and
// filters combine server-side query terms with local criteria.
package gmail
