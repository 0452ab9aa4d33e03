// Package codec implements the tagged attribute wire format used to move
// attribute maps across the boundary. Every attribute travels as
// {"key": k, "value": {"type": T, "content": C}}; an attribute map is a JSON
// object keyed by attribute key, and the batch form is a JSON array whose
// element 0 holds trace attributes and elements 1..N the per-event maps in
// order. The schema is the contract; JSON is just the reference syntax for
// it.
package codec
