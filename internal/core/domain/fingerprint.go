package domain

// Fingerprint is the deterministic content-derived key identifying a task's
// exact inputs, command and upstream state. Two runs with the same
// fingerprint produce the same observable output by construction, which is
// the invariant the cache relies on.
type Fingerprint string

// String returns the hex digest.
func (f Fingerprint) String() string {
	return string(f)
}
