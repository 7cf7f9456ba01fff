package visibility

import "errors"

// ErrLockout is returned by CheckChange when the requested mask would leave
// the record visible to elevated actors only and the acting actor is not one
// of them.
var ErrLockout = errors.New("change would hide the record from every non-elevated actor")

// Actor is the identity performing a redaction and the rights it holds.
type Actor struct {
	ID   int64
	Name string

	// CanViewDeleted lets the actor see fields hidden without Restricted.
	CanViewDeleted bool

	// CanSuppress is the elevated capability. It bypasses Restricted for both
	// viewing and changing bits.
	CanSuppress bool
}

// CanView reports whether actor may see field on a record whose current mask
// is mask.
func CanView(mask, field Bits, actor Actor) bool {
	if mask&field == 0 {
		return true
	}
	if mask.Has(Restricted) {
		return actor.CanSuppress
	}
	return actor.CanViewDeleted || actor.CanSuppress
}

// CheckChange validates a transition from old to new for actor.
//
// Elevated actors may make any change. Everyone else may not produce, modify
// or lift a Restricted mask: once Restricted is set, nobody without the
// capability can see or undo the hidden fields, the actor included.
func CheckChange(old, new Bits, actor Actor) error {
	if actor.CanSuppress || old == new {
		return nil
	}
	if (old|new)&Restricted != 0 {
		return ErrLockout
	}
	return nil
}
