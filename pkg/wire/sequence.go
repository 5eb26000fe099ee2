package wire

import "fmt"

// SequenceGuard enforces strictly increasing sequence numbers within a
// session. Gaps are allowed: dropped captures still consume numbers.
// The zero value is ready to use.
type SequenceGuard struct {
	last uint32
	seen bool
}

// Check accepts seq if it is greater than every previously accepted number.
func (g *SequenceGuard) Check(seq uint32) error {
	if g.seen && seq <= g.last {
		return &ProtocolError{
			Op:  "sequence",
			Seq: seq,
			Err: fmt.Errorf("%w: %d after %d", ErrSequence, seq, g.last),
		}
	}
	g.last, g.seen = seq, true
	return nil
}

// Last returns the last accepted sequence number.
func (g *SequenceGuard) Last() (uint32, bool) {
	return g.last, g.seen
}
