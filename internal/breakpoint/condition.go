// Breakpoint conditions: raw expression text, stored as given.
package breakpoint

// Condition is either absent or a raw expression. It is never parsed here;
// a syntactically broken expression is kept verbatim and only matters when
// it is evaluated at a hit.
type Condition struct {
	text  string
	valid bool
}

// NoCondition returns the absent condition (always stop).
func NoCondition() Condition {
	return Condition{}
}

// When returns a condition holding expr exactly as typed.
func When(expr string) Condition {
	return Condition{text: expr, valid: true}
}

// Text returns the expression and whether one is set.
func (c Condition) Text() (string, bool) {
	return c.text, c.valid
}

// IsSet reports whether the condition gates the breakpoint.
func (c Condition) IsSet() bool {
	return c.valid
}

func (c Condition) String() string {
	if !c.valid {
		return "<none>"
	}
	return c.text
}
