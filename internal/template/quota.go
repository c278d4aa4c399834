package template

// DefaultMaxPasses bounds resolution passes when WithMaxPasses is not given.
const DefaultMaxPasses = 100

// passQuota counts resolution passes against a limit.
//
// Cycle detection catches loops; the quota catches anything else that fails
// to converge, so Resolve always terminates.
type passQuota struct {
	max     int
	current int
}

func newPassQuota(max int) *passQuota {
	return &passQuota{max: max}
}

// Check counts one pass and fails once the limit is passed.
func (q *passQuota) Check() error {
	q.current++
	if q.current > q.max {
		return &ReferenceError{
			Code:   ErrCodePassesExceeded,
			Passes: q.current,
			Limit:  q.max,
		}
	}
	return nil
}

// Current returns the number of passes counted.
func (q *passQuota) Current() int {
	return q.current
}
