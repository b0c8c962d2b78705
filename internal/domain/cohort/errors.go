package cohort

import "fmt"

// ResolutionError reports that the cohort definition for a trigger name could
// not be resolved or evaluated.
type ResolutionError struct {
	Trigger string
	Err     error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve cohort for trigger %q: %v", e.Trigger, e.Err)
	}
	return fmt.Sprintf("no cohort query matches trigger %q", e.Trigger)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// AmbiguousTriggerError reports that more than one active, non-retired cohort
// definition matches a trigger name.
type AmbiguousTriggerError struct {
	Trigger string
	Count   int
}

func (e *AmbiguousTriggerError) Error() string {
	return fmt.Sprintf("%d cohort queries match trigger %q, expected exactly one", e.Count, e.Trigger)
}
