package catalog

import "fmt"

// LoadError reports a catalog source that is missing or malformed. It is
// fatal at startup.
type LoadError struct {
	Source string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("loading catalog %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("loading catalog %s: %s", e.Source, e.Reason)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
