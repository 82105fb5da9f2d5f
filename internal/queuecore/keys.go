package queuecore

import "fmt"

// Keys derives every store key a procedure touches from a single queue
// prefix, following a "prefix:id" / "prefix:id:suffix" colon-namespacing
// convention throughout.
type Keys struct {
	Prefix string
}

// NewKeys returns a Keys deriving every queue-scoped key from prefix.
func NewKeys(prefix string) Keys { return Keys{Prefix: prefix} }

func (k Keys) JobHash(jobID string) string      { return fmt.Sprintf("%s:%s", k.Prefix, jobID) }
func (k Keys) JobLock(jobID string) string      { return fmt.Sprintf("%s:%s:lock", k.Prefix, jobID) }
func (k Keys) JobLogs(jobID string) string      { return fmt.Sprintf("%s:%s:logs", k.Prefix, jobID) }
func (k Keys) Dependencies(jobID string) string { return fmt.Sprintf("%s:%s:dependencies", k.Prefix, jobID) }
func (k Keys) Processed(jobID string) string    { return fmt.Sprintf("%s:%s:processed", k.Prefix, jobID) }
func (k Keys) Results(jobID string) string      { return fmt.Sprintf("%s:%s:results", k.Prefix, jobID) }
func (k Keys) Debounce(deid string) string      { return fmt.Sprintf("%s:de:%s", k.Prefix, deid) }

func (k Keys) Wait() string            { return k.Prefix + ":wait" }
func (k Keys) Active() string          { return k.Prefix + ":active" }
func (k Keys) Prioritized() string     { return k.Prefix + ":prioritized" }
func (k Keys) PriorityCounter() string { return k.Prefix + ":pc" }
func (k Keys) Delayed() string         { return k.Prefix + ":delayed" }
func (k Keys) Completed() string       { return k.Prefix + ":completed" }
func (k Keys) Failed() string          { return k.Prefix + ":failed" }
func (k Keys) Stalled() string         { return k.Prefix + ":stalled" }
func (k Keys) Meta() string            { return k.Prefix + ":meta" }
func (k Keys) Events() string          { return k.Prefix + ":events" }
func (k Keys) Marker() string          { return k.Prefix + ":marker" }
func (k Keys) Limiter() string         { return k.Prefix + ":limiter" }

func (k Keys) MetricsHash(kind string) string { return fmt.Sprintf("%s:metrics:%s", k.Prefix, kind) }
func (k Keys) MetricsData(kind string) string { return fmt.Sprintf("%s:metrics:%s:data", k.Prefix, kind) }

// TargetSet returns the completed or failed set key for target, which must
// be one of "completed" or "failed".
func (k Keys) TargetSet(target string) string {
	switch target {
	case "completed":
		return k.Completed()
	case "failed":
		return k.Failed()
	default:
		return fmt.Sprintf("%s:%s", k.Prefix, target)
	}
}
