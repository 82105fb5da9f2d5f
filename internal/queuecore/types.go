package queuecore

// KeepJobs controls retention when finalizing a job. Count is a pointer so
// a nil-count-with-a-set-age combination is representable: nil means
// "retain forever, trim only by age"; 0 means delete the job outright.
type KeepJobs struct {
	Count *int64 `json:"count,omitempty"`
	Age   *int64 `json:"age,omitempty"` // seconds
}

// Limiter configures the token-bucket-like rate limit checked by the
// scheduler.
type Limiter struct {
	Max      int64 `json:"max"`
	Duration int64 `json:"duration"` // milliseconds
}

// Opts is the packed options argument callers pass to the two orchestrator
// procedures, resolved to JSON at the wire boundary.
type Opts struct {
	Token          string   `json:"token"`
	KeepJobs       KeepJobs `json:"keepJobs"`
	LockDuration   int64    `json:"lockDuration"` // milliseconds
	Attempts       int64    `json:"attempts"`
	MaxMetricsSize int64    `json:"maxMetricsSize"` // 0 disables metrics collection
	Limiter        *Limiter `json:"limiter,omitempty"`
}

// Meta is the queue-wide configuration hash every procedure reads to check
// paused/concurrency state and resolve defaults.
type Meta struct {
	Paused           bool  `json:"paused"`
	Concurrency      int64 `json:"concurrency"`
	MaxLenEvents     int64 `json:"opts.maxLenEvents"`
	FailParentOnFail bool  `json:"failParentOnFailure,omitempty"`
	IgnoreDepOnFail  bool  `json:"ignoreDependencyOnFailure,omitempty"`
}

// FinishArgs is the inputs contract of finish-active-job.
type FinishArgs struct {
	Prefix      string
	JobID       string
	Timestamp   int64
	ResultField string // "returnvalue" | "failedReason"
	ResultValue string
	Target      string // "completed" | "failed"
	FetchNext   bool
	Opts        Opts
}

// FinishResult is the outputs contract of finish-active-job. Err is nil on
// every non-error return, including the rate-limited and
// next-delayed-timestamp cases; those are signaled through the other
// fields instead of treated as failures.
type FinishResult struct {
	JobData       map[string]string
	JobID         string
	RateLimitTTL  int64
	NextDelayedTS int64
	Err           error
}

// RetryArgs is the inputs contract of retry-failed-job.
type RetryArgs struct {
	Prefix    string
	JobID     string
	Timestamp int64
	PushCmd   string // "LPUSH" | "RPUSH" for the priority==0 wait insertion
	Token     string
}
