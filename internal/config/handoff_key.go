package config

import "fmt"

type HandoffKeyStruct struct{}

// HandoffKey builds the keys used by the result handoff store and the
// submission retry queue.
var HandoffKey = &HandoffKeyStruct{}

// ResultKey returns the handoff key for a computed exam result.
// The "<namespace>_<examID>" pattern is shared with the results view.
func (r *HandoffKeyStruct) ResultKey(namespace, examID string) string {
	return fmt.Sprintf("%s_%s", namespace, examID)
}

// RetryQueue returns the Redis list name holding submission payloads whose
// best-effort persistence POST failed.
func (r *HandoffKeyStruct) RetryQueue() string {
	return "submission_retry_queue"
}
