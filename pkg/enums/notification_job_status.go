package enums

import "fmt"

// NotificationJobStatus tracks the lifecycle of a queued notification job.
type NotificationJobStatus string

const (
	NotificationJobStatusPending    NotificationJobStatus = "pending"
	NotificationJobStatusProcessing NotificationJobStatus = "processing"
	NotificationJobStatusCompleted  NotificationJobStatus = "completed"
	NotificationJobStatusFailed     NotificationJobStatus = "failed"
)

var validNotificationJobStatuses = []NotificationJobStatus{
	NotificationJobStatusPending,
	NotificationJobStatusProcessing,
	NotificationJobStatusCompleted,
	NotificationJobStatusFailed,
}

// String implements fmt.Stringer.
func (s NotificationJobStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known NotificationJobStatus.
func (s NotificationJobStatus) IsValid() bool {
	for _, candidate := range validNotificationJobStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further processing is expected.
func (s NotificationJobStatus) IsTerminal() bool {
	return s == NotificationJobStatusCompleted
}

// ParseNotificationJobStatus converts raw input into a NotificationJobStatus.
func ParseNotificationJobStatus(value string) (NotificationJobStatus, error) {
	for _, candidate := range validNotificationJobStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification job status %q", value)
}
