package enums

import "fmt"

// NotificationKind discriminates queued notification job payloads.
type NotificationKind string

const (
	NotificationKindOrderConfirmation  NotificationKind = "order_confirmation"
	NotificationKindStatusUpdate       NotificationKind = "status_update"
	NotificationKindBulletin           NotificationKind = "bulletin"
	NotificationKindLowStock           NotificationKind = "low_stock"
	NotificationKindClientRegistration NotificationKind = "client_registration"
)

var validNotificationKinds = []NotificationKind{
	NotificationKindOrderConfirmation,
	NotificationKindStatusUpdate,
	NotificationKindBulletin,
	NotificationKindLowStock,
	NotificationKindClientRegistration,
}

// String implements fmt.Stringer.
func (n NotificationKind) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationKind.
func (n NotificationKind) IsValid() bool {
	for _, candidate := range validNotificationKinds {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationKind converts raw input into a NotificationKind.
func ParseNotificationKind(value string) (NotificationKind, error) {
	for _, candidate := range validNotificationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification kind %q", value)
}
