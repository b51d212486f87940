package enums

import "fmt"

// NotificationKind names an outbound email template.
type NotificationKind string

const (
	NotificationKindWelcome               NotificationKind = "welcome"
	NotificationKindSubscriptionWelcome   NotificationKind = "subscription_welcome"
	NotificationKindSubscriptionCancelled NotificationKind = "subscription_cancelled"
	NotificationKindSubscriptionEnded     NotificationKind = "subscription_ended"
	NotificationKindPaymentReceipt        NotificationKind = "payment_receipt"
	NotificationKindPaymentFailed         NotificationKind = "payment_failed"
	NotificationKindTrialEnding           NotificationKind = "trial_ending"
	NotificationKindUpcomingInvoice       NotificationKind = "upcoming_invoice"
	NotificationKindUsageWarning          NotificationKind = "usage_warning"
	NotificationKindRenderComplete        NotificationKind = "render_complete"
	NotificationKindRenderFailed          NotificationKind = "render_failed"
)

var validNotificationKinds = []NotificationKind{
	NotificationKindWelcome,
	NotificationKindSubscriptionWelcome,
	NotificationKindSubscriptionCancelled,
	NotificationKindSubscriptionEnded,
	NotificationKindPaymentReceipt,
	NotificationKindPaymentFailed,
	NotificationKindTrialEnding,
	NotificationKindUpcomingInvoice,
	NotificationKindUsageWarning,
	NotificationKindRenderComplete,
	NotificationKindRenderFailed,
}

// String implements fmt.Stringer.
func (k NotificationKind) String() string {
	return string(k)
}

// IsValid reports whether the value is known.
func (k NotificationKind) IsValid() bool {
	for _, candidate := range validNotificationKinds {
		if candidate == k {
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

// NotificationStatus records the outcome of a dispatch attempt.
type NotificationStatus string

const (
	NotificationStatusSent   NotificationStatus = "sent"
	NotificationStatusFailed NotificationStatus = "failed"
)

// String implements fmt.Stringer.
func (s NotificationStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s NotificationStatus) IsValid() bool {
	return s == NotificationStatusSent || s == NotificationStatusFailed
}
