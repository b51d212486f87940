package notifications

import (
	"fmt"
	"html"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
)

// rendered is a subject/body pair ready to hand to the email client.
type rendered struct {
	Subject string
	HTML    string
}

// renderTemplate builds the email content for a notification kind. The
// data map carries kind-specific values; missing keys degrade to
// generic copy rather than failing the dispatch.
func renderTemplate(kind enums.NotificationKind, name string, data map[string]any) rendered {
	display := html.EscapeString(name)
	if display == "" {
		display = "there"
	}

	switch kind {
	case enums.NotificationKindWelcome:
		return rendered{
			Subject: "Welcome to FilmFusion",
			HTML: fmt.Sprintf("<p>Hi %s,</p><p>Your FilmFusion account is ready. Create your first project and let the AI handle the heavy lifting.</p>",
				display),
		}
	case enums.NotificationKindSubscriptionWelcome:
		return rendered{
			Subject: fmt.Sprintf("You're on the %s plan", str(data, "plan")),
			HTML: fmt.Sprintf("<p>Hi %s,</p><p>Your upgrade to the <strong>%s</strong> plan is active. Higher limits apply immediately.</p>",
				display, html.EscapeString(str(data, "plan"))),
		}
	case enums.NotificationKindSubscriptionCancelled:
		return rendered{
			Subject: "Your subscription is set to cancel",
			HTML: fmt.Sprintf("<p>Hi %s,</p><p>Your subscription will not renew. You keep full access until %s.</p>",
				display, html.EscapeString(str(data, "period_end"))),
		}
	case enums.NotificationKindSubscriptionEnded:
		return rendered{
			Subject: "Your subscription has ended",
			HTML: fmt.Sprintf("<p>Hi %s,</p><p>Your paid plan has ended and your account is back on the free tier. You can resubscribe any time.</p>",
				display),
		}
	case enums.NotificationKindPaymentReceipt:
		return rendered{
			Subject: "Payment received",
			HTML: fmt.Sprintf("<p>Hi %s,</p><p>We received your payment of <strong>%s</strong>. Thanks for being a FilmFusion subscriber.</p>",
				display, html.EscapeString(str(data, "amount"))),
		}
	case enums.NotificationKindPaymentFailed:
		body := fmt.Sprintf("<p>Hi %s,</p><p>Your latest payment of %s did not go through. Please update your payment method to keep your plan active.</p>",
			display, html.EscapeString(str(data, "amount")))
		if url := str(data, "invoice_url"); url != "" {
			body += fmt.Sprintf("<p><a href=%q>View and pay the invoice</a></p>", url)
		}
		return rendered{
			Subject: "Payment failed",
			HTML:    body,
		}
	case enums.NotificationKindTrialEnding:
		return rendered{
			Subject: "Your trial ends soon",
			HTML: fmt.Sprintf("<p>Hi %s,</p><p>Your trial ends on %s. Add a payment method to keep your current limits.</p>",
				display, html.EscapeString(str(data, "trial_end"))),
		}
	case enums.NotificationKindUpcomingInvoice:
		return rendered{
			Subject: "Upcoming invoice",
			HTML: fmt.Sprintf("<p>Hi %s,</p><p>Your next invoice of %s is scheduled for %s.</p>",
				display, html.EscapeString(str(data, "amount")), html.EscapeString(str(data, "due_date"))),
		}
	case enums.NotificationKindUsageWarning:
		return rendered{
			Subject: fmt.Sprintf("You've used %s%% of your %s", str(data, "percent"), str(data, "metric")),
			HTML: fmt.Sprintf("<p>Hi %s,</p><p>You have used %s of your %s allowance for this billing period (%s of %s). Upgrade your plan to raise the limit, or usage beyond it will be billed as overage.</p>",
				display,
				html.EscapeString(str(data, "percent"))+"%",
				html.EscapeString(str(data, "metric")),
				html.EscapeString(str(data, "used")),
				html.EscapeString(str(data, "limit"))),
		}
	case enums.NotificationKindRenderComplete:
		return rendered{
			Subject: "Your render is ready",
			HTML: fmt.Sprintf("<p>Hi %s,</p><p>Your video render for <strong>%s</strong> finished. <a href=%q>Download it here</a>.</p>",
				display, html.EscapeString(str(data, "project")), str(data, "output_url")),
		}
	case enums.NotificationKindRenderFailed:
		return rendered{
			Subject: "Your render failed",
			HTML: fmt.Sprintf("<p>Hi %s,</p><p>Your video render for <strong>%s</strong> failed: %s. No render minutes were charged for the failed portion.</p>",
				display, html.EscapeString(str(data, "project")), html.EscapeString(str(data, "reason"))),
		}
	default:
		return rendered{
			Subject: "FilmFusion update",
			HTML:    fmt.Sprintf("<p>Hi %s,</p><p>There is an update on your FilmFusion account.</p>", display),
		}
	}
}

func str(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	value, ok := data[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
