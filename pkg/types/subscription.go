package types

type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusCanceled  PaymentStatus = "canceled"
)

type PaymentProvider string

const (
	PaymentProviderStripe PaymentProvider = "stripe"
)

// SubscriptionSource records how a subscription record came to exist.
type SubscriptionSource string

const (
	SubscriptionSourceStripeCheckout SubscriptionSource = "stripe_checkout"
	SubscriptionSourceLegacyProfile  SubscriptionSource = "legacy_profile"
)

type HistoryType string

const (
	HistoryTypePurchase HistoryType = "purchase"
	HistoryTypeCancel   HistoryType = "cancel"
	HistoryTypeRefund   HistoryType = "refund"
	HistoryTypeExpire   HistoryType = "expire"
)

// AccessReason explains the outcome of an access check.
type AccessReason string

const (
	AccessReasonActive         AccessReason = "ACTIVE"
	AccessReasonNoSubscription AccessReason = "NO_SUBSCRIPTION"
	AccessReasonInactive       AccessReason = "INACTIVE"
	AccessReasonExpired        AccessReason = "EXPIRED"
	AccessReasonError          AccessReason = "ERROR"
)
