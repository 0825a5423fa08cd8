package payment

import "errors"

var (
	ErrMissingParams     = errors.New("missing required parameters")
	ErrInvalidPlan       = errors.New("invalid plan id")
	ErrInvalidSession    = errors.New("invalid checkout session")
	ErrPaymentIncomplete = errors.New("payment not completed")
	ErrAmountMismatch    = errors.New("payment amount verification failed")
	ErrAlreadyProcessed  = errors.New("payment session already processed")
)

const (
	CodeMissingParams     = "MISSING_PARAMS"
	CodeInvalidPlan       = "INVALID_PLAN"
	CodeInvalidSession    = "INVALID_SESSION"
	CodePaymentIncomplete = "PAYMENT_INCOMPLETE"
	CodeAmountMismatch    = "AMOUNT_MISMATCH"
	CodeAlreadyProcessed  = "ALREADY_PROCESSED"
	CodeInternal          = "INTERNAL"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrMissingParams, CodeMissingParams},
	{ErrInvalidPlan, CodeInvalidPlan},
	{ErrInvalidSession, CodeInvalidSession},
	{ErrPaymentIncomplete, CodePaymentIncomplete},
	{ErrAmountMismatch, CodeAmountMismatch},
	{ErrAlreadyProcessed, CodeAlreadyProcessed},
}

// ErrorCode maps a verification error to its machine readable code. Nil maps to "".
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}
