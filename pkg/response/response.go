package response

type APIResponseCode int

const (
	APIResponseCodeOK           APIResponseCode = 0
	APIResponseCodeBadRequest   APIResponseCode = 40000
	APIResponseCodeUnauthorized APIResponseCode = 40100
	APIResponseCodeForbidden    APIResponseCode = 40300
	APIResponseCodeNotFound     APIResponseCode = 40400
	APIResponseCodeConflict     APIResponseCode = 40900
	APIResponseCodeRateLimited  APIResponseCode = 42900
	APIResponseCodeError        APIResponseCode = 50000
)

var codeToMsg = map[APIResponseCode]string{
	APIResponseCodeOK:           "ok",
	APIResponseCodeBadRequest:   "bad request",
	APIResponseCodeUnauthorized: "unauthorized",
	APIResponseCodeForbidden:    "forbidden",
	APIResponseCodeNotFound:     "not found",
	APIResponseCodeConflict:     "conflict",
	APIResponseCodeRateLimited:  "rate limited",
	APIResponseCodeError:        "unexpected error",
}

// APIResponse is the generic response envelope used by HTTP APIs.
// Use OKT / ErrorT helpers to construct instances.
type APIResponse[T any] struct {
	Code    APIResponseCode `json:"code"`
	Message string          `json:"message"`
	Data    T               `json:"data"`
}

// OKT returns a successful response with data.
func OKT[T any](data T) *APIResponse[T] {
	return &APIResponse[T]{Code: APIResponseCodeOK, Message: codeToMsg[APIResponseCodeOK], Data: data}
}

// ErrorT returns an error response with message and optional data.
func ErrorT[T any](code APIResponseCode, data T) *APIResponse[T] {
	return &APIResponse[T]{Code: code, Message: codeToMsg[code], Data: data}
}

// ErrorDetail is the data payload for failures that carry a machine-readable code.
type ErrorDetail struct {
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error"`
}

// ErrorCode returns an error envelope with a machine-readable error code.
func ErrorCode(code APIResponseCode, errorCode string, err error) *APIResponse[ErrorDetail] {
	detail := ErrorDetail{ErrorCode: errorCode}
	if err != nil {
		detail.Error = err.Error()
	}
	return ErrorT(code, detail)
}

// Unauthorized, Forbidden, BadRequest and RateLimited are the bare envelopes
// used by middleware that aborts before a handler runs.
func Unauthorized() *APIResponse[any] { return ErrorT[any](APIResponseCodeUnauthorized, nil) }

func Forbidden() *APIResponse[any] { return ErrorT[any](APIResponseCodeForbidden, nil) }

func BadRequest() *APIResponse[any] { return ErrorT[any](APIResponseCodeBadRequest, nil) }

func RateLimited() *APIResponse[any] { return ErrorT[any](APIResponseCodeRateLimited, nil) }
