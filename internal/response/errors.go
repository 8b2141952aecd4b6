package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Session lifecycle ─────────────────────────────────────────────
	ErrSessionNotFound  ErrCode = "SESSION_NOT_FOUND"
	ErrQuestionNotFound ErrCode = "QUESTION_NOT_FOUND"
	ErrSubmitInProgress ErrCode = "SUBMIT_IN_PROGRESS"
	ErrAlreadySubmitted ErrCode = "ALREADY_SUBMITTED"
	ErrResultNotReady   ErrCode = "RESULT_NOT_READY"

	// ─── Exam loading ──────────────────────────────────────────────────
	ErrNoRecognizedShape ErrCode = "NO_RECOGNIZED_SHAPE"
	ErrNoQuestions       ErrCode = "NO_QUESTIONS_FOUND"

	// ─── Scoring ───────────────────────────────────────────────────────
	ErrAnswerKeyUnavailable ErrCode = "ANSWER_KEY_UNAVAILABLE"

	// ─── Upstream ──────────────────────────────────────────────────────
	ErrUpstreamUnauthorized ErrCode = "UPSTREAM_UNAUTHORIZED"
	ErrUpstreamNotFound     ErrCode = "UPSTREAM_NOT_FOUND"
	ErrUpstreamError        ErrCode = "UPSTREAM_ERROR"
	ErrUpstreamUnreachable  ErrCode = "UPSTREAM_UNREACHABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is not valid."
	case ErrTokenExpired:
		return "Your session has expired. Please sign in again."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "The request payload is not valid."

	// ─── Session lifecycle ─────────────────────────────────────────────
	case ErrSessionNotFound:
		return "No active test session. Please start the test again."
	case ErrQuestionNotFound:
		return "That question does not exist in this test."
	case ErrSubmitInProgress:
		return "Your test is already being submitted."
	case ErrAlreadySubmitted:
		return "This test has already been submitted."
	case ErrResultNotReady:
		return "The result is not available yet."

	// ─── Exam loading ──────────────────────────────────────────────────
	case ErrNoRecognizedShape, ErrNoQuestions:
		return "The test could not be loaded. Please reload the page."

	// ─── Scoring ───────────────────────────────────────────────────────
	case ErrAnswerKeyUnavailable:
		return "The test could not be submitted right now. Please try again."

	// ─── Upstream ──────────────────────────────────────────────────────
	case ErrUpstreamUnauthorized:
		return "Your session with the content server expired. Please sign in again."
	case ErrUpstreamNotFound:
		return "The test was not found."
	case ErrUpstreamError:
		return "The content server reported an error. Please try again later."
	case ErrUpstreamUnreachable:
		return "Could not reach the content server. Please check your connection."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
