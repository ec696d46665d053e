package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden ErrCode = "FORBIDDEN"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam / attempt ────────────────────────────────────────────────
	ErrExamNotAvailable    ErrCode = "EXAM_NOT_AVAILABLE"
	ErrAttemptNotFound     ErrCode = "ATTEMPT_NOT_FOUND"
	ErrAttemptCompleted    ErrCode = "ATTEMPT_COMPLETED"
	ErrAnswersLocked       ErrCode = "ANSWERS_LOCKED"
	ErrAnswerShapeMismatch ErrCode = "ANSWER_SHAPE_MISMATCH"
	ErrUnsupportedQuestion ErrCode = "UNSUPPORTED_QUESTION_TYPE"
	ErrPlaybackExhausted   ErrCode = "PLAYBACK_EXHAUSTED"
	ErrSubmitInFlight      ErrCode = "SUBMIT_IN_FLIGHT"
	ErrSubmitFailed        ErrCode = "SUBMIT_FAILED"
	ErrReviewNotAllowed    ErrCode = "REVIEW_NOT_ALLOWED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have access to this resource."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Exam / attempt ────────────────────────────────────────────────
	case ErrExamNotAvailable:
		return "This exam is not currently available."
	case ErrAttemptNotFound:
		return "No active attempt found for this exam."
	case ErrAttemptCompleted:
		return "This attempt has already been submitted."
	case ErrAnswersLocked:
		return "Answers can no longer be changed in this phase."
	case ErrAnswerShapeMismatch:
		return "The answer does not match this question type."
	case ErrUnsupportedQuestion:
		return "This question type is not supported."
	case ErrPlaybackExhausted:
		return "The audio for this section has no plays remaining."
	case ErrSubmitInFlight:
		return "A submission is already in progress."
	case ErrSubmitFailed:
		return "Submission failed. Your answers are saved; please retry."
	case ErrReviewNotAllowed:
		return "Review is only available during an exam in progress."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
