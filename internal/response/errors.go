package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrTeacherAccessOnly ErrCode = "TEACHER_ACCESS_ONLY"
	ErrNotPaperOwner     ErrCode = "NOT_PAPER_OWNER"
	ErrNotRecordOwner    ErrCode = "NOT_RECORD_OWNER"
	ErrNotExamOwner      ErrCode = "NOT_EXAM_OWNER"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation            ErrCode = "VALIDATION_ERROR"
	ErrInvalidID             ErrCode = "INVALID_ID"
	ErrInvalidPayload        ErrCode = "INVALID_PAYLOAD"
	ErrInvalidAnswer         ErrCode = "INVALID_ANSWER"
	ErrNoQuestions           ErrCode = "NO_QUESTIONS"
	ErrInsufficientQuestions ErrCode = "INSUFFICIENT_QUESTIONS"
	ErrInvalidOrder          ErrCode = "INVALID_ORDER"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrExamNotFound     ErrCode = "EXAM_NOT_FOUND"
	ErrPaperNotFound    ErrCode = "PAPER_NOT_FOUND"
	ErrQuestionNotFound ErrCode = "QUESTION_NOT_FOUND"
	ErrRecordNotFound   ErrCode = "RECORD_NOT_FOUND"
	ErrConflict         ErrCode = "CONFLICT"

	// ─── Paper-specific ────────────────────────────────────────────────
	ErrPaperNotDraft         ErrCode = "PAPER_NOT_DRAFT"
	ErrPaperPublished        ErrCode = "PAPER_PUBLISHED"
	ErrQuestionInPaper       ErrCode = "QUESTION_ALREADY_IN_PAPER"
	ErrExamHasPublishedPaper ErrCode = "EXAM_HAS_PUBLISHED_PAPER"

	// ─── Exam-specific ─────────────────────────────────────────────────
	ErrExamNotAvailable  ErrCode = "EXAM_NOT_AVAILABLE"
	ErrExamNotOpen       ErrCode = "EXAM_NOT_OPEN"
	ErrExamClosed        ErrCode = "EXAM_CLOSED"
	ErrNoPublishedPaper  ErrCode = "NO_PUBLISHED_PAPER"
	ErrAmbiguousPaper    ErrCode = "AMBIGUOUS_PUBLISHED_PAPER"
	ErrAlreadySubmitted  ErrCode = "ALREADY_SUBMITTED"
	ErrSubmissionTimeout ErrCode = "SUBMISSION_TIMEOUT"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

var messages = map[ErrCode]string{
	ErrTokenRequired: "Authentication token is required.",
	ErrTokenInvalid:  "Authentication token is invalid or expired.",

	ErrForbidden:         "You are not allowed to access this resource.",
	ErrStudentAccessOnly: "This resource is restricted to students.",
	ErrTeacherAccessOnly: "This resource is restricted to teachers.",
	ErrNotPaperOwner:     "Only the paper owner may change it.",
	ErrNotRecordOwner:    "This exam record belongs to another student.",
	ErrNotExamOwner:      "Only the exam owner may monitor it.",

	ErrValidation:            "Validation failed. Please check your input.",
	ErrInvalidID:             "Invalid ID format.",
	ErrInvalidPayload:        "Invalid request payload.",
	ErrInvalidAnswer:         "One or more answers do not match the question type.",
	ErrNoQuestions:           "The paper has no questions.",
	ErrInsufficientQuestions: "The question bank does not hold enough questions for a rule.",
	ErrInvalidOrder:          "The order must list every question of the paper exactly once.",

	ErrNotFound:         "Resource not found.",
	ErrExamNotFound:     "Exam not found.",
	ErrPaperNotFound:    "Paper not found.",
	ErrQuestionNotFound: "Question not found.",
	ErrRecordNotFound:   "Exam record not found.",
	ErrConflict:         "The resource was changed concurrently.",

	ErrPaperNotDraft:         "Only DRAFT papers can be edited.",
	ErrPaperPublished:        "Published papers cannot be deleted.",
	ErrQuestionInPaper:       "The question is already part of this paper.",
	ErrExamHasPublishedPaper: "The exam already has a published paper.",

	ErrExamNotAvailable:  "This exam is not available.",
	ErrExamNotOpen:       "This exam has not started yet.",
	ErrExamClosed:        "This exam has already ended.",
	ErrNoPublishedPaper:  "This exam has no published paper.",
	ErrAmbiguousPaper:    "This exam has more than one published paper.",
	ErrAlreadySubmitted:  "This exam has already been submitted.",
	ErrSubmissionTimeout: "Time is up. The exam can no longer be submitted.",

	ErrRateLimitExceeded: "Too many requests. Please try again later.",

	ErrInternal: "Internal server error.",
}

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return "An unexpected error occurred."
}
