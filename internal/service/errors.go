package service

import (
	"github.com/stemsi/exstem-papers/internal/response"
)

// Kind classifies domain errors. The HTTP layer maps each kind to a status.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindUnauthenticated
	KindAuthorization
	KindNotFound
	KindConflict
	KindScheduling
	KindConfiguration
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindScheduling:
		return "scheduling"
	case KindConfiguration:
		return "configuration"
	case KindTimeout:
		return "timeout"
	}
	return "unknown"
}

// Error is a domain error with a stable API code. Values below are
// sentinels: wrap them with fmt.Errorf("%w: ...") and match with errors.Is.
type Error struct {
	Kind Kind
	Code response.ErrCode
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newError(kind Kind, code response.ErrCode, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// Identity.
var (
	ErrIdentityRequired = newError(KindUnauthenticated, response.ErrTokenRequired, "caller identity is required")
	ErrRoleNotAllowed   = newError(KindAuthorization, response.ErrForbidden, "caller role is not allowed")
	ErrNotPaperOwner    = newError(KindAuthorization, response.ErrNotPaperOwner, "caller does not own the paper")
	ErrNotRecordOwner   = newError(KindAuthorization, response.ErrNotRecordOwner, "record belongs to another student")
	ErrNotExamOwner     = newError(KindAuthorization, response.ErrNotExamOwner, "caller does not own the exam")
)

// Lookups.
var (
	ErrExamNotFound       = newError(KindNotFound, response.ErrExamNotFound, "exam not found")
	ErrPaperNotFound      = newError(KindNotFound, response.ErrPaperNotFound, "paper not found")
	ErrQuestionNotFound   = newError(KindNotFound, response.ErrQuestionNotFound, "question not found")
	ErrQuestionNotInPaper = newError(KindNotFound, response.ErrQuestionNotFound, "question is not part of the paper")
	ErrRecordNotFound     = newError(KindNotFound, response.ErrRecordNotFound, "exam record not found")
)

// Paper composition.
var (
	ErrNoRules                = newError(KindValidation, response.ErrValidation, "at least one selection rule is required")
	ErrInvalidRule            = newError(KindValidation, response.ErrValidation, "selection rule is invalid")
	ErrInsufficientQuestions  = newError(KindValidation, response.ErrInsufficientQuestions, "not enough questions match the rule")
	ErrNoQuestionIDs          = newError(KindValidation, response.ErrValidation, "at least one question id is required")
	ErrDuplicateQuestionIDs   = newError(KindValidation, response.ErrValidation, "question ids must be unique")
	ErrInvalidOrder           = newError(KindValidation, response.ErrInvalidOrder, "order must be a permutation of the paper's questions")
	ErrEmptyPaper             = newError(KindValidation, response.ErrNoQuestions, "paper has no questions")
	ErrPaperNotDraft          = newError(KindConflict, response.ErrPaperNotDraft, "paper is not a draft")
	ErrPaperPublished         = newError(KindConflict, response.ErrPaperPublished, "published papers cannot be deleted")
	ErrPaperInUse             = newError(KindConflict, response.ErrConflict, "paper is referenced by exam records")
	ErrQuestionInPaper        = newError(KindConflict, response.ErrQuestionInPaper, "question is already in the paper")
	ErrExamHasPublishedPaper  = newError(KindConflict, response.ErrExamHasPublishedPaper, "exam already has a published paper")
	ErrMultiplePublishedPaper = newError(KindConfiguration, response.ErrAmbiguousPaper, "exam has more than one published paper")
)

// Sessions.
var (
	ErrExamNotAvailable  = newError(KindScheduling, response.ErrExamNotAvailable, "exam does not accept sessions")
	ErrExamNotOpen       = newError(KindScheduling, response.ErrExamNotOpen, "exam has not started")
	ErrExamClosed        = newError(KindScheduling, response.ErrExamClosed, "exam has ended")
	ErrNoPublishedPaper  = newError(KindConfiguration, response.ErrNoPublishedPaper, "exam has no published paper")
	ErrAlreadySubmitted  = newError(KindConflict, response.ErrAlreadySubmitted, "exam record is no longer ongoing")
	ErrSubmissionTimeout = newError(KindTimeout, response.ErrSubmissionTimeout, "submission arrived after the time allowance")
	ErrInvalidAnswer     = newError(KindValidation, response.ErrInvalidAnswer, "answer does not match the question type")
)
