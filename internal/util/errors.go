package util

import "errors"

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrPathNotFound     = errors.New("learning path not found")
	ErrItemNotFound     = errors.New("item not found")
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrSourceNotFound   = errors.New("no archived source for this path")
	ErrPathNotPublic    = errors.New("learning path is not public")
	ErrUnknownFeature   = errors.New("unknown usage feature")
	ErrEmptyQuiz        = errors.New("quiz has no questions")
	ErrInvalidQuestion  = errors.New("invalid quiz question")
	ErrEmptyPath        = errors.New("generated path has no title")
	ErrEmptySource      = errors.New("source text is empty")
	ErrEmptyQuestion    = errors.New("question is empty")
	ErrNotTopicItem     = errors.New("progress is tracked on topic items only")
)
