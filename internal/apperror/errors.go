package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindFetch        Kind = "fetch"
	KindParse        Kind = "parse"
	KindModel        Kind = "model"
	KindInternal     Kind = "internal"
)

// InvalidInputError represents a rejected URL or unusable article text
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// FetchError represents a network, timeout or HTTP status failure while crawling
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: unexpected status code: %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError represents a page that yielded no article body
type ParseError struct {
	URL    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %s", e.URL, e.Reason)
}

// ModelError represents a model load or inference failure
type ModelError struct {
	Model string
	Op    string
	Err   error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model %s: %s: %v", e.Model, e.Op, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// Invalid is shorthand for an InvalidInputError
func Invalid(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}

// Model wraps err as a ModelError unless it already is one
func Model(model, op string, err error) error {
	if err == nil {
		return nil
	}
	var me *ModelError
	if errors.As(err, &me) {
		return err
	}
	return &ModelError{Model: model, Op: op, Err: err}
}

// KindOf returns the taxonomy kind of err
func KindOf(err error) Kind {
	var (
		invalid *InvalidInputError
		fetch   *FetchError
		parse   *ParseError
		model   *ModelError
	)
	switch {
	case errors.As(err, &invalid):
		return KindInvalidInput
	case errors.As(err, &fetch):
		return KindFetch
	case errors.As(err, &parse):
		return KindParse
	case errors.As(err, &model):
		return KindModel
	default:
		return KindInternal
	}
}

// HTTPStatus maps an error to the status code returned by the API
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindFetch:
		return http.StatusBadGateway
	case KindParse:
		return http.StatusUnprocessableEntity
	case KindModel:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the message shown in the UI for err
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindInvalidInput:
		var invalid *InvalidInputError
		errors.As(err, &invalid)
		return "입력이 올바르지 않습니다: " + invalid.Reason
	case KindFetch:
		return "기사를 가져오지 못했습니다. URL과 네트워크 상태를 확인해주세요."
	case KindParse:
		return "기사 본문을 추출할 수 없습니다."
	case KindModel:
		return "AI 모델 처리 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요."
	default:
		return "알 수 없는 오류가 발생했습니다."
	}
}
