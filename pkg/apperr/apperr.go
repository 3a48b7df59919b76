package apperr

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

const (
	MetaReason   = "reason"
	MetaStage    = "stage"
	MetaField    = "field"
	MetaRunID    = "run_id"
	MetaSelector = "selector"
	MetaURL      = "url"
	MetaStep     = "step"

	StageBrowser      = "browser"
	StageConfig       = "config"
	StageSession      = "session"
	StageResolution   = "resolution"
	StageNavigation   = "navigation"
	StagePageState    = "page_state"
	StageInteraction  = "interaction"
	StageDateSelector = "date_selector"

	CodeInternal            = "internal"
	CodeInvalidArgument     = "invalid_argument"
	CodeNotFound            = "not_found"
	CodeTimeout             = "timeout"
	CodeBrowserNotReady     = "browser_not_ready"
	CodeActionFailed        = "action_failed"
	CodeAmbiguous           = "resolution_ambiguous"
	CodeNotAuthenticated    = "not_authenticated"
	CodePostConditionFailed = "post_condition_failed"
)

type Error struct {
	Op       string
	Code     string
	Err      error
	Metadata map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return e.Op
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Wrap(op, code string, err error, metadata map[string]any) error {
	if metadata == nil {
		metadata = make(map[string]any)
	}

	return &Error{
		Op:       op,
		Code:     code,
		Err:      err,
		Metadata: metadata,
	}
}

func WrapErrorWithReason(op, code, reason string) error {
	return Wrap(op, code, errors.New(reason), map[string]any{
		MetaReason: reason,
	})
}

func InvalidReqError(op, field string, err error) error {
	return Wrap(op, CodeInvalidArgument, err, map[string]any{
		MetaField:  field,
		MetaReason: "invalid_request",
	})
}

// CodeOf returns the code of the outermost *Error in err's chain, or "".
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}

	return ""
}

// Fields flattens the code and metadata of every *Error in err's chain into
// zap fields. Outer values win over inner ones for the same key.
func Fields(err error) []zap.Field {
	seen := make(map[string]struct{})
	var fields []zap.Field

	add := func(key string, val any) {
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		fields = append(fields, zap.Any(key, val))
	}

	for err != nil {
		var appErr *Error
		if !errors.As(err, &appErr) {
			break
		}

		add("code", appErr.Code)
		keys := make([]string, 0, len(appErr.Metadata))
		for k := range appErr.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			add(k, appErr.Metadata[k])
		}

		err = appErr.Err
	}

	return fields
}
