package artifact

import (
	"errors"
	"fmt"
)

// ErrorCode classifies staging failures.
type ErrorCode string

const (
	ErrCodeInvalidSource  ErrorCode = "InvalidSource"
	ErrCodeBuildFailed    ErrorCode = "BuildFailed"
	ErrCodePackFailed     ErrorCode = "PackFailed"
	ErrCodeTargetsFailed  ErrorCode = "TargetsFailed"
	ErrCodeUploadFailed   ErrorCode = "UploadFailed"
	ErrCodeDownloadFailed ErrorCode = "DownloadFailed"
	ErrCodeExtractFailed  ErrorCode = "ExtractFailed"
)

// StagingError reports a failure moving code between a local directory and
// the artifact store. Staging errors abort an invocation before dispatch.
type StagingError struct {
	Code ErrorCode
	Src  string
	Hook string
	// Stdout and Stderr hold the hook output for BuildFailed.
	Stdout string
	Stderr string
	Err    error
}

func (e *StagingError) Error() string {
	switch e.Code {
	case ErrCodeInvalidSource:
		return `Invalid "inputs.src".  Value must be a string or object.`
	case ErrCodeBuildFailed:
		msg := fmt.Sprintf("Failed building website via %q due to the following error: %q", e.Hook, e.Stderr)
		if e.Stdout != "" {
			msg += "\n" + e.Stdout
		}
		return msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Code, e.Src, e.Err)
	}
	return fmt.Sprintf("%s %s", e.Code, e.Src)
}

func (e *StagingError) Unwrap() error {
	return e.Err
}

// ErrorName returns the wire error name.
func (e *StagingError) ErrorName() string {
	return "StagingError"
}

// ErrorCode returns the failure code.
func (e *StagingError) ErrorCode() string {
	return string(e.Code)
}

// IsStagingError reports whether err is a StagingError with the given code.
// An empty code matches any StagingError.
func IsStagingError(err error, code ErrorCode) bool {
	var se *StagingError
	if !errors.As(err, &se) {
		return false
	}
	return code == "" || se.Code == code
}
