package docs

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingDependency = errors.New("pipeline dependency is required")

	// ErrInvalidDocument indicates required document fields were absent.
	ErrInvalidDocument = errors.New("docs: repository id, file path and content are required")
	// ErrNoCandidates indicates the repository root has no documentable files.
	ErrNoCandidates = errors.New("docs: no documentable files")
	// ErrMissingAccessToken indicates the session carried no provider token.
	ErrMissingAccessToken = errors.New("docs: provider access token is required")

	noOpLogger = zap.NewNop()
)

// ServiceError carries a dotted error code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

func logError(logger *zap.Logger, operation, reason string, err error, fields ...zap.Field) {
	if logger == nil {
		logger = noOpLogger
	}
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	logger.Error("docs service error", attrs...)
}
