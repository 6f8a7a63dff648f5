package iam

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// Provider error classes. Every Client method wraps SDK failures so callers
// can test with errors.Is while the original API error stays in the chain.
var (
	ErrAccessDenied   = errors.New("access denied")
	ErrNotFound       = errors.New("no such entity")
	ErrAlreadyExists  = errors.New("entity already exists")
	ErrLimitExceeded  = errors.New("limit exceeded")
	ErrDeleteConflict = errors.New("delete conflict")
)

func classify(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return nil
	}
	switch apiErr.ErrorCode() {
	case "NoSuchEntity":
		return ErrNotFound
	case "EntityAlreadyExists":
		return ErrAlreadyExists
	case "LimitExceeded":
		return ErrLimitExceeded
	case "DeleteConflict":
		return ErrDeleteConflict
	case "AccessDenied", "AccessDeniedException", "UnauthorizedOperation",
		"InvalidClientTokenId", "ExpiredToken", "SignatureDoesNotMatch":
		return ErrAccessDenied
	}
	return nil
}

func wrap(op string, err error) error {
	if class := classify(err); class != nil {
		return fmt.Errorf("%s: %w: %w", op, class, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
