package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCameraUnavailable marks permission denials and missing camera devices.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrUnauthenticated marks dispatches refused because no session is signed in.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrActionFailed marks claim/collect calls rejected by the item service.
	ErrActionFailed = errors.New("action failed")
	// ErrConfiguration marks invalid or missing configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransient marks failures expected to clear on a later attempt.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
