package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestWrapKeepsInnerCode(t *testing.T) {
	base := StorageError("save matrix", fs.ErrPermission)
	wrapped := Wrap(fmt.Errorf("repetition 0: %w", base), "sweep failed")

	if got := GetCode(wrapped); got != CodeStorageError {
		t.Errorf("Expected code %s, got %s", CodeStorageError, got)
	}
	if !stderrors.Is(wrapped, fs.ErrPermission) {
		t.Error("Expected wrapped error to match fs.ErrPermission")
	}
	if !IsAppError(wrapped) {
		t.Error("Expected IsAppError to be true")
	}
}

func TestWrapPlainError(t *testing.T) {
	wrapped := Wrapf(stderrors.New("boom"), "step %d", 3)
	if got := GetCode(wrapped); got != CodeInternalError {
		t.Errorf("Expected code %s, got %s", CodeInternalError, got)
	}
	if wrapped.Error() != "step 3: boom" {
		t.Errorf("Unexpected message %q", wrapped.Error())
	}
	if Wrap(nil, "nothing") != nil {
		t.Error("Expected Wrap(nil) to be nil")
	}
}

func TestGetCodeUnknown(t *testing.T) {
	if got := GetCode(stderrors.New("plain")); got != "UNKNOWN" {
		t.Errorf("Expected UNKNOWN, got %s", got)
	}
	if got := GetCode(WithCode(CodeSimulationError, stderrors.New("x"))); got != CodeSimulationError {
		t.Errorf("Expected %s, got %s", CodeSimulationError, got)
	}
}
