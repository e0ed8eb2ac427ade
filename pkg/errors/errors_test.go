package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeParse, "bad token at %d", 42)
	if err.Code != ErrCodeParse {
		t.Errorf("Code = %s", err.Code)
	}
	if !strings.Contains(err.Error(), "PARSE_ERROR") || !strings.Contains(err.Error(), "bad token at 42") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk gone")
	err := Wrap(ErrCodeIO, cause, "read %s", "input.hig")

	if !stderrors.Is(err, cause) {
		t.Error("wrapped cause lost")
	}
	if !strings.Contains(err.Error(), "disk gone") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestIs(t *testing.T) {
	err := New(ErrCodeDuplicateNode, "node 7")
	if !Is(err, ErrCodeDuplicateNode) {
		t.Error("Is(matching code) = false")
	}
	if Is(err, ErrCodeParse) {
		t.Error("Is(other code) = true")
	}
	if Is(stderrors.New("plain"), ErrCodeParse) {
		t.Error("Is(plain error) = true")
	}

	// With nested errors the outermost code wins.
	wrapped := Wrap(ErrCodeIO, New(ErrCodeParse, "inner"), "outer")
	if GetCode(wrapped) != ErrCodeIO {
		t.Errorf("GetCode = %s, want outermost code", GetCode(wrapped))
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(New(ErrCodeParse, "line 3 broken")); got != "line 3 broken" {
		t.Errorf("UserMessage = %q", got)
	}
	if got := UserMessage(stderrors.New("plain")); got != "plain" {
		t.Errorf("UserMessage(plain) = %q", got)
	}
}
