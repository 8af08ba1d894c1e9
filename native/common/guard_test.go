package common

import (
	"errors"
	"testing"
)

type pauseMap map[string]bool

func (p pauseMap) IsPaused(module string) bool { return p[module] }

func TestGuard(t *testing.T) {
	if err := Guard(nil, "ispo"); err != nil {
		t.Fatalf("nil view should not guard: %v", err)
	}
	if err := Guard(pauseMap{"ispo": false}, "ispo"); err != nil {
		t.Fatalf("unpaused module rejected: %v", err)
	}
	if err := Guard(pauseMap{"ispo": true}, "ispo"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := Guard(pauseMap{"ispo": true}, ""); err != nil {
		t.Fatalf("empty module name should bypass guard: %v", err)
	}
}
