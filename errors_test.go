package rankingengine

import (
	"errors"
	"testing"
)

func TestWrapNilIsNil(t *testing.T) {
	if Wrap(KindInternal, "op", nil) != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	if KindOf(errors.New("plain")) != KindInternal {
		t.Error("plain error should default to KindInternal")
	}
}

func TestIsHelpers(t *testing.T) {
	err := Wrap(KindUnavailable, "search", errors.New("db down"))
	if !IsUnavailable(err) {
		t.Error("expected IsUnavailable")
	}
	if IsNotFound(err) {
		t.Error("did not expect IsNotFound")
	}
}

func TestErrorIsMatchesByKind(t *testing.T) {
	err := Wrap(KindNotFound, "products.get", errors.New("missing"))
	sentinel := &Error{Kind: KindNotFound}
	if !errors.Is(err, sentinel) {
		t.Error("expected errors.Is to match on Kind")
	}
}
