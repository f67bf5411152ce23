package errs

import "testing"

func TestRetryableKinds(t *testing.T) {
	retryable := []Kind{Transport, Throttled, ServerError}
	for _, k := range retryable {
		if !k.Retryable() {
			t.Errorf("%s should be retryable", k)
		}
	}
	fatal := []Kind{AuthRejected, OrderRejected, InsufficientBalance, InvalidSymbol, Validation, PolicyViolation, NotFound}
	for _, k := range fatal {
		if k.Retryable() {
			t.Errorf("%s should not be retryable", k)
		}
	}
}

func TestFromVenueCodeMapping(t *testing.T) {
	cases := []struct {
		code, status int
		want         Kind
	}{
		{-1003, 418, Throttled},
		{-1015, 418, Throttled},
		{0, 429, Throttled},
		{-2019, 400, InsufficientBalance},
		{-1121, 400, InvalidSymbol},
		{-1022, 401, AuthRejected},
		{-2014, 401, AuthRejected},
		{-2015, 401, AuthRejected},
		{0, 500, ServerError},
		{0, 408, Transport},
		{-1007, 408, Transport},
	}
	for _, c := range cases {
		got := FromVenueCode(c.code, c.status, "msg")
		if got.Kind != c.want {
			t.Errorf("FromVenueCode(%d, %d) = %s, want %s", c.code, c.status, got.Kind, c.want)
		}
	}
}

func TestPolicyViolationMessage(t *testing.T) {
	err := NewPolicyViolation("updates_forbidden")
	if err.Error() != "PolicyViolation: updates_forbidden" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestAsHelper(t *testing.T) {
	err := NewValidation("qty", "insufficient_for_step")
	if !As(err, Validation) {
		t.Error("expected As to match Validation kind")
	}
	if As(err, PolicyViolation) {
		t.Error("expected As to not match PolicyViolation kind")
	}
}
