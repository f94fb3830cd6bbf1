package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jonwraymond/notifyops/condition"
)

func accepts(b bool) condition.Condition[string] {
	return condition.Fixed[string](b)
}

func TestSelector_FirstAcceptingWins(t *testing.T) {
	// For every accept mask over 4 entries exactly the lowest accepting
	// index is invoked.
	const n = 4
	for mask := 0; mask < 1<<n; mask++ {
		sel := NewSelector[string, string]()
		impls := make([]*stub, n)
		want := -1
		for i := 0; i < n; i++ {
			impls[i] = ok(fmt.Sprintf("impl%d", i))
			accept := mask&(1<<i) != 0
			if accept && want < 0 {
				want = i
			}
			sel.Register(accepts(accept), impls[i])
		}

		out, err := sel.Dispatch(context.Background(), "msg")
		if want < 0 {
			var nm *NoMatchingImplementationError
			if !errors.As(err, &nm) {
				t.Fatalf("mask=%b: err = %v, want NoMatchingImplementationError", mask, err)
			}
			if nm.Evaluated != n {
				t.Errorf("mask=%b: Evaluated = %d, want %d", mask, nm.Evaluated, n)
			}
		} else {
			if err != nil {
				t.Fatalf("mask=%b: err = %v", mask, err)
			}
			if wantOut := fmt.Sprintf("impl%d:msg", want); out != wantOut {
				t.Errorf("mask=%b: out = %q, want %q", mask, out, wantOut)
			}
		}

		for i, impl := range impls {
			wantCalls := 0
			if i == want {
				wantCalls = 1
			}
			if impl.calls != wantCalls {
				t.Errorf("mask=%b: impl%d calls = %d, want %d", mask, i, impl.calls, wantCalls)
			}
		}
	}
}

func TestSelector_StopsEvaluatingAfterMatch(t *testing.T) {
	evaluated := make([]bool, 3)
	cond := func(i int, answer bool) condition.Condition[string] {
		return condition.Func[string](func(string) bool {
			evaluated[i] = true
			return answer
		})
	}

	sel := NewSelector[string, string]().
		Register(cond(0, false), ok("a")).
		Register(cond(1, true), ok("b")).
		Register(cond(2, true), ok("c"))

	if _, err := sel.Dispatch(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	if !evaluated[0] || !evaluated[1] || evaluated[2] {
		t.Errorf("evaluated = %v, want [true true false]", evaluated)
	}
}

func TestSelector_ImplementationErrorUntouched(t *testing.T) {
	sel := NewSelector[string, string]().
		Register(accepts(true), failing("a", errBoom)).
		Register(accepts(true), ok("b"))

	_, err := sel.Dispatch(context.Background(), "x")
	if err != errBoom {
		t.Errorf("err = %v, want errBoom unwrapped", err)
	}
}

func TestSelector_NoMatch(t *testing.T) {
	sel := NewSelector[string, string](WithName("email")).
		Register(accepts(false), ok("a")).
		Register(accepts(false), ok("b"))

	_, err := sel.Dispatch(context.Background(), "x")
	if !errors.Is(err, ErrNoMatchingImplementation) {
		t.Fatalf("err = %v, want ErrNoMatchingImplementation", err)
	}
	if !strings.Contains(err.Error(), "2 evaluated") || !strings.Contains(err.Error(), "email") {
		t.Errorf("Error() = %q", err.Error())
	}

	empty := NewSelector[string, string]()
	_, err = empty.Dispatch(context.Background(), "x")
	var nm *NoMatchingImplementationError
	if !errors.As(err, &nm) || nm.Evaluated != 0 {
		t.Errorf("empty selector err = %v", err)
	}
}

func TestSelector_SelectDoesNotInvoke(t *testing.T) {
	a, b := ok("a"), ok("b")
	sel := NewSelector[string, string]().
		Register(condition.Func[string](func(s string) bool { return s == "a" }), a).
		Register(nil, b)

	impl, found := sel.Select("a")
	if !found || impl != a {
		t.Errorf("Select(a) = %v, %v; want a", impl, found)
	}
	impl, found = sel.Select("z")
	if !found || impl != b {
		t.Errorf("Select(z) = %v, %v; want b (nil condition accepts)", impl, found)
	}
	if a.calls != 0 || b.calls != 0 {
		t.Errorf("Select invoked implementations: a=%d b=%d", a.calls, b.calls)
	}
	if !sel.Supports("anything") {
		t.Error("Supports() = false, want true")
	}
}

func TestSelector_RegisterKeepsDuplicatesAndOrder(t *testing.T) {
	a := ok("a")
	sel := NewSelector[string, string]().
		Register(accepts(true), a).
		Register(accepts(true), a).
		Register(accepts(true), nil)

	if sel.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", sel.Len())
	}
	entries := sel.Entries()
	entries[0].Implementation = nil
	if sel.Entries()[0].Implementation == nil {
		t.Error("Entries() exposed internal slice")
	}
}

func TestSelector_IsAnOperation(t *testing.T) {
	inner := NewSelector[string, string](WithName("inner")).Register(accepts(true), ok("deep"))
	outer := NewSelector[string, string]().Register(accepts(true), inner)

	out, err := outer.Perform(context.Background(), "m")
	if err != nil || out != "deep:m" {
		t.Errorf("Perform() = %q, %v; want deep:m", out, err)
	}
	if NameOf(inner) != "inner" {
		t.Errorf("NameOf(inner) = %q", NameOf(inner))
	}
}
