package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jonwraymond/notifyops/failure"
	"github.com/jonwraymond/notifyops/observe"
)

var (
	errInvalidArgument = errors.New("invalid argument")
	errDelivery        = errors.New("delivery failed")
)

func TestFallback_FirstFailsOnceThenSucceeds(t *testing.T) {
	a := &stub{name: "a", results: []error{errBoom, nil}}
	b := ok("b")
	fb := FallbackOf[string, string](a, b)

	for i := 0; i < 2; i++ {
		if _, err := fb.Perform(context.Background(), "m"); err != nil {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
	if a.calls != 2 {
		t.Errorf("a calls = %d, want 2", a.calls)
	}
	if b.calls != 1 {
		t.Errorf("b calls = %d, want 1", b.calls)
	}
}

func TestFallback_AllFailAggregatesInOrder(t *testing.T) {
	a := failing("a", errInvalidArgument)
	b := failing("b", errDelivery)
	fb := FallbackOf[string, string](a, b)

	_, err := fb.Perform(context.Background(), "m")

	var agg *failure.Aggregate
	if !errors.As(err, &agg) {
		t.Fatalf("err = %T, want *failure.Aggregate", err)
	}
	causes := agg.Causes()
	if len(causes) != 2 {
		t.Fatalf("causes = %d, want 2", len(causes))
	}

	wants := []struct {
		name string
		err  error
	}{{"a", errInvalidArgument}, {"b", errDelivery}}
	for i, w := range wants {
		var single *failure.Single
		if !errors.As(causes[i], &single) {
			t.Fatalf("cause %d = %T, want *failure.Single", i, causes[i])
		}
		if single.Candidate != w.name || single.Index != i || single.Cause != w.err {
			t.Errorf("cause %d = %+v, want %s/%d/%v", i, single, w.name, i, w.err)
		}
	}
	if !errors.Is(err, errInvalidArgument) || !errors.Is(err, errDelivery) {
		t.Error("aggregate does not unwrap to both causes")
	}
}

func TestFallback_SameErrorNotDeduplicated(t *testing.T) {
	fb := FallbackOf[string, string](failing("a", errBoom), failing("b", errBoom), failing("c", errBoom))
	_, err := fb.Perform(context.Background(), "m")
	if got := len(failure.Causes(err)); got != 3 {
		t.Errorf("causes = %d, want 3", got)
	}
}

func TestFallback_SequentialAndStopsAtSuccess(t *testing.T) {
	var order []string
	op := func(name string, err error) Operation[string, string] {
		return Named[string, string](name, OperationFunc[string, string](func(context.Context, string) (string, error) {
			order = append(order, name)
			return name, err
		}))
	}

	fb := FallbackOf(op("a", errBoom), op("b", nil), op("c", nil))
	out, err := fb.Perform(context.Background(), "m")
	if err != nil || out != "b" {
		t.Fatalf("Perform() = %q, %v; want b", out, err)
	}
	if strings.Join(order, ",") != "a,b" {
		t.Errorf("order = %v, want [a b]", order)
	}
}

func TestFallback_NoCandidates(t *testing.T) {
	fb := NewFallback[string, string](nil)
	if _, err := fb.Perform(context.Background(), "m"); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("err = %v, want ErrNoCandidates", err)
	}

	fb = FallbackOf[string, string](nil, nil)
	if fb.Len() != 0 {
		t.Errorf("Len() = %d, want 0", fb.Len())
	}
}

func TestFallback_FailureHookAndLogging(t *testing.T) {
	var buf bytes.Buffer
	var hooked []int
	fb := NewFallback([]Operation[string, string]{failing("a", errBoom), ok("b")},
		WithName("sms"),
		WithLogger(observe.NewLoggerWithWriter("warn", &buf)),
		WithFailureHook(func(_ context.Context, index int, candidate string, err error) {
			if candidate != "a" || err != errBoom {
				t.Errorf("hook got %s/%v", candidate, err)
			}
			hooked = append(hooked, index)
		}),
	)

	if _, err := fb.Perform(context.Background(), "m"); err != nil {
		t.Fatal(err)
	}
	if len(hooked) != 1 || hooked[0] != 0 {
		t.Errorf("hooked = %v, want [0]", hooked)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log output: %v\n%s", err, buf.String())
	}
	if entry["candidate"] != "a" || entry["chain"] != "sms" || entry["error"] != "boom" {
		t.Errorf("log entry = %v", entry)
	}
}

func TestFallback_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := OperationFunc[string, string](func(context.Context, string) (string, error) {
		cancel()
		return "", errDelivery
	})
	b := ok("b")

	_, err := FallbackOf[string, string](a, b).Perform(ctx, "m")
	if b.calls != 0 {
		t.Errorf("b calls = %d, want 0", b.calls)
	}
	if !errors.Is(err, context.Canceled) || !errors.Is(err, errDelivery) {
		t.Errorf("err = %v, want canceled and delivery failure", err)
	}
	causes := failure.Causes(err)
	if len(causes) != 2 {
		t.Fatalf("causes = %d, want 2", len(causes))
	}
	for i, c := range causes {
		var single *failure.Single
		if !errors.As(c, &single) || single.Index != i {
			t.Errorf("causes[%d] = %#v, want *failure.Single with Index %d", i, c, i)
		}
	}
	if !errors.Is(causes[1], context.Canceled) {
		t.Errorf("causes[1] = %v, want the skipped candidate cancelled", causes[1])
	}
}

func TestFallback_NamedAggregate(t *testing.T) {
	fb := NewFallback([]Operation[string, string]{failing("a", errBoom)}, WithName("email"))
	_, err := fb.Perform(context.Background(), "m")
	if !strings.Contains(err.Error(), "email") {
		t.Errorf("Error() = %q, want chain name", err.Error())
	}
}

func TestFallback_OfSelectors(t *testing.T) {
	none := NewSelector[string, string](WithName("none"))
	some := NewSelector[string, string]().Register(nil, ok("x"))

	out, err := FallbackOf[string, string](none, some).Perform(context.Background(), "m")
	if err != nil || out != "x:m" {
		t.Errorf("Perform() = %q, %v", out, err)
	}
}

func TestNameOf(t *testing.T) {
	tests := []struct {
		op   any
		want string
	}{
		{ok("named"), "named"},
		{ok(""), "*dispatch.stub"},
		{Named[string, string]("wrapped", ok("inner")), "wrapped"},
	}
	for _, tt := range tests {
		if got := NameOf(tt.op); got != tt.want {
			t.Errorf("NameOf(%T) = %q, want %q", tt.op, got, tt.want)
		}
	}
}
