package config

import (
	"errors"
	"strings"
	"testing"
)

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("NOTIFYOPS_TEST_A", "alpha")

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"no vars", "no vars", false},
		{"${NOTIFYOPS_TEST_A}", "alpha", false},
		{"$NOTIFYOPS_TEST_A-x", "alpha-x", false},
		{"$NOTIFYOPS_TEST_UNSET_BARE", "", false},
		{"cost: $$5", "cost: $5", false},
		{"${NOTIFYOPS_TEST_UNSET}", "", true},
	}
	for _, tt := range tests {
		got, err := ExpandEnvStrict(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ExpandEnvStrict(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ExpandEnvStrict(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExpandEnvStrict_ListsMissing(t *testing.T) {
	_, err := ExpandEnvStrict("${NOTIFYOPS_B_UNSET} ${NOTIFYOPS_A_UNSET} ${NOTIFYOPS_B_UNSET}")
	if !errors.Is(err, ErrMissingEnv) {
		t.Fatalf("error = %v, want ErrMissingEnv", err)
	}
	if !strings.HasSuffix(err.Error(), "NOTIFYOPS_A_UNSET, NOTIFYOPS_B_UNSET") {
		t.Errorf("error = %q, want sorted unique names", err)
	}
}
