package dispatch

import (
	"context"
	"errors"
)

// stub is an operation whose results are scripted per call.
type stub struct {
	name    string
	results []error // error for call i; the last one repeats
	calls   int
}

func (s *stub) Name() string { return s.name }

func (s *stub) Perform(_ context.Context, in string) (string, error) {
	i := s.calls
	s.calls++
	if len(s.results) == 0 {
		return s.name + ":" + in, nil
	}
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	if err := s.results[i]; err != nil {
		return "", err
	}
	return s.name + ":" + in, nil
}

func ok(name string) *stub { return &stub{name: name} }

func failing(name string, err error) *stub {
	return &stub{name: name, results: []error{err}}
}

var errBoom = errors.New("boom")
