package gologger

import "testing"

func TestResolveFallsBackToNamedLogger(t *testing.T) {
	provider, logger := Resolve("quotes-test", nil, nil)
	if logger == nil {
		t.Fatalf("expected a usable logger")
	}
	_ = provider
}

func TestToJobAdaptersPassNilThrough(t *testing.T) {
	if ToJobProvider(nil) != nil {
		t.Fatalf("nil provider must map to nil")
	}
	if ToJobLogger(nil) != nil {
		t.Fatalf("nil logger must map to nil")
	}
}

func TestResolveForJobWrapsResolvedLogger(t *testing.T) {
	_, logger, _, jobLogger := ResolveForJob("quotes-test", nil, nil)
	if logger == nil {
		t.Fatalf("expected resolved glog logger")
	}
	if jobLogger == nil {
		t.Fatalf("expected go-job logger adapter")
	}
}
