package cache

import (
	"testing"
	"time"

	"mercator-hq/switchboard/pkg/backends"
)

func ptr[T any](v T) *T { return &v }

func baseRequest() *backends.Request {
	return &backends.Request{
		RequestID: "req-1",
		Target:    backends.TargetAuto,
		Model:     "m1",
		Messages: []backends.Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hello"},
		},
		Params: backends.Params{Temperature: ptr(0.2), MaxTokens: 64},
	}
}

func TestKey_IgnoresVolatileFields(t *testing.T) {
	a := baseRequest()
	b := baseRequest()
	b.RequestID = "req-2"
	b.Deadline = time.Now().Add(time.Minute)
	b.Caller = "someone-else"
	b.Metadata = map[string]string{"trace": "x"}
	b.Sensitive = true

	ka, err := Key(a)
	if err != nil {
		t.Fatalf("Key() failed: %v", err)
	}
	kb, err := Key(b)
	if err != nil {
		t.Fatalf("Key() failed: %v", err)
	}
	if ka != kb {
		t.Errorf("keys differ for requests that differ only in volatile fields: %s vs %s", ka, kb)
	}
	if len(ka) != 64 {
		t.Errorf("len(Key()) = %d, want 64 hex chars", len(ka))
	}
}

func TestKey_EmptyTargetMeansAuto(t *testing.T) {
	a := baseRequest()
	b := baseRequest()
	b.Target = ""

	ka, _ := Key(a)
	kb, _ := Key(b)
	if ka != kb {
		t.Error("empty target and \"auto\" produced different keys")
	}
}

func TestKey_SensitiveToContent(t *testing.T) {
	base, _ := Key(baseRequest())

	tests := []struct {
		name   string
		mutate func(r *backends.Request)
	}{
		{"target", func(r *backends.Request) { r.Target = "b1" }},
		{"model", func(r *backends.Request) { r.Model = "m2" }},
		{"message content", func(r *backends.Request) { r.Messages[1].Content = "hello!" }},
		{"message role", func(r *backends.Request) { r.Messages[0].Role = "user" }},
		{"message order", func(r *backends.Request) { r.Messages[0], r.Messages[1] = r.Messages[1], r.Messages[0] }},
		{"temperature", func(r *backends.Request) { r.Params.Temperature = ptr(0.3) }},
		{"max tokens", func(r *backends.Request) { r.Params.MaxTokens = 65 }},
		{"stop", func(r *backends.Request) { r.Params.Stop = []string{"\n"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest()
			tt.mutate(req)
			got, err := Key(req)
			if err != nil {
				t.Fatalf("Key() failed: %v", err)
			}
			if got == base {
				t.Errorf("Key() unchanged after changing %s", tt.name)
			}
		})
	}
}
