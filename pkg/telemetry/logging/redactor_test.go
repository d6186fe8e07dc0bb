package logging

import (
	"log/slog"
	"testing"
)

func TestRedactor_ReplaceAttr(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name string
		attr slog.Attr
		want string
	}{
		{"api key field", slog.String("api_key", "sk-abcdefghijklmnop"), "sk-a***"},
		{"authorization header", slog.String("Authorization", "Bearer abc.def"), "Bear***"},
		{"short secret", slog.String("secret", "hunter2"), "***"},
		{"suffix match", slog.String("upstream_token", "tok-1234567890"), "tok-***"},
		{"bearer in message", slog.String("error", "upstream rejected Bearer abc123=="), "upstream rejected Bearer ***"},
		{"sk key in value", slog.String("detail", "used sk-ant-0123456789abcdef"), "used sk-***"},
		{"query credential", slog.String("url", "https://x.example.com/v1?api_key=abc&model=m"), "https://x.example.com/v1?api_key=***&model=m"},
		{"token counts untouched", slog.Int("prompt_tokens", 120), "120"},
		{"plain value untouched", slog.String("backend", "primary"), "primary"},
		{"credential ref key", slog.String("credential", "env:OPENAI_KEY"), "env:***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.ReplaceAttr(nil, tt.attr)
			if got.Value.String() != tt.want {
				t.Errorf("ReplaceAttr(%s=%v) = %q, want %q", tt.attr.Key, tt.attr.Value, got.Value.String(), tt.want)
			}
			if got.Key != tt.attr.Key {
				t.Errorf("key = %q, want %q", got.Key, tt.attr.Key)
			}
		})
	}
}
