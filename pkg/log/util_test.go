package log

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type direction int

func (d direction) String() string { return [...]string{"STOP", "LEFT"}[d] }

func TestNormalize(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name string
		args []any
		want []string // keys of the resulting fields
	}{
		{"empty", nil, nil},
		{"pairs", []any{"seq", uint32(7), "class", "LEFT"}, []string{"seq", "class"}},
		{"bare error", []any{boom, "seq", 1}, []string{"error", "seq"}},
		{"zap field", []any{zap.String("x", "y"), "n", 2}, []string{"x", "n"}},
		{"dangling key", []any{"a", 1, "b"}, []string{"a", "arg"}},
		{"non-string key", []any{42, "v"}, []string{"42"}},
		{"named error", []any{"cause", boom}, []string{"cause"}},
		{"payload", []any{"image", []byte("xyz")}, []string{"image_bytes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalize(tt.args)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d fields, want %d: %v", len(got), len(tt.want), got)
			}
			for i, v := range got {
				f, ok := v.(zap.Field)
				if !ok {
					t.Fatalf("element %d is %T, want zap.Field", i, v)
				}
				if f.Key != tt.want[i] {
					t.Errorf("field %d key = %q, want %q", i, f.Key, tt.want[i])
				}
			}
		})
	}
}

func TestFieldTypes(t *testing.T) {
	tests := []struct {
		name string
		val  any
		typ  zapcore.FieldType
	}{
		{"duration", 12 * time.Millisecond, zapcore.DurationType},
		{"time", time.Unix(0, 0), zapcore.TimeType},
		{"stringer", direction(1), zapcore.StringerType},
		{"float", float32(0.5), zapcore.Float32Type},
		{"string", "LEFT", zapcore.StringType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if f := field("k", tt.val); f.Type != tt.typ {
				t.Errorf("type = %v, want %v", f.Type, tt.typ)
			}
		})
	}
}

func TestSetLevel(t *testing.T) {
	defer func() { _ = SetLevel("info") }()

	if err := SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel(debug): %v", err)
	}
	if Level() != "debug" {
		t.Errorf("Level() = %q, want debug", Level())
	}
	if err := SetLevel("chatty"); err == nil {
		t.Error("expected an error for an unknown level")
	}
	if Level() != "debug" {
		t.Errorf("a rejected level changed the level to %q", Level())
	}
}

func TestContextLogger(t *testing.T) {
	if FromContext(context.Background()) != Std() {
		t.Error("expected the process-wide logger for a bare context")
	}

	l := NewNopLogger().WithValues("session", "abc")
	ctx := IntoContext(context.Background(), l)
	if FromContext(ctx) != l {
		t.Error("expected the logger stored in the context")
	}
}
