package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/taskchan/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"TaskID", id.NewTaskID, "task_"},
		{"PoolID", id.NewPoolID, "pool_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParse(t *testing.T) {
	original := id.NewTaskID()
	parsed, err := id.ParseTaskID(original.String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed.String() != original.String() {
		t.Errorf("mismatch: %q != %q", parsed.String(), original.String())
	}

	if _, err := id.ParsePoolID(original.String()); err == nil {
		t.Error("expected a task ID to be rejected as a pool ID")
	}
	if _, err := id.Parse(""); err == nil {
		t.Error("expected empty string to fail")
	}
	if _, err := id.Parse("not a typeid"); err == nil {
		t.Error("expected garbage to fail")
	}
}

func TestNil(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Fatal("zero value should be nil")
	}
	if i.String() != "" || i.Prefix() != "" {
		t.Fatal("nil ID should render empty")
	}
	if id.NewTaskID().IsNil() {
		t.Fatal("generated ID should not be nil")
	}
}

func TestTextRoundTrip(t *testing.T) {
	original := id.NewPoolID()
	b, err := original.MarshalText()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded id.ID
	if err := decoded.UnmarshalText(b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.String() != original.String() {
		t.Errorf("round-trip mismatch: %q != %q", decoded.String(), original.String())
	}

	if err := decoded.UnmarshalText(nil); err != nil || !decoded.IsNil() {
		t.Fatal("empty text should decode to Nil")
	}
}
