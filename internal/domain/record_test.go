package domain

import (
	"errors"
	"testing"
)

func TestRecord_FeatureAvailable(t *testing.T) {
	if (Record{FeatureSummary: UnavailableFeature}).FeatureAvailable() {
		t.Error("sentinel summary must be unavailable")
	}
	if !(Record{FeatureSummary: "numeric: 12 columns"}).FeatureAvailable() {
		t.Error("real summary must be available")
	}
	// Пустая строка: не sentinel
	if !(Record{}).FeatureAvailable() {
		t.Error("empty summary is not the sentinel")
	}
}

func TestRecord_Text(t *testing.T) {
	r := Record{Title: "t", Details: "d", FeatureSummary: "f"}
	want := map[Field]string{FieldTitle: "t", FieldDetails: "d", FieldFeature: "f"}
	for f, w := range want {
		if got := r.Text(f); got != w {
			t.Errorf("Text(%s) = %q, want %q", f, got, w)
		}
	}
}

func TestRecord_Validate(t *testing.T) {
	if err := (Record{}).Validate(); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("expected ErrInvalidRecord, got %v", err)
	}
	if err := (Record{ID: "1"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestParseField(t *testing.T) {
	for _, f := range Fields {
		got, err := ParseField(f.String())
		if err != nil {
			t.Fatalf("ParseField(%q): %v", f, err)
		}
		if got != f {
			t.Errorf("ParseField(%q) = %v", f, got)
		}
	}
	if _, err := ParseField("abstract"); err == nil {
		t.Error("expected error for unknown field")
	}
}
