package segment

import (
	"errors"
	"math"
	"testing"
)

func TestValidate_KeepsOnlyWellFormed(t *testing.T) {
	raw := []Segment{
		{URL: "https://example.com/a.mp4", StartSec: 0, EndSec: 5},
		{URL: "", StartSec: 0, EndSec: 5},
		{URL: "https://example.com/b.mp4", StartSec: 5, EndSec: 2},
	}

	plan, err := Validate(raw)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(plan.Segments) != 1 {
		t.Fatalf("plan has %d segments, want 1", len(plan.Segments))
	}
	if plan.Segments[0].URL != "https://example.com/a.mp4" {
		t.Errorf("kept segment URL = %q", plan.Segments[0].URL)
	}
}

func TestValidate_DropsNonFiniteTimes(t *testing.T) {
	raw := []Segment{
		{URL: "https://example.com/a.mp4", StartSec: math.NaN(), EndSec: 5},
		{URL: "https://example.com/b.mp4", StartSec: 0, EndSec: math.Inf(1)},
		{URL: "https://example.com/c.mp4", StartSec: -1, EndSec: 5},
		{URL: "https://example.com/d.mp4", StartSec: 1, EndSec: 4},
	}

	plan, err := Validate(raw)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(plan.Segments) != 1 {
		t.Fatalf("plan has %d segments, want 1", len(plan.Segments))
	}
	if plan.Segments[0].URL != "https://example.com/d.mp4" {
		t.Errorf("kept segment URL = %q", plan.Segments[0].URL)
	}
}

func TestValidate_PreservesOrder(t *testing.T) {
	raw := []Segment{
		{URL: "https://example.com/c.mp4", StartSec: 10, EndSec: 12},
		{URL: "bad", StartSec: 2, EndSec: 1},
		{URL: "https://example.com/a.mp4", StartSec: 0, EndSec: 5},
		{URL: "https://example.com/b.mp4", StartSec: 3, EndSec: 7},
	}

	plan, err := Validate(raw)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	want := []string{
		"https://example.com/c.mp4",
		"https://example.com/a.mp4",
		"https://example.com/b.mp4",
	}
	if len(plan.Segments) != len(want) {
		t.Fatalf("plan has %d segments, want %d", len(plan.Segments), len(want))
	}
	for i, url := range want {
		if plan.Segments[i].URL != url {
			t.Errorf("segment %d URL = %q, want %q", i, plan.Segments[i].URL, url)
		}
	}
}

func TestValidate_EmptyInput(t *testing.T) {
	_, err := Validate(nil)
	if !errors.Is(err, ErrEmptyPlan) {
		t.Errorf("Validate(nil) error = %v, want ErrEmptyPlan", err)
	}

	_, err = Validate([]Segment{{URL: "", StartSec: 0, EndSec: 5}})
	if !errors.Is(err, ErrEmptyPlan) {
		t.Errorf("Validate(all-invalid) error = %v, want ErrEmptyPlan", err)
	}
}

func TestValidate_DoesNotMutateInput(t *testing.T) {
	raw := []Segment{
		{URL: "https://example.com/a.mp4", StartSec: 0, EndSec: 5},
	}
	plan, err := Validate(raw)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if raw[0].ID != "" {
		t.Errorf("input descriptor was mutated: ID = %q", raw[0].ID)
	}
	if plan.Segments[0].ID == "" {
		t.Error("kept segment should have an assigned ID")
	}
}

func TestTrimDuration_Floor(t *testing.T) {
	s := Segment{URL: "https://example.com/a.mp4", StartSec: 2, EndSec: 2.05}
	if got := s.TrimDuration(); got != 0.1 {
		t.Errorf("TrimDuration() = %v, want 0.1", got)
	}

	s = Segment{URL: "https://example.com/a.mp4", StartSec: 2, EndSec: 7.5}
	if got := s.TrimDuration(); got != 5.5 {
		t.Errorf("TrimDuration() = %v, want 5.5", got)
	}
}

func TestPlan_TotalDuration(t *testing.T) {
	plan := Plan{Segments: []Segment{
		{StartSec: 0, EndSec: 5},
		{StartSec: 2, EndSec: 2.05}, // floored to 0.1
	}}
	if got := plan.TotalDuration(); math.Abs(got-5.1) > 1e-9 {
		t.Errorf("TotalDuration() = %v, want 5.1", got)
	}
}
