package model

import (
	"encoding/json"
	"testing"
)

// TestClassificationString tests the String method of Classification.
func TestClassificationString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		c        Classification
		expected string
	}{
		{Safe, "safe"},
		{Indeterminate, "indeterminate"},
		{Vulnerable, "vulnerable"},
		{Classification(99), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()
			if tc.c.String() != tc.expected {
				t.Errorf("got %q, expected %q", tc.c.String(), tc.expected)
			}
		})
	}
}

// TestParseClassification tests catalogue labels and report names.
func TestParseClassification(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in       string
		expected Classification
		wantErr  bool
	}{
		{"safe", Safe, false},
		{"good", Safe, false},
		{" VULN ", Vulnerable, false},
		{"Vulnerable", Vulnerable, false},
		{"unknown", Indeterminate, false},
		{"indeterminate", Indeterminate, false},
		{"maybe", Safe, true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseClassification(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tc.wantErr)
			}
			if !tc.wantErr && got != tc.expected {
				t.Errorf("got %v, expected %v", got, tc.expected)
			}
		})
	}
}

// TestClassificationJSON tests that classifications travel as names.
func TestClassificationJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(struct{ C Classification }{Vulnerable})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"C":"vulnerable"}` {
		t.Errorf("got %s", data)
	}

	var v struct{ C Classification }
	if err := json.Unmarshal([]byte(`{"C":"indeterminate"}`), &v); err != nil {
		t.Fatal(err)
	}
	if v.C != Indeterminate {
		t.Errorf("got %v, expected indeterminate", v.C)
	}
	if err := json.Unmarshal([]byte(`{"C":"risky"}`), &v); err == nil {
		t.Error("expected error for an unknown name")
	}
}

// TestWorst tests the ordering safe < indeterminate < vulnerable.
func TestWorst(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		in       []Classification
		expected Classification
	}{
		{"none", nil, Safe},
		{"all safe", []Classification{Safe, Safe}, Safe},
		{"indeterminate wins over safe", []Classification{Safe, Indeterminate}, Indeterminate},
		{"vulnerable wins", []Classification{Indeterminate, Vulnerable, Safe}, Vulnerable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Worst(tc.in...); got != tc.expected {
				t.Errorf("got %v, expected %v", got, tc.expected)
			}
		})
	}
}

// TestGetFindingInfo tests the finding metadata table.
func TestGetFindingInfo(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		finding  string
		expected Classification
	}{
		{FindingBounded, Safe},
		{FindingUnboundedString, Vulnerable},
		{FindingUnboundedBracketSet, Vulnerable},
		{FindingOffByOne, Vulnerable},
		{FindingWidthExceedsCapacity, Vulnerable},
		{FindingUnknownCapacity, Indeterminate},
	}

	for _, tc := range testCases {
		t.Run(tc.finding, func(t *testing.T) {
			t.Parallel()
			info := GetFindingInfo(tc.finding)
			if info.Classification != tc.expected {
				t.Errorf("got %v, expected %v", info.Classification, tc.expected)
			}
			if info.Title == "" || info.Impact == "" || info.Recommendation == "" {
				t.Errorf("incomplete info %+v", info)
			}
		})
	}

	t.Run("unknown finding", func(t *testing.T) {
		t.Parallel()
		info := GetFindingInfo("made_up")
		if info.Classification != Indeterminate {
			t.Errorf("got %v, expected indeterminate", info.Classification)
		}
		if info.Title != "made_up" {
			t.Errorf("got title %q", info.Title)
		}
	})
}
