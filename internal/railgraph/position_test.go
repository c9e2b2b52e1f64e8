// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

package railgraph

import "testing"

func TestPositionKeyRoundTrip(t *testing.T) {
	positions := []Position{
		{X: 0, Y: 0, Z: 0},
		{X: 128, Y: 64, Z: -512},
		{X: -1, Y: -64, Z: 1},
		{X: 30000000, Y: 320, Z: -30000000},
	}
	for _, p := range positions {
		got, ok := ParseKey(p.Key())
		if !ok {
			t.Errorf("ParseKey(%q) failed", p.Key())
			continue
		}
		if got != p {
			t.Errorf("round trip: expected %+v, got %+v", p, got)
		}
	}
}

func TestParseKeyTruncatesFloats(t *testing.T) {
	got, ok := ParseKey("10.9,-3.2,0.0")
	if !ok {
		t.Fatal("ParseKey should accept float components")
	}
	want := Position{X: 10, Y: -3, Z: 0}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestParseKeyRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "1,2", "1,2,3,4", "a,b,c", "1,NaN,3", "1,Inf,3"} {
		if _, ok := ParseKey(s); ok {
			t.Errorf("ParseKey(%q) should fail", s)
		}
	}
}

func TestDecodeNodePositionFieldPriority(t *testing.T) {
	payload := map[string]any{
		"pos":      map[string]any{"x": 2.0, "y": 2.0, "z": 2.0},
		"position": map[string]any{"x": 1.0, "y": 1.0, "z": 1.0},
	}
	got, ok := DecodeNodePosition(payload)
	if !ok {
		t.Fatal("DecodeNodePosition failed")
	}
	if got != (Position{X: 1, Y: 1, Z: 1}) {
		t.Errorf("position field should win over pos, got %+v", got)
	}
}

func TestDecodePositionShapes(t *testing.T) {
	want := Position{X: 5, Y: 70, Z: -12}
	cases := []any{
		map[string]any{"x": 5.0, "y": 70.0, "z": -12.0},
		[]any{5.0, 70.0, -12.0},
		"5,70,-12",
	}
	for _, v := range cases {
		got, ok := DecodePosition(v)
		if !ok {
			t.Errorf("DecodePosition(%v) failed", v)
			continue
		}
		if got != want {
			t.Errorf("DecodePosition(%v): expected %+v, got %+v", v, want, got)
		}
	}

	if _, ok := DecodePosition([]any{1.0, 2.0}); ok {
		t.Error("two-element array should fail")
	}
	if _, ok := DecodePosition(42); ok {
		t.Error("bare number should fail")
	}
}
