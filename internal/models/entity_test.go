// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

package models

import (
	"math"
	"testing"
)

func TestCoerceID(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
		ok   bool
	}{
		{"string", "route-7", "route-7", true},
		{"empty string", "", "", false},
		{"nil", nil, "", false},
		{"float whole", 42.0, "42", true},
		{"float fractional truncates", 42.9, "42", true},
		{"int", 7, "7", true},
		{"int64", int64(123456789), "123456789", true},
		{"nan", math.NaN(), "", false},
		{"inf", math.Inf(1), "", false},
		{"bool", true, "", false},
	}
	for _, tt := range tests {
		got, ok := CoerceID(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("%s: CoerceID(%v) = (%q, %v), want (%q, %v)", tt.name, tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSameID(t *testing.T) {
	if !SameID(42.0, "42") {
		t.Error("numeric 42.0 should match canonical \"42\"")
	}
	if !SameID("42", "42") {
		t.Error("string form should match itself")
	}
	if SameID(43.0, "42") {
		t.Error("different ids must not match")
	}
	if SameID(nil, "") {
		t.Error("nil never matches")
	}
}

func TestBoundsContains(t *testing.T) {
	b := Bounds{Min: Point{X: -10, Y: 60, Z: -10}, Max: Point{X: 10, Y: 70, Z: 10}}

	if !b.Contains(Point{X: 0, Y: 64, Z: 0}) {
		t.Error("interior point should be contained")
	}
	if !b.Contains(Point{X: 10, Y: 70, Z: 10}) {
		t.Error("boundary is inclusive")
	}
	if b.Contains(Point{X: 11, Y: 64, Z: 0}) {
		t.Error("point beyond X max must not be contained")
	}
	if b.Contains(Point{X: 0, Y: 50, Z: 0}) {
		t.Error("vertical extent is checked too")
	}
}

func TestBoundsCenter(t *testing.T) {
	b := Bounds{Min: Point{X: 0, Y: 60, Z: -20}, Max: Point{X: 10, Y: 70, Z: 20}}
	c := b.Center()
	if c.X != 5 || c.Y != 65 || c.Z != 0 {
		t.Errorf("center wrong: %+v", c)
	}
}

func TestCategoryValid(t *testing.T) {
	for _, c := range AllCategories {
		if !c.Valid() {
			t.Errorf("category %s should be valid", c)
		}
	}
	if Category("tram_stop").Valid() {
		t.Error("unknown category must be invalid")
	}
}

func TestSyncJobStatusActive(t *testing.T) {
	active := map[SyncJobStatus]bool{
		SyncJobPending:   true,
		SyncJobRunning:   true,
		SyncJobSucceeded: false,
		SyncJobFailed:    false,
	}
	for status, want := range active {
		if status.Active() != want {
			t.Errorf("%s.Active() = %v, want %v", status, status.Active(), want)
		}
	}
}
