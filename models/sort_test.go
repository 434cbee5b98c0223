// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"testing"
	"time"
)

func TestParseSortMode(t *testing.T) {
	tests := []struct {
		input    string
		expected SortMode
	}{
		{"popular", SortPopular},
		{"newest", SortNewest},
		{"oldest", SortOldest},
		{"", SortPopular},
		{"bogus", SortPopular},
	}

	for _, tt := range tests {
		if got := ParseSortMode(tt.input); got != tt.expected {
			t.Errorf("ParseSortMode(%q) = %s, expected %s", tt.input, got, tt.expected)
		}
	}
}

func TestLessPopular(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name string
		a, b Question
		less bool
	}{
		{
			name: "pinned beats likes",
			a:    Question{IsPinned: true, LikesCount: 0, CreatedAt: earlier},
			b:    Question{LikesCount: 99, CreatedAt: now},
			less: true,
		},
		{
			name: "highlighted beats likes among unpinned",
			a:    Question{IsHighlighted: true, LikesCount: 1, CreatedAt: earlier},
			b:    Question{LikesCount: 50, CreatedAt: now},
			less: true,
		},
		{
			name: "more likes wins when flags tie",
			a:    Question{LikesCount: 5, CreatedAt: earlier},
			b:    Question{LikesCount: 3, CreatedAt: now},
			less: true,
		},
		{
			name: "newer wins full tie",
			a:    Question{LikesCount: 3, CreatedAt: now},
			b:    Question{LikesCount: 3, CreatedAt: earlier},
			less: true,
		},
		{
			name: "older loses full tie",
			a:    Question{LikesCount: 3, CreatedAt: earlier},
			b:    Question{LikesCount: 3, CreatedAt: now},
			less: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LessPopular(tt.a, tt.b); got != tt.less {
				t.Errorf("LessPopular = %v, expected %v", got, tt.less)
			}
		})
	}
}

func TestSortQuestions(t *testing.T) {
	base := time.Now()
	qs := func() []Question {
		return []Question{
			{ID: "old-many-likes", LikesCount: 10, CreatedAt: base.Add(-3 * time.Hour)},
			{ID: "new-few-likes", LikesCount: 1, CreatedAt: base},
			{ID: "pinned", IsPinned: true, CreatedAt: base.Add(-2 * time.Hour)},
			{ID: "highlighted", IsHighlighted: true, LikesCount: 2, CreatedAt: base.Add(-time.Hour)},
		}
	}

	assertOrder := func(t *testing.T, got []Question, want ...string) {
		t.Helper()
		if len(got) != len(want) {
			t.Fatalf("Expected %d questions, got %d", len(want), len(got))
		}
		for i, id := range want {
			if got[i].ID != id {
				t.Errorf("Position %d: expected %s, got %s", i, id, got[i].ID)
			}
		}
	}

	t.Run("popular", func(t *testing.T) {
		list := qs()
		SortQuestions(list, SortPopular)
		assertOrder(t, list, "pinned", "highlighted", "old-many-likes", "new-few-likes")
	})

	t.Run("newest", func(t *testing.T) {
		list := qs()
		SortQuestions(list, SortNewest)
		assertOrder(t, list, "new-few-likes", "highlighted", "pinned", "old-many-likes")
	})

	t.Run("oldest", func(t *testing.T) {
		list := qs()
		SortQuestions(list, SortOldest)
		assertOrder(t, list, "old-many-likes", "pinned", "highlighted", "new-few-likes")
	})
}
