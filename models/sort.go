// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "sort"

// SortMode selects the ordering of an audience question list.
type SortMode string

const (
	SortPopular SortMode = "popular"
	SortNewest  SortMode = "newest"
	SortOldest  SortMode = "oldest"
)

// ParseSortMode maps a query-string value to a SortMode, defaulting to
// popular for empty or unrecognized input.
func ParseSortMode(s string) SortMode {
	switch SortMode(s) {
	case SortNewest:
		return SortNewest
	case SortOldest:
		return SortOldest
	default:
		return SortPopular
	}
}

// LessPopular is the composite ordering contract for the popular sort:
// pinned before unpinned, then highlighted before unhighlighted, then by
// likes descending, then by creation time descending. All four keys are
// part of the API contract; ties must resolve the same way everywhere so
// that list order is stable across clients.
func LessPopular(a, b Question) bool {
	if a.IsPinned != b.IsPinned {
		return a.IsPinned
	}
	if a.IsHighlighted != b.IsHighlighted {
		return a.IsHighlighted
	}
	if a.LikesCount != b.LikesCount {
		return a.LikesCount > b.LikesCount
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// SortQuestions orders qs in place per the given mode.
func SortQuestions(qs []Question, mode SortMode) {
	switch mode {
	case SortNewest:
		sort.SliceStable(qs, func(i, j int) bool {
			return qs[i].CreatedAt.After(qs[j].CreatedAt)
		})
	case SortOldest:
		sort.SliceStable(qs, func(i, j int) bool {
			return qs[i].CreatedAt.Before(qs[j].CreatedAt)
		})
	default:
		sort.SliceStable(qs, func(i, j int) bool {
			return LessPopular(qs[i], qs[j])
		})
	}
}
