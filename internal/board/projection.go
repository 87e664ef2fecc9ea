// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package board

import (
	"sort"
	"strings"

	"github.com/olegiv/corkboard/internal/model"
)

// Sort orders accepted by Project.
const (
	SortNewest = "created_desc"
	SortOldest = "created_asc"
	SortTitle  = "title"
	SortRPName = "rp_name"
)

// Query describes a read-only view over the pin cache: an optional
// case-insensitive search term and a sort order. The zero value means
// all pins, newest first.
type Query struct {
	Search string
	Sort   string
}

// ValidSort reports whether s is a recognized sort order.
func ValidSort(s string) bool {
	switch s {
	case "", SortNewest, SortOldest, SortTitle, SortRPName:
		return true
	}
	return false
}

// Project filters and sorts pins according to the query. The input
// slice is never modified; callers get a fresh slice even for the zero
// query.
func Project(pins []model.Pin, q Query) []model.Pin {
	out := make([]model.Pin, 0, len(pins))

	term := strings.ToLower(strings.TrimSpace(q.Search))
	for _, p := range pins {
		if term == "" || matches(p, term) {
			out = append(out, p)
		}
	}

	switch q.Sort {
	case "", SortNewest:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	case SortOldest:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		})
	case SortTitle:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
		})
	case SortRPName:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].RPName) < strings.ToLower(out[j].RPName)
		})
	}

	return out
}

// matches reports whether the lowercased term occurs in the pin's
// title, content or nickname.
func matches(p model.Pin, term string) bool {
	return strings.Contains(strings.ToLower(p.Title), term) ||
		strings.Contains(strings.ToLower(p.Content), term) ||
		strings.Contains(strings.ToLower(p.Nickname), term)
}
