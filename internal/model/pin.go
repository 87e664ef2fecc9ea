// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the core data structures shared across the application.
package model

import (
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// Field length limits, enforced both here and by the database schema.
const (
	MaxTitleLen    = 100
	MaxContentLen  = 500
	MaxNicknameLen = 30
	MaxRPNameLen   = 30
)

// DefaultNickname is used when a pin is submitted without a nickname.
const DefaultNickname = "Anonymous"

// MainNumbers is the set of valid main selections (mains 1-4 plus Council).
var MainNumbers = []int{1, 2, 3, 4, 5}

// Pin represents one user-submitted board post.
type Pin struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Nickname   string    `json:"nickname"`
	RPName     string    `json:"rp_name"`
	MainNumber int       `json:"main_number"`
	AuthorID   string    `json:"author_id"`
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PinDraft carries the user-supplied fields of a new pin. AuthorID is the
// caller's owner token; the server mints one when it is empty.
type PinDraft struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Nickname   string `json:"nickname"`
	RPName     string `json:"rp_name"`
	MainNumber int    `json:"main_number"`
	AuthorID   string `json:"author_id"`
}

// PinPatch carries the mutable fields of an existing pin. Nil fields are
// left unchanged.
type PinPatch struct {
	Title      *string `json:"title,omitempty"`
	Content    *string `json:"content,omitempty"`
	Nickname   *string `json:"nickname,omitempty"`
	RPName     *string `json:"rp_name,omitempty"`
	MainNumber *int    `json:"main_number,omitempty"`
}

// sanitizer strips all HTML from user-supplied text. StrictPolicy allows no
// elements at all, which is what a plain-text corkboard wants.
var sanitizer = bluemonday.StrictPolicy()

// Sanitize returns s with surrounding whitespace trimmed and any HTML removed.
func Sanitize(s string) string {
	return strings.TrimSpace(sanitizer.Sanitize(strings.TrimSpace(s)))
}

// Normalize trims and sanitizes all text fields and applies the default
// nickname. Call before validation so limits apply to the stored form.
func (d PinDraft) Normalize() PinDraft {
	d.Title = Sanitize(d.Title)
	d.Content = Sanitize(d.Content)
	d.Nickname = Sanitize(d.Nickname)
	d.RPName = Sanitize(d.RPName)
	d.AuthorID = strings.TrimSpace(d.AuthorID)
	if d.Nickname == "" {
		d.Nickname = DefaultNickname
	}
	return d
}

// Normalize trims and sanitizes all set fields of the patch.
func (p PinPatch) Normalize() PinPatch {
	if p.Title != nil {
		v := Sanitize(*p.Title)
		p.Title = &v
	}
	if p.Content != nil {
		v := Sanitize(*p.Content)
		p.Content = &v
	}
	if p.Nickname != nil {
		v := Sanitize(*p.Nickname)
		if v == "" {
			v = DefaultNickname
		}
		p.Nickname = &v
	}
	if p.RPName != nil {
		v := Sanitize(*p.RPName)
		p.RPName = &v
	}
	return p
}

// Apply returns a copy of pin with the patch's set fields applied.
func (p PinPatch) Apply(pin Pin) Pin {
	if p.Title != nil {
		pin.Title = *p.Title
	}
	if p.Content != nil {
		pin.Content = *p.Content
	}
	if p.Nickname != nil {
		pin.Nickname = *p.Nickname
	}
	if p.RPName != nil {
		pin.RPName = *p.RPName
	}
	if p.MainNumber != nil {
		pin.MainNumber = *p.MainNumber
	}
	return pin
}

// ValidMainNumber reports whether n is one of the allowed main selections.
func ValidMainNumber(n int) bool {
	for _, m := range MainNumbers {
		if n == m {
			return true
		}
	}
	return false
}

// PinStats holds aggregate board statistics.
type PinStats struct {
	Total         int64 `json:"total"`
	Today         int64 `json:"today"`
	UniqueAuthors int64 `json:"unique_authors"`
}
