// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package board holds the in-memory pin cache and coordinates every
// mutation against the store, the change feed and registered observers.
package board

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/olegiv/corkboard/internal/feed"
	"github.com/olegiv/corkboard/internal/model"
	"github.com/olegiv/corkboard/internal/store"
)

// loadRetries is how many attempts the initial load makes before
// giving up. Only loads retry; mutations fail fast.
const loadRetries = 3

// Observer receives cache change notifications. Implementations must
// not call back into the Coordinator from the notification goroutine.
type Observer interface {
	PinsChanged(pins []model.Pin)
	PinCreated(pin model.Pin)
	PinUpdated(pin model.Pin)
	PinDeleted(id string)
	BoardError(op string, err error)
}

// BaseObserver is a no-op Observer for embedding.
type BaseObserver struct{}

func (BaseObserver) PinsChanged([]model.Pin)  {}
func (BaseObserver) PinCreated(model.Pin)     {}
func (BaseObserver) PinUpdated(model.Pin)     {}
func (BaseObserver) PinDeleted(string)        {}
func (BaseObserver) BoardError(string, error) {}

// RemotePublisher forwards feed events to other instances.
type RemotePublisher interface {
	Publish(ctx context.Context, ev feed.Event) error
}

// Coordinator owns the pin cache. All mutations flow through it: they
// hit the store first, then the cache, then observers and the feed.
type Coordinator struct {
	queries *store.Queries
	broker  *feed.Broker
	remote  RemotePublisher
	log     *slog.Logger
	origin  string

	retryBaseDelay time.Duration

	mu        sync.Mutex
	pins      []model.Pin
	observers []Observer
}

// New creates a Coordinator with an empty cache. Call Load before
// serving reads.
func New(queries *store.Queries, broker *feed.Broker, log *slog.Logger) *Coordinator {
	return &Coordinator{
		queries:        queries,
		broker:         broker,
		log:            log,
		origin:         uuid.NewString(),
		retryBaseDelay: time.Second,
	}
}

// SetRemote attaches a cross-instance publisher. Call before serving.
func (c *Coordinator) SetRemote(r RemotePublisher) {
	c.remote = r
}

// Origin returns this instance's feed origin id.
func (c *Coordinator) Origin() string {
	return c.origin
}

// AddObserver registers an observer for cache change notifications.
func (c *Coordinator) AddObserver(o Observer) {
	c.mu.Lock()
	c.observers = append(c.observers, o)
	c.mu.Unlock()
}

func (c *Coordinator) snapshotObservers() []Observer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Observer(nil), c.observers...)
}

// Load replaces the cache with the store's current contents, retrying
// transient failures with a linearly growing delay.
func (c *Coordinator) Load(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= loadRetries; attempt++ {
		pins, err := c.queries.ListPins(ctx)
		if err == nil {
			c.mu.Lock()
			c.pins = pins
			c.mu.Unlock()
			c.notifyPinsChanged()
			return nil
		}

		lastErr = err
		c.log.Warn("loading pins failed", "attempt", attempt, "error", err)
		if attempt < loadRetries {
			select {
			case <-time.After(time.Duration(attempt) * c.retryBaseDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	err := &RemoteError{Op: "load pins", Err: lastErr}
	c.notifyError("load", err)
	return err
}

// Pins returns a snapshot of the cache, newest first.
func (c *Coordinator) Pins() []model.Pin {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Pin(nil), c.pins...)
}

// View returns a filtered, sorted snapshot of the cache.
func (c *Coordinator) View(q Query) []model.Pin {
	c.mu.Lock()
	pins := c.pins
	out := Project(pins, q)
	c.mu.Unlock()
	return out
}

// Create validates and stores a new pin, prepends it to the cache and
// announces it on the feed. When the draft has no owner token the
// server mints one; the returned pin carries it.
func (c *Coordinator) Create(ctx context.Context, draft model.PinDraft) (model.Pin, error) {
	draft = draft.Normalize()
	if err := validateDraft(draft); err != nil {
		c.notifyError("create", err)
		return model.Pin{}, err
	}
	if draft.AuthorID == "" {
		draft.AuthorID = uuid.NewString()
	}

	pin, err := c.queries.CreatePin(ctx, draft)
	if err != nil {
		rerr := &RemoteError{Op: "create pin", Err: err}
		c.notifyError("create", rerr)
		return model.Pin{}, rerr
	}

	c.mu.Lock()
	c.pins = append([]model.Pin{pin}, c.pins...)
	c.mu.Unlock()

	for _, o := range c.snapshotObservers() {
		o.PinCreated(pin)
	}
	c.notifyPinsChanged()
	c.logEvent(ctx, model.EventLevelInfo, "pin created", pin.ID)
	c.publish(ctx, feed.Event{Type: feed.ChangeInsert, PinID: pin.ID, Pin: &pin, Origin: c.origin})

	return pin, nil
}

// Update patches an existing pin. Non-admin callers must present the
// pin's owner token; admins update unconditionally.
func (c *Coordinator) Update(ctx context.Context, id string, patch model.PinPatch, authorID string, admin bool) (model.Pin, error) {
	patch = patch.Normalize()
	if err := validatePatch(patch); err != nil {
		c.notifyError("update", err)
		return model.Pin{}, err
	}
	if !admin && authorID == "" {
		err := &OwnershipError{ID: id}
		c.notifyError("update", err)
		return model.Pin{}, err
	}

	token := authorID
	if admin {
		token = ""
	}

	pin, err := c.queries.UpdatePin(ctx, id, patch, token)
	if err != nil {
		err = c.mapStoreError("update pin", id, err)
		c.notifyError("update", err)
		return model.Pin{}, err
	}

	c.replaceCached(pin)

	for _, o := range c.snapshotObservers() {
		o.PinUpdated(pin)
	}
	c.notifyPinsChanged()
	c.logEvent(ctx, model.EventLevelInfo, "pin updated", pin.ID)
	c.publish(ctx, feed.Event{Type: feed.ChangeUpdate, PinID: pin.ID, Pin: &pin, Origin: c.origin})

	return pin, nil
}

// Remove deletes a single pin under the same ownership rules as Update.
func (c *Coordinator) Remove(ctx context.Context, id, authorID string, admin bool) error {
	if !admin && authorID == "" {
		err := &OwnershipError{ID: id}
		c.notifyError("remove", err)
		return err
	}

	token := authorID
	if admin {
		token = ""
	}

	if err := c.queries.DeletePin(ctx, id, token); err != nil {
		err = c.mapStoreError("delete pin", id, err)
		c.notifyError("remove", err)
		return err
	}

	c.removeCached(id)

	for _, o := range c.snapshotObservers() {
		o.PinDeleted(id)
	}
	c.notifyPinsChanged()
	c.logEvent(ctx, model.EventLevelInfo, "pin deleted", id)
	c.publish(ctx, feed.Event{Type: feed.ChangeDelete, PinID: id, Origin: c.origin})

	return nil
}

// RemoveMany deletes the given pins. Admin only, also when called
// directly rather than through a handler.
func (c *Coordinator) RemoveMany(ctx context.Context, ids []string, admin bool) (int64, error) {
	if !admin {
		err := &AuthorizationError{Op: "bulk delete"}
		c.notifyError("remove_many", err)
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	n, err := c.queries.DeletePins(ctx, ids)
	if err != nil {
		rerr := &RemoteError{Op: "delete pins", Err: err}
		c.notifyError("remove_many", rerr)
		return 0, rerr
	}

	for _, id := range ids {
		c.removeCached(id)
		for _, o := range c.snapshotObservers() {
			o.PinDeleted(id)
		}
		c.publish(ctx, feed.Event{Type: feed.ChangeDelete, PinID: id, Origin: c.origin})
	}
	c.notifyPinsChanged()
	c.logEvent(ctx, model.EventLevelInfo, fmt.Sprintf("bulk delete removed %d pins", n), "")

	return n, nil
}

// RemoveAll clears the board. Admin only.
func (c *Coordinator) RemoveAll(ctx context.Context, admin bool) (int64, error) {
	if !admin {
		err := &AuthorizationError{Op: "delete all"}
		c.notifyError("remove_all", err)
		return 0, err
	}

	ids := make([]string, 0)
	c.mu.Lock()
	for _, p := range c.pins {
		ids = append(ids, p.ID)
	}
	c.mu.Unlock()

	n, err := c.queries.DeleteAllPins(ctx)
	if err != nil {
		rerr := &RemoteError{Op: "delete all pins", Err: err}
		c.notifyError("remove_all", rerr)
		return 0, rerr
	}

	c.mu.Lock()
	c.pins = nil
	c.mu.Unlock()

	for _, id := range ids {
		for _, o := range c.snapshotObservers() {
			o.PinDeleted(id)
		}
		c.publish(ctx, feed.Event{Type: feed.ChangeDelete, PinID: id, Origin: c.origin})
	}
	c.notifyPinsChanged()
	c.logEvent(ctx, model.EventLevelInfo, fmt.Sprintf("board cleared, %d pins removed", n), "")

	return n, nil
}

// Stats returns aggregate board statistics straight from the store.
func (c *Coordinator) Stats(ctx context.Context) (model.PinStats, error) {
	stats, err := c.queries.GetPinStats(ctx)
	if err != nil {
		rerr := &RemoteError{Op: "pin stats", Err: err}
		c.notifyError("stats", rerr)
		return model.PinStats{}, rerr
	}
	return stats, nil
}

// ApplyChange folds an externally produced feed event into the cache
// and reports whether the cache changed. Inserts are idempotent by id,
// updates replace by id and only when the incoming version is newer,
// deletes always win.
func (c *Coordinator) ApplyChange(ev feed.Event) bool {
	changed := false

	c.mu.Lock()
	switch ev.Type {
	case feed.ChangeInsert:
		if ev.Pin != nil && c.indexOf(ev.Pin.ID) < 0 {
			c.pins = append([]model.Pin{*ev.Pin}, c.pins...)
			changed = true
		}
	case feed.ChangeUpdate:
		// Updates for ids not in the cache are ignored rather than
		// inserted: applying one could resurrect a pin whose delete
		// already landed. The periodic full reload repairs any gap.
		if ev.Pin != nil {
			if i := c.indexOf(ev.Pin.ID); i >= 0 && ev.Pin.Version > c.pins[i].Version {
				c.pins[i] = *ev.Pin
				changed = true
			}
		}
	case feed.ChangeDelete:
		if i := c.indexOf(ev.PinID); i >= 0 {
			c.pins = append(c.pins[:i], c.pins[i+1:]...)
			changed = true
		}
	}
	c.mu.Unlock()

	if changed {
		c.notifyPinsChanged()
	}
	return changed
}

// Run consumes the local feed and applies events produced elsewhere,
// keeping this instance's cache converged. Blocks until ctx is done.
func (c *Coordinator) Run(ctx context.Context) {
	ch, unsub := c.broker.Subscribe()
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Origin == c.origin {
				continue
			}
			c.ApplyChange(ev)
		}
	}
}

// indexOf must be called with c.mu held.
func (c *Coordinator) indexOf(id string) int {
	for i, p := range c.pins {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (c *Coordinator) replaceCached(pin model.Pin) {
	c.mu.Lock()
	if i := c.indexOf(pin.ID); i >= 0 {
		c.pins[i] = pin
	}
	c.mu.Unlock()
}

func (c *Coordinator) removeCached(id string) {
	c.mu.Lock()
	if i := c.indexOf(id); i >= 0 {
		c.pins = append(c.pins[:i], c.pins[i+1:]...)
	}
	c.mu.Unlock()
}

func (c *Coordinator) notifyPinsChanged() {
	pins := c.Pins()
	for _, o := range c.snapshotObservers() {
		o.PinsChanged(pins)
	}
}

func (c *Coordinator) notifyError(op string, err error) {
	for _, o := range c.snapshotObservers() {
		o.BoardError(op, err)
	}
}

func (c *Coordinator) publish(ctx context.Context, ev feed.Event) {
	c.broker.Publish(ev)
	if c.remote != nil {
		if err := c.remote.Publish(ctx, ev); err != nil {
			c.log.Warn("publishing feed event", "type", ev.Type, "pin", ev.PinID, "error", err)
		}
	}
}

func (c *Coordinator) logEvent(ctx context.Context, level, message, pinID string) {
	metadata := "{}"
	if pinID != "" {
		metadata = fmt.Sprintf(`{"pin_id":%q}`, pinID)
	}
	if _, err := c.queries.CreateEvent(ctx, store.CreateEventParams{
		Level:    level,
		Category: model.EventCategoryPin,
		Message:  message,
		Metadata: metadata,
	}); err != nil {
		c.log.Warn("writing event log", "error", err)
	}
}

func (c *Coordinator) mapStoreError(op, id string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return &NotFoundError{ID: id}
	case errors.Is(err, store.ErrOwnerMismatch):
		return &OwnershipError{ID: id}
	default:
		return &RemoteError{Op: op, Err: err}
	}
}

// Field limits count characters, not bytes, so multibyte input keeps
// its full budget.
func validateDraft(d model.PinDraft) error {
	if d.Title == "" {
		return &ValidationError{Field: "title", Message: "is required"}
	}
	if utf8.RuneCountInString(d.Title) > model.MaxTitleLen {
		return &ValidationError{Field: "title", Message: fmt.Sprintf("must be at most %d characters", model.MaxTitleLen)}
	}
	if d.Content == "" {
		return &ValidationError{Field: "content", Message: "is required"}
	}
	if utf8.RuneCountInString(d.Content) > model.MaxContentLen {
		return &ValidationError{Field: "content", Message: fmt.Sprintf("must be at most %d characters", model.MaxContentLen)}
	}
	if utf8.RuneCountInString(d.Nickname) > model.MaxNicknameLen {
		return &ValidationError{Field: "nickname", Message: fmt.Sprintf("must be at most %d characters", model.MaxNicknameLen)}
	}
	if d.RPName == "" {
		return &ValidationError{Field: "rp_name", Message: "is required"}
	}
	if utf8.RuneCountInString(d.RPName) > model.MaxRPNameLen {
		return &ValidationError{Field: "rp_name", Message: fmt.Sprintf("must be at most %d characters", model.MaxRPNameLen)}
	}
	if !model.ValidMainNumber(d.MainNumber) {
		return &ValidationError{Field: "main_number", Message: "must be between 1 and 5"}
	}
	return nil
}

func validatePatch(p model.PinPatch) error {
	if p.Title != nil {
		if *p.Title == "" {
			return &ValidationError{Field: "title", Message: "is required"}
		}
		if utf8.RuneCountInString(*p.Title) > model.MaxTitleLen {
			return &ValidationError{Field: "title", Message: fmt.Sprintf("must be at most %d characters", model.MaxTitleLen)}
		}
	}
	if p.Content != nil {
		if *p.Content == "" {
			return &ValidationError{Field: "content", Message: "is required"}
		}
		if utf8.RuneCountInString(*p.Content) > model.MaxContentLen {
			return &ValidationError{Field: "content", Message: fmt.Sprintf("must be at most %d characters", model.MaxContentLen)}
		}
	}
	if p.Nickname != nil && utf8.RuneCountInString(*p.Nickname) > model.MaxNicknameLen {
		return &ValidationError{Field: "nickname", Message: fmt.Sprintf("must be at most %d characters", model.MaxNicknameLen)}
	}
	if p.RPName != nil {
		if *p.RPName == "" {
			return &ValidationError{Field: "rp_name", Message: "is required"}
		}
		if utf8.RuneCountInString(*p.RPName) > model.MaxRPNameLen {
			return &ValidationError{Field: "rp_name", Message: fmt.Sprintf("must be at most %d characters", model.MaxRPNameLen)}
		}
	}
	if p.MainNumber != nil && !model.ValidMainNumber(*p.MainNumber) {
		return &ValidationError{Field: "main_number", Message: "must be between 1 and 5"}
	}
	return nil
}
