// Package recordstore persists small JSON records on a size-limited message
// substrate. Each Partition keeps an in-process cache that is repopulated at
// start-up from the partition's pinned anchor manifest.
package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"smart-money-tracker/internal/storage"
)

// Meta is the metadata the store adds to every record.
type Meta struct {
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
	Handle    storage.Handle // zero until the record is written
}

// Entry is one cached record.
type Entry[T any] struct {
	Key  string
	Data T
	Meta Meta
}

// Policy describes one partition's record type.
type Policy[T any] struct {
	// Name is the substrate partition name.
	Name string
	// Version is written into every envelope.
	Version int
	// Merge combines a cached record with an update. Nil means the update replaces it.
	Merge func(existing, incoming T) T
	// Expiry returns when a record expires; false means never.
	Expiry func(e Entry[T]) (time.Time, bool)
	// Clone deep-copies a record. Nil means plain assignment is a safe copy.
	Clone func(T) T
	// Normalize fixes up a record after decoding (e.g. restores ring capacities).
	Normalize func(*T)
}

// Observer is notified of every substrate operation.
type Observer func(partition, op string, err error)

type options struct {
	now     func() time.Time
	logger  zerolog.Logger
	observe Observer
}

// Option configures a Partition.
type Option func(*options)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithObserver registers a substrate operation callback.
func WithObserver(fn Observer) Option {
	return func(o *options) {
		o.observe = fn
	}
}

// Partition is a cached, typed view of one substrate partition.
// It is safe for concurrent use.
type Partition[T any] struct {
	sub    storage.Substrate
	policy Policy[T]
	opts   options
	logger zerolog.Logger

	mu            sync.Mutex
	entries       map[string]*Entry[T]
	dirty         map[string]struct{}
	unread        map[string]storage.Handle // listed in the manifest but not readable at load
	anchor        storage.Handle
	pages         []storage.Handle
	manifestDirty bool
	loaded        bool
}

// NewPartition creates an empty partition. Call Load before relying on Get.
func NewPartition[T any](sub storage.Substrate, policy Policy[T], opts ...Option) *Partition[T] {
	o := options{now: time.Now, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Partition[T]{
		sub:     sub,
		policy:  policy,
		opts:    o,
		logger:  o.logger.With().Str("partition", policy.Name).Logger(),
		entries: make(map[string]*Entry[T]),
		dirty:   make(map[string]struct{}),
		unread:  make(map[string]storage.Handle),
	}
}

// Name returns the partition name.
func (p *Partition[T]) Name() string {
	return p.policy.Name
}

// Store writes a new record. A key that already has a substrate record
// returns storage.ErrDuplicateKey. On a loaded partition the anchor is
// rewritten too, so the record survives a restart; if only that rewrite
// fails the handle is returned with the error and the next Flush retries
// it. Before Load the record reaches the anchor on the first Flush after
// Load.
func (p *Partition[T]) Store(ctx context.Context, key string, payload T) (storage.Handle, error) {
	if key == "" {
		return 0, fmt.Errorf("%s: empty key: %w", p.policy.Name, storage.ErrInvalidInput)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.storeLocked(ctx, key, payload)
}

func (p *Partition[T]) storeLocked(ctx context.Context, key string, payload T) (storage.Handle, error) {
	prev, ok := p.entries[key]
	if ok && prev.Meta.Handle != 0 {
		return 0, fmt.Errorf("%s %q: %w", p.policy.Name, key, storage.ErrDuplicateKey)
	}

	now := p.opts.now()
	e := &Entry[T]{
		Key:  key,
		Data: p.clone(payload),
		Meta: Meta{Version: p.policy.Version, CreatedAt: now, UpdatedAt: now},
	}
	if ok {
		e.Meta.CreatedAt = prev.Meta.CreatedAt
	}

	if err := p.write(ctx, e); err != nil {
		return 0, err
	}
	p.entries[key] = e
	delete(p.dirty, key)
	return e.Meta.Handle, p.syncManifest(ctx)
}

// syncManifest rewrites the anchor after an immediate write moved a handle.
func (p *Partition[T]) syncManifest(ctx context.Context) error {
	if !p.loaded || !p.manifestDirty {
		return nil
	}
	if err := p.writeManifest(ctx); err != nil {
		return fmt.Errorf("%s manifest: %w", p.policy.Name, err)
	}
	return nil
}

// Update merges payload into the cached record and edits it in place. If the
// edit fails a fresh record is posted, the old one deleted and the anchor
// rewritten as in Store. An unknown key behaves exactly like Store.
func (p *Partition[T]) Update(ctx context.Context, key string, payload T) (storage.Handle, error) {
	if key == "" {
		return 0, fmt.Errorf("%s: empty key: %w", p.policy.Name, storage.ErrInvalidInput)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	prev, ok := p.entries[key]
	if !ok || prev.Meta.Handle == 0 {
		if ok {
			payload = p.merge(prev.Data, payload)
		}
		return p.storeLocked(ctx, key, payload)
	}

	next := &Entry[T]{
		Key:  key,
		Data: p.merge(prev.Data, payload),
		Meta: Meta{
			Version:   p.policy.Version,
			CreatedAt: prev.Meta.CreatedAt,
			UpdatedAt: p.opts.now(),
			Handle:    prev.Meta.Handle,
		},
	}
	if err := p.write(ctx, next); err != nil {
		return 0, err
	}
	p.entries[key] = next
	delete(p.dirty, key)
	return next.Meta.Handle, p.syncManifest(ctx)
}

// Upsert updates a known key and stores an unknown one.
func (p *Partition[T]) Upsert(ctx context.Context, key string, payload T) (storage.Handle, error) {
	return p.Update(ctx, key, payload)
}

// Get returns a copy of the cached record. It never reads the substrate.
func (p *Partition[T]) Get(key string) (Entry[T], bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[key]
	if !ok {
		return Entry[T]{}, false
	}
	return Entry[T]{Key: e.Key, Data: p.clone(e.Data), Meta: e.Meta}, true
}

// Put replaces the cached record and marks it for the next Flush.
// The record is size-checked immediately.
func (p *Partition[T]) Put(key string, payload T) error {
	if key == "" {
		return fmt.Errorf("%s: empty key: %w", p.policy.Name, storage.ErrInvalidInput)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.opts.now()
	e := &Entry[T]{
		Key:  key,
		Data: p.clone(payload),
		Meta: Meta{Version: p.policy.Version, CreatedAt: now, UpdatedAt: now},
	}
	if prev, ok := p.entries[key]; ok {
		e.Meta.CreatedAt = prev.Meta.CreatedAt
		e.Meta.Handle = prev.Meta.Handle
	}
	if _, err := p.encode(e); err != nil {
		return err
	}
	p.entries[key] = e
	p.dirty[key] = struct{}{}
	return nil
}

// Flush writes every record staged by Put, then rewrites the anchor manifest
// if any handle changed. Records that fail stay staged. A partition that was
// never loaded refuses to flush so it cannot replace a pinned anchor it has
// not read.
func (p *Partition[T]) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.loaded {
		if len(p.dirty) == 0 && !p.manifestDirty {
			return nil
		}
		return fmt.Errorf("%w: %s flushed before load", ErrStoreUnavailable, p.policy.Name)
	}

	keys := make([]string, 0, len(p.dirty))
	for k := range p.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		e, ok := p.entries[k]
		if !ok {
			delete(p.dirty, k)
			continue
		}
		if err := p.write(ctx, e); err != nil {
			errs = append(errs, err)
			continue
		}
		delete(p.dirty, k)
	}

	if p.manifestDirty {
		if err := p.writeManifest(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s manifest: %w", p.policy.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Load repopulates the cache from the pinned anchor manifest. A partition
// without an anchor loads empty. Records staged locally are kept.
func (p *Partition[T]) Load(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	h, err := p.sub.Anchor(ctx, p.policy.Name)
	p.observe("anchor", err)
	if errors.Is(err, storage.ErrNoAnchor) {
		p.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s anchor: %v", ErrStoreUnavailable, p.policy.Name, err)
	}

	raw, err := p.sub.Read(ctx, p.policy.Name, h)
	p.observe("read", err)
	if errors.Is(err, storage.ErrNotFound) {
		p.logger.Warn().Msg("pinned anchor is gone, starting empty")
		p.loaded = true
		p.manifestDirty = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s anchor read: %v", ErrStoreUnavailable, p.policy.Name, err)
	}

	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("%w: %s anchor decode: %v", ErrStoreUnavailable, p.policy.Name, err)
	}
	p.anchor = h

	list := m.Entries
	p.pages = nil
	for _, ph := range m.Pages {
		raw, err := p.sub.Read(ctx, p.policy.Name, ph)
		p.observe("read", err)
		if errors.Is(err, storage.ErrNotFound) {
			p.logger.Warn().Int64("page", int64(ph)).Msg("manifest page is gone")
			p.manifestDirty = true
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %s manifest page: %v", ErrStoreUnavailable, p.policy.Name, err)
		}
		var page manifest
		if err := json.Unmarshal(raw, &page); err != nil {
			return fmt.Errorf("%w: %s manifest page decode: %v", ErrStoreUnavailable, p.policy.Name, err)
		}
		list = append(list, page.Entries...)
		p.pages = append(p.pages, ph)
	}

	failed := 0
	for _, me := range list {
		if _, ok := p.entries[me.Key]; ok {
			continue
		}
		raw, err := p.sub.Read(ctx, p.policy.Name, me.Handle)
		p.observe("read", err)
		if errors.Is(err, storage.ErrNotFound) {
			p.manifestDirty = true
			continue
		}
		if err != nil {
			p.unread[me.Key] = me.Handle
			failed++
			continue
		}
		e, err := decodeEntry[T](raw, me.Handle)
		if err != nil || e.Key != me.Key {
			p.logger.Error().Err(err).Str("key", me.Key).Msg("undecodable record dropped from manifest")
			p.manifestDirty = true
			continue
		}
		if p.policy.Normalize != nil {
			p.policy.Normalize(&e.Data)
		}
		p.entries[me.Key] = e
	}

	if failed > 0 && failed == len(list) {
		return fmt.Errorf("%w: %s: none of %d records readable", ErrStoreUnavailable, p.policy.Name, failed)
	}
	if failed > 0 {
		p.logger.Warn().Int("unread", failed).Int("loaded", len(p.entries)).Msg("partition loaded partially")
	}
	p.loaded = true
	return nil
}

// Sweep deletes records whose policy expiry is at or before now. Records
// already gone from the substrate are evicted silently.
func (p *Partition[T]) Sweep(ctx context.Context, now time.Time) (int, error) {
	if p.policy.Expiry == nil {
		return 0, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.loaded {
		return 0, fmt.Errorf("%w: %s swept before load", ErrStoreUnavailable, p.policy.Name)
	}

	keys := make([]string, 0, len(p.entries))
	for k := range p.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	removed := 0
	for _, k := range keys {
		e := p.entries[k]
		exp, ok := p.policy.Expiry(*e)
		if !ok || now.Before(exp) {
			continue
		}
		if e.Meta.Handle != 0 {
			err := p.sub.Delete(ctx, p.policy.Name, e.Meta.Handle)
			p.observe("delete", err)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				errs = append(errs, fmt.Errorf("%s %q: %w", p.policy.Name, k, err))
				continue
			}
		}
		delete(p.entries, k)
		delete(p.dirty, k)
		removed++
	}

	if removed > 0 {
		p.manifestDirty = true
		if err := p.writeManifest(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s manifest: %w", p.policy.Name, err))
		}
		p.logger.Info().Int("removed", removed).Msg("retention sweep")
	}
	return removed, errors.Join(errs...)
}

// Entries returns copies of all cached records ordered by key.
func (p *Partition[T]) Entries() []Entry[T] {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Entry[T], 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, Entry[T]{Key: e.Key, Data: p.clone(e.Data), Meta: e.Meta})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Len returns the number of cached records.
func (p *Partition[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Pending returns the number of records staged for the next Flush.
func (p *Partition[T]) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.dirty)
}

// Loaded reports whether Load has completed successfully.
func (p *Partition[T]) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

func (p *Partition[T]) clone(v T) T {
	if p.policy.Clone == nil {
		return v
	}
	return p.policy.Clone(v)
}

func (p *Partition[T]) merge(existing, incoming T) T {
	if p.policy.Merge == nil {
		return p.clone(incoming)
	}
	return p.policy.Merge(p.clone(existing), p.clone(incoming))
}

func (p *Partition[T]) observe(op string, err error) {
	if p.opts.observe != nil {
		p.opts.observe(p.policy.Name, op, err)
	}
}

// encode serializes e and enforces the substrate ceiling.
func (p *Partition[T]) encode(e *Entry[T]) ([]byte, error) {
	raw, err := encodeEntry(e)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.policy.Name, err)
	}
	if limit := p.sub.MaxPayload(); len(raw) > limit {
		return nil, &TooLargeError{Partition: p.policy.Name, Key: e.Key, Size: len(raw), Limit: limit}
	}
	return raw, nil
}

// write edits e in place when it has a handle, otherwise (or if the edit
// fails) posts it and deletes the previous record. e.Meta.Handle is updated.
func (p *Partition[T]) write(ctx context.Context, e *Entry[T]) error {
	raw, err := p.encode(e)
	if err != nil {
		return err
	}

	if e.Meta.Handle != 0 {
		err := p.sub.Edit(ctx, p.policy.Name, e.Meta.Handle, raw)
		p.observe("edit", err)
		if err == nil {
			return nil
		}
		p.logger.Debug().Err(err).Str("key", e.Key).Msg("edit failed, reposting")
	}

	h, err := p.sub.Post(ctx, p.policy.Name, raw)
	p.observe("post", err)
	if err != nil {
		return fmt.Errorf("%s %q: %w", p.policy.Name, e.Key, err)
	}

	stale := []storage.Handle{e.Meta.Handle}
	if old, ok := p.unread[e.Key]; ok {
		stale = append(stale, old)
		delete(p.unread, e.Key)
	}
	for _, old := range stale {
		if old == 0 {
			continue
		}
		if err := p.sub.Delete(ctx, p.policy.Name, old); err != nil && !errors.Is(err, storage.ErrNotFound) {
			p.logger.Debug().Err(err).Str("key", e.Key).Msg("stale record not deleted")
		}
	}

	e.Meta.Handle = h
	p.manifestDirty = true
	return nil
}

// writeManifest rewrites the anchor so it lists every written record.
func (p *Partition[T]) writeManifest(ctx context.Context) error {
	list := make([]manifestEntry, 0, len(p.entries)+len(p.unread))
	for k, e := range p.entries {
		if e.Meta.Handle != 0 {
			list = append(list, manifestEntry{Key: k, Handle: e.Meta.Handle})
		}
	}
	for k, h := range p.unread {
		if _, ok := p.entries[k]; !ok {
			list = append(list, manifestEntry{Key: k, Handle: h})
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })

	limit := p.sub.MaxPayload()
	anchorRaw, err := json.Marshal(manifest{Version: manifestVersion, Entries: list})
	if err != nil {
		return err
	}

	var newPages []storage.Handle
	discard := func() {
		for _, h := range newPages {
			_ = p.sub.Delete(ctx, p.policy.Name, h)
		}
	}

	if len(anchorRaw) > limit {
		pages, err := paginate(list, limit)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRecordTooLarge, err)
		}
		for _, raw := range pages {
			h, err := p.sub.Post(ctx, p.policy.Name, raw)
			p.observe("post", err)
			if err != nil {
				discard()
				return err
			}
			newPages = append(newPages, h)
		}
		anchorRaw, err = json.Marshal(manifest{Version: manifestVersion, Pages: newPages})
		if err != nil {
			discard()
			return err
		}
		if len(anchorRaw) > limit {
			discard()
			return &TooLargeError{Partition: p.policy.Name, Key: "anchor", Size: len(anchorRaw), Limit: limit}
		}
	}

	if err := p.setAnchor(ctx, anchorRaw); err != nil {
		discard()
		return err
	}

	for _, h := range p.pages {
		if err := p.sub.Delete(ctx, p.policy.Name, h); err != nil && !errors.Is(err, storage.ErrNotFound) {
			p.logger.Debug().Err(err).Int64("page", int64(h)).Msg("stale manifest page not deleted")
		}
	}
	p.pages = newPages
	p.manifestDirty = false
	return nil
}

func (p *Partition[T]) setAnchor(ctx context.Context, raw []byte) error {
	if p.anchor != 0 {
		err := p.sub.Edit(ctx, p.policy.Name, p.anchor, raw)
		p.observe("edit", err)
		if err == nil {
			return nil
		}
	}

	h, err := p.sub.Post(ctx, p.policy.Name, raw)
	p.observe("post", err)
	if err != nil {
		return err
	}
	if err := p.sub.Pin(ctx, p.policy.Name, h); err != nil {
		p.observe("pin", err)
		_ = p.sub.Delete(ctx, p.policy.Name, h)
		return err
	}

	old := p.anchor
	p.anchor = h
	if old != 0 {
		_ = p.sub.Delete(ctx, p.policy.Name, old)
	}
	return nil
}
