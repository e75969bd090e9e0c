package recordstore

import (
	"encoding/json"
	"fmt"
	"time"

	"smart-money-tracker/internal/storage"
)

// manifestVersion is the anchor/page format version.
const manifestVersion = 1

// envelope is the on-substrate form of one record.
type envelope struct {
	Version   int             `json:"v"`
	Key       string          `json:"k"`
	CreatedAt int64           `json:"c"` // unix ms
	UpdatedAt int64           `json:"u"` // unix ms
	Data      json.RawMessage `json:"d"`
}

func encodeEntry[T any](e *Entry[T]) ([]byte, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal %q: %w", e.Key, err)
	}
	return json.Marshal(envelope{
		Version:   e.Meta.Version,
		Key:       e.Key,
		CreatedAt: e.Meta.CreatedAt.UnixMilli(),
		UpdatedAt: e.Meta.UpdatedAt.UnixMilli(),
		Data:      data,
	})
}

func decodeEntry[T any](raw []byte, h storage.Handle) (*Entry[T], error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Key == "" {
		return nil, fmt.Errorf("envelope without key")
	}
	e := &Entry[T]{
		Key: env.Key,
		Meta: Meta{
			Version:   env.Version,
			CreatedAt: time.UnixMilli(env.CreatedAt).UTC(),
			UpdatedAt: time.UnixMilli(env.UpdatedAt).UTC(),
			Handle:    h,
		},
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &e.Data); err != nil {
			return nil, fmt.Errorf("unmarshal %q: %w", env.Key, err)
		}
	}
	return e, nil
}

// manifestEntry is a [key, handle] pair.
type manifestEntry struct {
	Key    string
	Handle storage.Handle
}

func (m manifestEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{m.Key, int64(m.Handle)})
}

func (m *manifestEntry) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("manifest entry: want 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &m.Key); err != nil {
		return fmt.Errorf("manifest entry key: %w", err)
	}
	var h int64
	if err := json.Unmarshal(pair[1], &h); err != nil {
		return fmt.Errorf("manifest entry handle: %w", err)
	}
	m.Handle = storage.Handle(h)
	return nil
}

// manifest is the anchor payload. Entries are inline when they fit, otherwise
// they are spread across page records listed in Pages.
type manifest struct {
	Version int              `json:"v"`
	Pages   []storage.Handle `json:"pages,omitempty"`
	Entries []manifestEntry  `json:"entries,omitempty"`
}

// paginate splits entries into pages that each encode within limit bytes.
func paginate(entries []manifestEntry, limit int) ([][]byte, error) {
	base := len(fmt.Sprintf(`{"v":%d,"entries":[]}`, manifestVersion))

	var pages [][]byte
	var cur []manifestEntry
	size := base

	flush := func() error {
		if len(cur) == 0 {
			return nil
		}
		raw, err := json.Marshal(manifest{Version: manifestVersion, Entries: cur})
		if err != nil {
			return err
		}
		pages = append(pages, raw)
		cur, size = nil, base
		return nil
	}

	for _, e := range entries {
		raw, err := e.MarshalJSON()
		if err != nil {
			return nil, err
		}
		add := len(raw)
		if len(cur) > 0 {
			add++ // comma
		}
		if size+add > limit && len(cur) > 0 {
			if err := flush(); err != nil {
				return nil, err
			}
			add = len(raw)
		}
		if size+add > limit {
			return nil, fmt.Errorf("manifest entry %q alone exceeds %d bytes", e.Key, limit)
		}
		cur = append(cur, e)
		size += add
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return pages, nil
}
