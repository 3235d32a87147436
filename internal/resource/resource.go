// Package resource holds the uniform record model every API response is
// decoded into: a lazy key/value record with id coalescing, slugified
// human ids, and marker-based pagination.
package resource

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

// Record is a decoded resource envelope body. Typed wrappers in the manager
// layer expose accessors for the known fields; the record keeps everything
// the server sent, including fields this client predates.
type Record map[string]any

// FetchFunc re-fetches the record from its managing URL. A record holds at
// most one; it fires at most once.
type FetchFunc func(ctx context.Context) (Record, error)

// Lazy wraps a Record that may have been constructed from a partial
// representation (list responses often elide attributes). Accessing a
// missing attribute triggers a single re-fetch through the owning manager.
type Lazy struct {
	rec     Record
	fetch   FetchFunc
	fetched bool
}

func NewLazy(rec Record, fetch FetchFunc) *Lazy {
	return &Lazy{rec: rec, fetch: fetch}
}

// Get returns the attribute value, re-fetching the record once if the key
// is absent and a fetcher is attached.
func (l *Lazy) Get(ctx context.Context, key string) (any, error) {
	if v, ok := l.rec[key]; ok {
		return v, nil
	}
	if l.fetch == nil || l.fetched {
		return nil, nil
	}
	l.fetched = true
	fresh, err := l.fetch(ctx)
	if err != nil {
		return nil, err
	}
	for k, v := range fresh {
		l.rec[k] = v
	}
	return l.rec[key], nil
}

// Record returns the current record contents.
func (l *Lazy) Record() Record { return l.rec }

// ID returns the record's identifier: the "id" field, falling back to
// "str_id". Integer-like and opaque string ids both come back as strings.
func (r Record) ID() string {
	if id := stringify(r["id"]); id != "" {
		return id
	}
	return stringify(r["str_id"])
}

// Name returns the "name" field when present.
func (r Record) Name() string { return r.String("name") }

// HumanID is the slugified name, for collections addressed by human id.
func (r Record) HumanID() string { return Slugify(r.Name()) }

func (r Record) String(key string) string { return stringify(r[key]) }

func (r Record) Int(key string) (int, bool) {
	switch v := r[key].(type) {
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case int:
		return v, true
	}
	return 0, false
}

func (r Record) Bool(key string) bool {
	b, _ := r[key].(bool)
	return b
}

func (r Record) Map(key string) Record {
	if m, ok := r[key].(map[string]any); ok {
		return Record(m)
	}
	return nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	}
	return ""
}

// Slugify lowercases a name and folds every run of non-alphanumerics into a
// single hyphen, producing the record's human id.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// Link is a raw pagination link as the server returned it.
type Link struct {
	HRef string `json:"href"`
	Rel  string `json:"rel"`
}

// Paginated is one finite page of records plus the cursor to the next page.
// It is immutable once constructed; walking to the next page produces a new
// Paginated through the manager.
type Paginated struct {
	Items []Record
	Next  string
	Links []Link
}

// NextMarker extracts the marker query parameter from any rel=next link.
func NextMarker(links []Link) string {
	for _, l := range links {
		if l.Rel != "next" {
			continue
		}
		u, err := url.Parse(l.HRef)
		if err != nil {
			continue
		}
		if m := u.Query().Get("marker"); m != "" {
			return m
		}
	}
	return ""
}
