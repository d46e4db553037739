// Package language holds the supported-language directory. The set
// changes rarely, so it is loaded once into an immutable snapshot and
// read lock-free on every request.
package language

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
)

var ErrNotFound = errors.New("language: not found")

// Language is one supported locale.
type Language struct {
	Code       string
	Name       string
	NativeName string
	IsDefault  bool
}

// Store loads the directory from persistence.
type Store interface {
	All(ctx context.Context) ([]Language, error)
}

type snapshot struct {
	byCode map[string]Language
	all    []Language
	def    Language
}

// Cache is a process-wide immutable snapshot of the directory. Reads
// never block; Init swaps the whole snapshot atomically.
type Cache struct {
	store Store
	snap  atomic.Pointer[snapshot]
}

func NewCache(store Store) *Cache {
	return &Cache{store: store}
}

// Init loads the directory and publishes it. Callable again at runtime
// to pick up changes; readers see either the old set or the new one,
// never a partial mix. At least one language must be marked default.
func (c *Cache) Init(ctx context.Context) error {
	langs, err := c.store.All(ctx)
	if err != nil {
		return fmt.Errorf("load languages: %w", err)
	}
	if len(langs) == 0 {
		return errors.New("language: empty directory")
	}

	s := &snapshot{byCode: make(map[string]Language, len(langs))}
	for _, l := range langs {
		l.Code = strings.ToLower(l.Code)
		s.byCode[l.Code] = l
		s.all = append(s.all, l)
		if l.IsDefault {
			s.def = l
		}
	}
	if s.def.Code == "" {
		return errors.New("language: no default language configured")
	}
	sort.Slice(s.all, func(i, j int) bool { return s.all[i].Code < s.all[j].Code })

	c.snap.Store(s)
	return nil
}

func (c *Cache) load() *snapshot {
	s := c.snap.Load()
	if s == nil {
		panic("language: cache read before Init")
	}
	return s
}

// All returns the supported languages sorted by code.
func (c *Cache) All() []Language {
	return c.load().all
}

// Default returns the fallback language. It is always a member of All.
func (c *Cache) Default() Language {
	return c.load().def
}

// Get looks a language up by code, case-insensitively.
func (c *Cache) Get(code string) (Language, error) {
	l, ok := c.load().byCode[strings.ToLower(code)]
	if !ok {
		return Language{}, ErrNotFound
	}
	return l, nil
}

// GetOrDefault returns the language for code, or the default when the
// code is empty or unsupported.
func (c *Cache) GetOrDefault(code string) Language {
	if l, err := c.Get(code); err == nil {
		return l
	}
	return c.Default()
}

// Resolve picks a locale for a request. A pinned route code wins when
// supported; otherwise the Accept-Language header is negotiated against
// the directory; otherwise the default applies.
func (c *Cache) Resolve(pinned, acceptLanguage string) Language {
	if pinned != "" {
		if l, err := c.Get(pinned); err == nil {
			return l
		}
	}
	for _, code := range negotiate(acceptLanguage) {
		if l, err := c.Get(code); err == nil {
			return l
		}
	}
	return c.Default()
}

// negotiate parses an Accept-Language header into candidate codes in
// descending q order. Region subtags are reduced to the base language.
func negotiate(header string) []string {
	type candidate struct {
		code string
		q    float64
	}
	var cands []candidate
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, params, _ := strings.Cut(part, ";")
		code = strings.ToLower(strings.TrimSpace(code))
		if code == "" || code == "*" {
			continue
		}
		if base, _, found := strings.Cut(code, "-"); found {
			code = base
		}
		q := 1.0
		if params != "" {
			for _, p := range strings.Split(params, ";") {
				k, v, _ := strings.Cut(strings.TrimSpace(p), "=")
				if k == "q" {
					if parsed, err := strconv.ParseFloat(v, 64); err == nil {
						q = parsed
					}
				}
			}
		}
		cands = append(cands, candidate{code: code, q: q})
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].q > cands[j].q })

	seen := make(map[string]bool, len(cands))
	var codes []string
	for _, c := range cands {
		if !seen[c.code] {
			seen[c.code] = true
			codes = append(codes, c.code)
		}
	}
	return codes
}
