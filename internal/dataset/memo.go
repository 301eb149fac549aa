package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMemoSize = 16

// Memo caches derived datasets keyed by a fingerprint of the raw rows.
type Memo struct {
	cache *lru.Cache[string, Dataset]
}

// NewMemo builds a memo holding up to size derived datasets.
func NewMemo(size int) (*Memo, error) {
	if size <= 0 {
		size = defaultMemoSize
	}
	cache, err := lru.New[string, Dataset](size)
	if err != nil {
		return nil, fmt.Errorf("create derive memo: %w", err)
	}
	return &Memo{cache: cache}, nil
}

// Derive returns the cached dataset for raw, deriving it on a miss.
// hit reports whether the result came from the cache.
func (m *Memo) Derive(raw []RawObservation) (ds Dataset, hit bool, err error) {
	key := Fingerprint(raw)
	if cached, ok := m.cache.Get(key); ok {
		return cached, true, nil
	}

	ds, err = Derive(raw)
	if err != nil {
		return Dataset{}, false, err
	}
	m.cache.Add(key, ds)
	return ds, false, nil
}

// Purge drops every cached dataset.
func (m *Memo) Purge() {
	m.cache.Purge()
}

// Len returns the number of cached datasets.
func (m *Memo) Len() int {
	return m.cache.Len()
}

// Fingerprint hashes the raw rows in order.
func Fingerprint(raw []RawObservation) string {
	h := sha256.New()
	for _, r := range raw {
		fmt.Fprintf(h, "%d|%s|%s|%s\n", r.Year, r.GDP.String(), r.ExternalDebt.String(), r.DomesticDebt.String())
	}
	return hex.EncodeToString(h.Sum(nil))
}
