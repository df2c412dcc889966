package core

import (
	"sort"
	"sync"
)

// ── Registry ──────────────────────────────────────────────────────────────────

type codecs struct {
	dec Decoder
	enc Encoder
}

// DefaultRegistry is a thread-safe implementation of Registry.
type DefaultRegistry struct {
	mu      sync.RWMutex
	formats map[Format]codecs
}

// NewRegistry returns an empty DefaultRegistry.
func NewRegistry() *DefaultRegistry {
	return &DefaultRegistry{formats: make(map[Format]codecs)}
}

func (r *DefaultRegistry) RegisterDecoder(f Format, d Decoder) {
	r.mu.Lock()
	c := r.formats[f]
	c.dec = d
	r.formats[f] = c
	r.mu.Unlock()
}

func (r *DefaultRegistry) RegisterEncoder(f Format, e Encoder) {
	r.mu.Lock()
	c := r.formats[f]
	c.enc = e
	r.formats[f] = c
	r.mu.Unlock()
}

func (r *DefaultRegistry) DecoderFor(f Format) (Decoder, bool) {
	r.mu.RLock()
	d := r.formats[f].dec
	r.mu.RUnlock()
	return d, d != nil
}

func (r *DefaultRegistry) EncoderFor(f Format) (Encoder, bool) {
	r.mu.RLock()
	e := r.formats[f].enc
	r.mu.RUnlock()
	return e, e != nil
}

// Encodable lists the formats with a registered encoder, sorted.
func (r *DefaultRegistry) Encodable() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Format, 0, len(r.formats))
	for f, c := range r.formats {
		if c.enc != nil {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
