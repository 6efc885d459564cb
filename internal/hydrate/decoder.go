// Package hydrate turns loosely typed document payloads (YAML or JSON maps)
// into typed values, with hooks around the decode step.
package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Source identifies where a payload came from. It is passed to hooks and
// used in error messages.
type Source struct {
	Path  string
	Layer string
}

func (s Source) String() string {
	if s.Layer == "" {
		return s.Path
	}
	return s.Layer + ":" + s.Path
}

// PreHook rewrites the raw payload before decoding.
type PreHook func(Source, map[string]any) (map[string]any, error)

// PostHook adjusts or validates the typed value after decoding.
type PostHook[T any] func(Source, *T) error

// DecoderOption configures a Decoder.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts payload maps into T through a JSON round trip, so T only
// needs json tags.
type Decoder[T any] struct {
	preHooks      []PreHook
	postHooks     []PostHook[T]
	strictUnknown bool
}

// WithPreHook applies hook prior to decoding.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook after decoding completes.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithDisallowUnknownFields rejects payload keys T does not declare.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.strictUnknown = true
	}
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// DecodeYAML parses raw as a YAML mapping and decodes it. An empty document
// decodes to the zero value of T before post hooks run.
func (d *Decoder[T]) DecodeYAML(src Source, raw []byte) (T, error) {
	var zero T
	payload := map[string]any{}
	if err := yaml.Unmarshal(raw, &payload); err != nil {
		return zero, fmt.Errorf("hydrate: parse yaml %s: %w", src, err)
	}
	return d.Decode(src, payload)
}

// Decode converts payload into T applying the configured hooks. payload is
// not modified.
func (d *Decoder[T]) Decode(src Source, payload map[string]any) (T, error) {
	var zero T

	if payload == nil {
		return zero, fmt.Errorf("hydrate: payload is nil for %s", src)
	}

	current, err := clonePayload(payload)
	if err != nil {
		return zero, fmt.Errorf("hydrate: clone payload for %s: %w", src, err)
	}

	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(src, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: pre-hook for %s failed: %w", src, err)
		}
		if next != nil {
			current = next
		}
	}

	buffer, err := json.Marshal(current)
	if err != nil {
		return zero, fmt.Errorf("hydrate: marshal payload for %s: %w", src, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(buffer))
	if d.strictUnknown {
		decoder.DisallowUnknownFields()
	}
	var result T
	if err := decoder.Decode(&result); err != nil {
		return zero, fmt.Errorf("hydrate: decode %s: %w", src, err)
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(src, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook for %s failed: %w", src, err)
		}
	}

	return result, nil
}

func clonePayload(payload map[string]any) (map[string]any, error) {
	buffer, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(buffer, &out); err != nil {
		return nil, err
	}
	return out, nil
}
