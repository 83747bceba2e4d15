// Package distill turns raw input into candidate memories and screens them
// before they reach the record store.
//
// Distillation is a conservative local fallback: sentence-like segments
// become low-confidence raw fragments. Higher-quality extraction is a
// reasoning backend concern.
package distill

import (
	"strings"
	"time"

	"github.com/scrypster/mneme/pkg/types"
)

const (
	// MaxSegments bounds the candidates produced by a single Distill call.
	MaxSegments = 5

	// DefaultConfidence is assigned to every distilled fragment.
	DefaultConfidence = 0.4

	defaultSalience = 0.5
	defaultTrust    = 0.5

	// DefaultEntity is the entity of distilled fragments.
	DefaultEntity = "user"
)

// Segments splits raw into trimmed, non-empty sentence-like segments,
// at most MaxSegments of them.
func Segments(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		switch r {
		case '.', '!', '?', '\n':
			return true
		}
		return false
	})

	segments := make([]string, 0, MaxSegments)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		segments = append(segments, p)
		if len(segments) == MaxSegments {
			break
		}
	}
	return segments
}

// Distill emits one raw candidate memory per segment of raw.
func Distill(raw string, now time.Time) []*types.Memory {
	segments := Segments(raw)
	candidates := make([]*types.Memory, 0, len(segments))
	for _, s := range segments {
		candidates = append(candidates, types.NewMemory(types.MemoryInput{
			Content:    s,
			Domain:     types.DomainGeneral,
			Type:       types.TypeRaw,
			Entity:     DefaultEntity,
			Speaker:    types.SpeakerUser,
			Confidence: DefaultConfidence,
			Salience:   defaultSalience,
			TrustScore: defaultTrust,
		}, now))
	}
	return candidates
}
