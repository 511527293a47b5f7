// Package quantize - Derivation of 8-bit copies of classifiers.
package quantize

import (
	"strings"

	"github.com/pkg/errors"
)

// Kind is a post-training quantization scheme.
type Kind string

const (
	// KindDynamic quantizes weights ahead of time and activations on the fly per inference.
	KindDynamic Kind = "dynamic"
	// KindStatic quantizes weights and activations ahead of time, with activation ranges fixed
	// from calibration data.
	KindStatic Kind = "static"
)

// Kinds lists every kind in the order variants are derived and reported.
var Kinds = []Kind{KindDynamic, KindStatic}

// ParseKind converts a configuration string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindDynamic:
		return KindDynamic, nil
	case KindStatic:
		return KindStatic, nil
	default:
		return "", errors.Errorf("unknown quantization kind %q", s)
	}
}
