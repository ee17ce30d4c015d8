// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// Category identifies the kind of audio component.
type Category string

// Supported component categories.
const (
	CategoryHeadphone Category = "headphone"
	CategoryIEM       Category = "iem"
	CategoryDAC       Category = "dac"
	CategoryAmp       Category = "amp"
	CategoryDACAmp    Category = "dac_amp"
)

// ErrUnknownCategory is returned when a category name cannot be parsed.
var ErrUnknownCategory = errors.New("unknown category")

// AllCategories lists every category in canonical order.
func AllCategories() []Category {
	return []Category{CategoryHeadphone, CategoryIEM, CategoryDAC, CategoryAmp, CategoryDACAmp}
}

var categoryAliases = map[string]Category{
	"headphone":  CategoryHeadphone,
	"headphones": CategoryHeadphone,
	"cans":       CategoryHeadphone,
	"iem":        CategoryIEM,
	"iems":       CategoryIEM,
	"earphones":  CategoryIEM,
	"dac":        CategoryDAC,
	"dacs":       CategoryDAC,
	"amp":        CategoryAmp,
	"amps":       CategoryAmp,
	"amplifier":  CategoryAmp,
	"amplifiers": CategoryAmp,
	"dac_amp":    CategoryDACAmp,
	"dac-amp":    CategoryDACAmp,
	"dacamp":     CategoryDACAmp,
	"dac/amp":    CategoryDACAmp,
	"combo":      CategoryDACAmp,
}

// ParseCategory converts a user supplied name (or alias) into a Category.
func ParseCategory(s string) (Category, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if c, ok := categoryAliases[key]; ok {
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Valid reports whether c is one of the canonical categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryHeadphone, CategoryIEM, CategoryDAC, CategoryAmp, CategoryDACAmp:
		return true
	}
	return false
}

// IsTransducer reports whether c produces sound (headphones and IEMs).
func (c Category) IsTransducer() bool {
	return c == CategoryHeadphone || c == CategoryIEM
}

// IsSignalChain reports whether c sits between the source and the transducer.
func (c Category) IsSignalChain() bool {
	return c == CategoryDAC || c == CategoryAmp || c == CategoryDACAmp
}

// IsAmplifying reports whether c can drive a headphone.
func (c Category) IsAmplifying() bool {
	return c == CategoryAmp || c == CategoryDACAmp
}

func (c Category) String() string { return string(c) }
