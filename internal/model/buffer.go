package model

import (
	"fmt"
	"strings"
)

// Origin tells where a destination buffer comes from.
type Origin int

const (
	// OriginStack is a fixed-size local array such as char buf[64].
	OriginStack Origin = iota

	// OriginHeap is a malloc'd block whose size may or may not be visible.
	OriginHeap

	// OriginParam is a pointer received as a function parameter.
	OriginParam
)

// String returns the name used in catalogue files.
func (o Origin) String() string {
	switch o {
	case OriginStack:
		return "stack"
	case OriginHeap:
		return "heap"
	case OriginParam:
		return "param"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Origin) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Origin) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "stack", "":
		*o = OriginStack
	case "heap":
		*o = OriginHeap
	case "param":
		*o = OriginParam
	default:
		return fmt.Errorf("unknown buffer origin %q", text)
	}
	return nil
}

// Buffer is a destination buffer as seen from the scanning call site.
type Buffer struct {
	// Name is the variable name, used in reports.
	Name string `json:"name" yaml:"name"`

	// Capacity is the allocation size in bytes. Meaningful only when Known.
	Capacity int `json:"capacity,omitempty" yaml:"capacity,omitempty"`

	// Known reports whether Capacity can be determined at the call site.
	Known bool `json:"known" yaml:"known"`

	// Origin is where the storage comes from.
	Origin Origin `json:"origin" yaml:"origin"`
}

// Arg is one variadic argument of a scanf call. Exactly one of Buffer or
// Scalar is meaningful.
type Arg struct {
	// Buffer is the destination when the argument is a character buffer.
	Buffer *Buffer `json:"buffer,omitempty" yaml:"buffer,omitempty"`

	// Scalar names a non-buffer destination such as &i.
	Scalar string `json:"scalar,omitempty" yaml:"scalar,omitempty"`
}

// IsBuffer reports whether the argument is a character buffer.
func (a Arg) IsBuffer() bool {
	return a.Buffer != nil
}

// Name returns the argument's variable name.
func (a Arg) Name() string {
	if a.Buffer != nil {
		return a.Buffer.Name
	}
	return a.Scalar
}
