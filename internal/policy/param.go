// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package policy implements the pluggable-algorithm and tunable-parameter
// registry (C12). Design note's tagged-union request replaces a
// union-plus-type-field with an explicit sum type; no teacher analogue
// exists for this (flywall has no equivalent pluggable-policy concept),
// so this is built directly against spec.md §4.10/§9.
package policy

import (
	"strconv"

	"rina.dev/ipcpd/internal/errors"
)

// String renders the live variant's value as text, for policy_param_list
// output (spec.md §6).
func (p ParamValue) String() string {
	switch p.Kind {
	case ParamInt:
		return strconv.FormatInt(p.IntVal, 10)
	case ParamBool:
		return strconv.FormatBool(p.BoolVal)
	case ParamString:
		return p.StrVal
	default:
		return ""
	}
}

// ParamKind discriminates which field of ParamValue is live.
type ParamKind int

const (
	ParamInt ParamKind = iota
	ParamBool
	ParamString
)

// ParamValue is the tagged-union parameter value: {Int(i64,min,max),
// Bool(bool), Str(string)}.
type ParamValue struct {
	Kind ParamKind

	IntVal       int64
	IntMin       int64
	IntMax       int64

	BoolVal bool

	StrVal string
}

// NewIntParam declares a ranged integer parameter.
func NewIntParam(val, min, max int64) ParamValue {
	return ParamValue{Kind: ParamInt, IntVal: val, IntMin: min, IntMax: max}
}

// NewBoolParam declares a boolean parameter.
func NewBoolParam(val bool) ParamValue {
	return ParamValue{Kind: ParamBool, BoolVal: val}
}

// NewStringParam declares a string parameter.
func NewStringParam(val string) ParamValue {
	return ParamValue{Kind: ParamString, StrVal: val}
}

// parse validates s against the variant's declared type (and range, for
// ints) and returns the new value without mutating the receiver — callers
// decide whether to commit it, so a rejected update leaves the parameter
// unchanged (spec.md §8 boundary condition).
func (p ParamValue) parse(s string) (ParamValue, error) {
	switch p.Kind {
	case ParamInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return ParamValue{}, errors.Wrapf(err, errors.KindConfig, "invalid integer %q", s)
		}
		if n < p.IntMin || n > p.IntMax {
			return ParamValue{}, errors.Errorf(errors.KindConfig, "value %d out of range [%d, %d]", n, p.IntMin, p.IntMax)
		}
		next := p
		next.IntVal = n
		return next, nil
	case ParamBool:
		switch s {
		case "true":
			next := p
			next.BoolVal = true
			return next, nil
		case "false":
			next := p
			next.BoolVal = false
			return next, nil
		default:
			return ParamValue{}, errors.Errorf(errors.KindConfig, "invalid bool %q, want \"true\" or \"false\"", s)
		}
	case ParamString:
		next := p
		next.StrVal = s
		return next, nil
	default:
		return ParamValue{}, errors.Errorf(errors.KindInternal, "unknown parameter kind %d", p.Kind)
	}
}
