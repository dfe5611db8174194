// Package http exposes the time-section operations as a JSON API.
//
// This file implements the parsing and validation of request bodies,
// query parameters and the owner header.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HeaderOwnerID carries the authenticated user id set by the upstream identity provider.
const HeaderOwnerID = "X-Owner-ID"

const maxBodyBytes = 1 << 20

// OwnerID returns the trimmed owner header, or "" when absent.
func OwnerID(r *http.Request) string {
	return sanitizeInput(r.Header.Get(HeaderOwnerID))
}

// DecodeJSONBody decodes a single JSON object into dst, rejecting unknown
// fields, trailing data and bodies over 1 MiB.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// RangeParams is a validated [from, to] window with an optional category filter.
type RangeParams struct {
	From       int64
	To         int64
	CategoryID *string
}

// ParseRangeParams reads from, to (epoch ms, required) and categoryId (optional).
func ParseRangeParams(query url.Values) (RangeParams, error) {
	var p RangeParams
	var err error
	if p.From, err = requiredInt64(query, "from"); err != nil {
		return RangeParams{}, err
	}
	if p.To, err = requiredInt64(query, "to"); err != nil {
		return RangeParams{}, err
	}
	p.CategoryID = optionalString(query, "categoryId")
	return p, nil
}

// MonthParams holds a year and a 0-indexed month.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams reads year and month (0-indexed), defaulting to the
// current month in loc. Months outside 0..11 roll into adjacent years.
func ParseMonthParams(query url.Values, now time.Time, loc *time.Location) (MonthParams, error) {
	now = now.In(loc)
	params := MonthParams{
		Year:  now.Year(),
		Month: int(now.Month()) - 1,
	}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return MonthParams{}, fmt.Errorf("invalid year %q", v)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return MonthParams{}, fmt.Errorf("invalid month %q", v)
		}
		params.Month = m
	}
	return params, nil
}

// ParseBoolParam returns def when the parameter is absent.
func ParseBoolParam(query url.Values, key string, def bool) (bool, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: must be true or false", key, v)
	}
	return b, nil
}

func requiredInt64(query url.Values, key string) (int64, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return 0, fmt.Errorf("missing %s", key)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be epoch milliseconds", key, v)
	}
	return n, nil
}

func optionalString(query url.Values, key string) *string {
	if !query.Has(key) {
		return nil
	}
	v := sanitizeInput(query.Get(key))
	if v == "" {
		return nil
	}
	return &v
}
