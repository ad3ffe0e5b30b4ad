// Package query translates untyped list-endpoint query strings into
// document-store find options: filter, sort, projection and pagination.
package query

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trailhead/tours-api/internal/apperror"
)

const (
	DefaultPage  = 1
	DefaultLimit = 100
)

// versionField is the internal concurrency-control field excluded from
// responses unless the client selects fields explicitly.
const versionField = "__v"

var reservedKeys = map[string]bool{
	"page":   true,
	"sort":   true,
	"limit":  true,
	"fields": true,
}

var rangeKeyPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_.]*)\[([A-Za-z]+)\]$`)

var rangeOperators = map[string]string{
	"gte": "$gte",
	"gt":  "$gt",
	"lte": "$lte",
	"lt":  "$lt",
}

// Options is the refined query produced from a raw query string. Filter
// carries only the client's predicate; callers merge it with their own
// base predicate via Merge.
type Options struct {
	Filter     bson.M
	Sort       bson.D
	Projection bson.M
	Page       int64
	Limit      int64
}

func (o *Options) Skip() int64 {
	return (o.Page - 1) * o.Limit
}

// Find converts the options into driver find options. The filter is not
// included; pass it to the find call after merging with the base predicate.
func (o *Options) Find() *options.FindOptions {
	return options.Find().
		SetSort(o.Sort).
		SetProjection(o.Projection).
		SetSkip(o.Skip()).
		SetLimit(o.Limit)
}

// Parse applies the four transformations in order: filter, sort, field
// selection, pagination. Malformed range values and non-positive page or
// limit are client errors.
func Parse(values url.Values) (*Options, error) {
	opts := &Options{
		Filter:     bson.M{},
		Sort:       bson.D{{Key: "createdAt", Value: -1}},
		Projection: bson.M{versionField: 0},
		Page:       DefaultPage,
		Limit:      DefaultLimit,
	}

	if err := parseFilter(values, opts); err != nil {
		return nil, err
	}

	if raw := values.Get("sort"); raw != "" {
		opts.Sort = parseSort(raw)
	}

	if raw := values.Get("fields"); raw != "" {
		opts.Projection = parseFields(raw)
	}

	page, err := parsePositiveInt(values, "page", DefaultPage)
	if err != nil {
		return nil, err
	}
	limit, err := parsePositiveInt(values, "limit", DefaultLimit)
	if err != nil {
		return nil, err
	}
	opts.Page = page
	opts.Limit = limit

	return opts, nil
}

func parseFilter(values url.Values, opts *Options) error {
	for key, vals := range values {
		if reservedKeys[key] || len(vals) == 0 {
			continue
		}
		raw := vals[0]

		if m := rangeKeyPattern.FindStringSubmatch(key); m != nil {
			field, op := m[1], m[2]
			sigil, ok := rangeOperators[op]
			if !ok {
				return apperror.BadRequest(fmt.Sprintf("Unsupported filter operator %q on field %q", op, field))
			}
			value, err := parseComparable(field, op, raw)
			if err != nil {
				return err
			}
			rangeCond(opts.Filter, field)[sigil] = value
			continue
		}

		// An equality value alongside a range condition on the same field
		// constrains, it does not replace: both must survive regardless of
		// the order the keys arrive in.
		if cond, ok := opts.Filter[key].(bson.M); ok {
			cond["$eq"] = coerceScalar(raw)
			continue
		}
		opts.Filter[key] = coerceScalar(raw)
	}
	return nil
}

// rangeCond returns the operator map for field, folding any equality
// value already parsed for that field into $eq so neither condition is
// lost.
func rangeCond(filter bson.M, field string) bson.M {
	if cond, ok := filter[field].(bson.M); ok {
		return cond
	}
	cond := bson.M{}
	if prev, ok := filter[field]; ok {
		cond["$eq"] = prev
	}
	filter[field] = cond
	return cond
}

// parseComparable requires range-operator values to be numeric or RFC 3339
// timestamps. Anything else would produce a filter the store cannot
// compare, which is the client's fault, not silently droppable.
func parseComparable(field, op, raw string) (interface{}, error) {
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return nil, apperror.BadRequest(fmt.Sprintf("Invalid value %q for %s[%s]: expected a number or RFC 3339 timestamp", raw, field, op))
}

func coerceScalar(raw string) interface{} {
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

func parseSort(raw string) bson.D {
	var sort bson.D
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		order := 1
		if strings.HasPrefix(field, "-") {
			order = -1
			field = field[1:]
		}
		if field != "" {
			sort = append(sort, bson.E{Key: field, Value: order})
		}
	}
	if len(sort) == 0 {
		return bson.D{{Key: "createdAt", Value: -1}}
	}
	return sort
}

func parseFields(raw string) bson.M {
	projection := bson.M{}
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field != "" {
			projection[field] = 1
		}
	}
	if len(projection) == 0 {
		return bson.M{versionField: 0}
	}
	return projection
}

func parsePositiveInt(values url.Values, key string, fallback int64) (int64, error) {
	raw := values.Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, apperror.BadRequest(fmt.Sprintf("Invalid value %q for %q: expected a positive integer", raw, key))
	}
	return n, nil
}

// Merge ANDs a base predicate (soft-delete or secret-record exclusion)
// with the client's filter. The base predicate is never overwritten: on a
// key collision both conditions move into $and.
func Merge(base, filter bson.M) bson.M {
	merged := bson.M{}
	for k, v := range base {
		merged[k] = v
	}

	var and []bson.M
	for k, v := range filter {
		prev, exists := merged[k]
		if !exists {
			merged[k] = v
			continue
		}
		delete(merged, k)
		and = append(and, bson.M{k: prev}, bson.M{k: v})
	}

	if len(and) > 0 {
		merged["$and"] = and
	}
	return merged
}
