package query

import (
	"context"
	"errors"
	"strings"

	"gmdb/internal/condition"
	"gmdb/internal/schema"
	"gmdb/internal/store"
)

// ErrStop can be returned from a Select callback to end the scan early
// without reporting an error.
var ErrStop = errors.New("stop scan")

// Select streams the records of tbl matching cond, invoking fn once per
// match in storage order. An empty condition matches every record. The
// condition is compiled against the ground-motion schema before the first
// row is read, so a malformed condition never starts a scan. fn may return
// ErrStop to end the scan early; any other error aborts it.
func Select(ctx context.Context, tbl store.Table, cond string, fn func(rec schema.Record) error) error {
	pred, err := compile(cond)
	if err != nil {
		return err
	}
	err = tbl.Scan(ctx, func(rec schema.Record) error {
		if pred != nil {
			ok, err := pred.Eval(rec)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}
		return fn(rec)
	})
	if errors.Is(err, ErrStop) {
		return nil
	}
	return err
}

// SelectAll materializes the records of tbl matching cond.
func SelectAll(ctx context.Context, tbl store.Table, cond string) ([]schema.Record, error) {
	var out []schema.Record
	err := Select(ctx, tbl, cond, func(rec schema.Record) error {
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count reports how many records of tbl match cond.
func Count(ctx context.Context, tbl store.Table, cond string) (int64, error) {
	if strings.TrimSpace(cond) == "" {
		return tbl.Len(ctx)
	}
	var n int64
	err := Select(ctx, tbl, cond, func(schema.Record) error {
		n++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func compile(cond string) (*condition.Compiled, error) {
	if strings.TrimSpace(cond) == "" {
		return nil, nil
	}
	return condition.Compile(schema.GroundMotion(), cond)
}
