package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/suanfamama/atelier/internal/backend"
)

// Select reads rows through PostgREST and decodes them into dest.
func (c *Client) Select(ctx context.Context, q backend.Query, dest any) error {
	resp, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   restPrefix + "/" + url.PathEscape(q.Table),
		query:  queryValues(q),
	})
	if err != nil {
		return fmt.Errorf("select %s: %w", q.Table, err)
	}

	if err := decode(resp, dest); err != nil {
		return fmt.Errorf("select %s: %w", q.Table, err)
	}
	return nil
}

// Count asks PostgREST for an exact row count without fetching rows.
func (c *Client) Count(ctx context.Context, q backend.Query) (int, error) {
	if len(q.Columns) == 0 {
		q = q.Select("id")
	}

	resp, err := c.do(ctx, request{
		method:  http.MethodHead,
		path:    restPrefix + "/" + url.PathEscape(q.Table),
		query:   queryValues(q),
		headers: map[string]string{"Prefer": "count=exact"},
		// PostgREST answers 206 when the count exceeds the returned range.
		allowStatus: []int{http.StatusPartialContent},
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", q.Table, err)
	}
	_ = drain(resp)

	n, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", q.Table, err)
	}
	return n, nil
}

// Upsert inserts row, merging with an existing row on primary key conflict.
func (c *Client) Upsert(ctx context.Context, table string, row any) error {
	resp, err := c.do(ctx, request{
		method:  http.MethodPost,
		path:    restPrefix + "/" + url.PathEscape(table),
		body:    row,
		headers: map[string]string{"Prefer": "resolution=merge-duplicates,return=minimal"},
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	return drain(resp)
}

// queryValues renders a query in PostgREST's horizontal filtering syntax.
func queryValues(q backend.Query) url.Values {
	v := url.Values{}

	if len(q.Columns) > 0 {
		v.Set("select", strings.Join(q.Columns, ","))
	} else {
		v.Set("select", "*")
	}

	for _, f := range q.Filters {
		v.Add(f.Column, "eq."+fmt.Sprint(f.Value))
	}

	if q.Order != nil {
		dir := "asc"
		if q.Order.Descending {
			dir = "desc"
		}
		v.Set("order", q.Order.Column+"."+dir)
	}

	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}

	return v
}

// parseContentRange extracts the total from "0-24/3573" or "*/3573".
func parseContentRange(header string) (int, error) {
	idx := strings.LastIndex(header, "/")
	if idx == -1 || idx == len(header)-1 {
		return 0, fmt.Errorf("malformed content-range %q", header)
	}

	total := header[idx+1:]
	if total == "*" {
		return 0, fmt.Errorf("content-range %q carries no total", header)
	}

	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, fmt.Errorf("parse content-range %q: %w", header, err)
	}
	return n, nil
}
