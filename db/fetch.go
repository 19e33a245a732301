package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Row is one result row keyed by column name.
type Row map[string]any

/*
FetchAll runs a read statement and returns every row.

Without read-through, the statement is always executed.

With read-through:
1. Lookup(query) hit holding a JSON row set → decode and return it, no database call
2. Anything else (miss, or a mutation placeholder "") → execute.
   A placeholder is counted as a miss, not a hit
3. Store the encoded row set under the query text

Concurrent misses on the same query share one execution. That execution is
detached from the first caller's cancellation; each caller still stops
waiting when its own ctx is done.

Rows returned in read-through mode always come from the JSON form,
so a hit and a miss produce identical values (numbers are json.Number).
*/
func (m *Manager) FetchAll(ctx context.Context, query string) ([]Row, error) {
	if !m.readThrough {
		rows, err := m.query(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("fetch all: %w", err)
		}
		return rows, nil
	}

	if payload, ok := m.cache.LookupMatch(query, isRowSet); ok {
		if rows, ok := decodeRows(payload); ok {
			return rows, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch all: %w", err)
	}

	ch := m.sf.DoChan(query, func() (any, error) {
		return m.loadRowSet(context.WithoutCancel(ctx), query)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch all: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("fetch all: %w", res.Err)
		}
		rows, ok := decodeRows(res.Val.(string))
		if !ok {
			return nil, fmt.Errorf("fetch all: could not decode row set")
		}
		return rows, nil
	}
}

// loadRowSet executes query and caches its encoded row set.
func (m *Manager) loadRowSet(ctx context.Context, query string) (string, error) {
	rows, err := m.query(ctx, query)
	if err != nil {
		return "", err
	}
	payload, err := encodeRows(rows)
	if err != nil {
		return "", err
	}
	if storeErr := m.cache.Store(query, payload); storeErr != nil {
		m.logger.Debug().Err(storeErr).Str("statement", query).Msg("row set not cached")
	}
	return payload, nil
}

// query executes a read and scans every row into a Row.
func (m *Manager) query(ctx context.Context, query string) ([]Row, error) {
	rs, err := m.db.QueryContext(ctx, query)
	if err != nil {
		m.logger.Warn().Err(err).Str("statement", query).Msg("SQL error")
		return nil, err
	}
	defer rs.Close()

	cols, err := rs.Columns()
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0)
	for rs.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = values[i]
		}
		rows = append(rows, row)
	}
	return rows, rs.Err()
}

func encodeRows(rows []Row) (string, error) {
	if rows == nil {
		rows = []Row{}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("encode row set: %w", err)
	}
	return string(b), nil
}

// isRowSet reports whether a cached payload can hold rows.
func isRowSet(payload string) bool {
	return strings.HasPrefix(payload, "[")
}

// decodeRows accepts only a JSON array. The mutation placeholder ""
// and any other non-row payload is rejected so it is never served as data.
func decodeRows(payload string) ([]Row, bool) {
	if !isRowSet(payload) {
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()

	var rows []Row
	if err := dec.Decode(&rows); err != nil {
		return nil, false
	}
	if rows == nil {
		rows = []Row{}
	}
	return rows, true
}
