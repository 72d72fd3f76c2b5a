package executor

import (
	"context"
	"fmt"

	"sqlgate/internal/action"
	"sqlgate/internal/db"
)

// query runs a statement that produces a result set and scans it into the
// envelope row shape.
func (e *Executor) query(ctx context.Context, h *db.Handle, sqlText string, args []any) (*action.Result, error) {
	rows, err := h.Conn().QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, e.wrap(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, e.wrap(err)
	}

	var results []map[string]any
	count := 0
	for rows.Next() {
		if count >= e.maxRows {
			results = append(results, map[string]any{
				"_warning": fmt.Sprintf("Result truncated at %d rows", e.maxRows),
			})
			break
		}

		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, e.wrap(err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			// []byte values would serialize as base64; surface them as text.
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
		count++
	}
	if err := rows.Err(); err != nil {
		return nil, e.wrap(err)
	}
	return action.Rows(results), nil
}

// exec runs a mutating statement and reports the affected-row count, plus
// the generated id when the driver can produce one.
func (e *Executor) exec(ctx context.Context, h *db.Handle, sqlText string) (*action.Result, error) {
	res, err := h.Conn().ExecContext(ctx, sqlText)
	if err != nil {
		return nil, e.wrap(err)
	}
	affected, _ := res.RowsAffected()
	out := action.Count(affected)
	if e.dialect.SupportsLastInsertID() {
		if id, err := res.LastInsertId(); err == nil && id > 0 {
			out.LastInsertID = id
		}
	}
	return out, nil
}
