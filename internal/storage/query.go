package storage

import (
	"strconv"
	"strings"

	"github.com/twohreichel/pisovereign/internal/core"
)

// Placeholder renders the n-th (1-based) bind parameter for a dialect.
type Placeholder func(n int) string

func QuestionMark(int) string { return "?" }

func Dollar(n int) string { return "$" + strconv.Itoa(n) }

// SelectColumns is the column list scanned into a Row, in order.
const SelectColumns = `m.id, m.user_id, m.conversation_id, m.content, m.summary, m.importance,
	m.memory_type, m.tags, m.created_at, m.accessed_at, m.access_count, e.embedding`

const selectFrom = `SELECT ` + SelectColumns + `
	FROM memories m
	LEFT JOIN memory_embeddings e ON e.memory_id = m.id`

// BuildListQuery appends one predicate per set filter of q.
func BuildListQuery(q core.MemoryQuery, ph Placeholder) (string, []any) {
	var (
		sb    strings.Builder
		where []string
		args  []any
	)

	next := func(v any) string {
		args = append(args, v)
		return ph(len(args))
	}

	if q.UserID != nil {
		where = append(where, "m.user_id = "+next(q.UserID.String()))
	}
	if q.ConversationID != nil {
		where = append(where, "m.conversation_id = "+next(q.ConversationID.String()))
	}
	if len(q.Types) > 0 {
		marks := make([]string, len(q.Types))
		for i, t := range q.Types {
			marks[i] = next(t.Token())
		}
		where = append(where, "m.memory_type IN ("+strings.Join(marks, ", ")+")")
	}
	if q.MinImportance != nil {
		where = append(where, "m.importance >= "+next(float64(*q.MinImportance)))
	}

	sb.WriteString(selectFrom)
	if len(where) > 0 {
		sb.WriteString("\n\tWHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString("\n\tORDER BY m.importance DESC, m.accessed_at DESC")
	if q.Limit > 0 {
		sb.WriteString("\n\tLIMIT " + next(q.Limit))
	}

	return sb.String(), args
}

// BuildGetQuery selects a single memory by id.
func BuildGetQuery(ph Placeholder) string {
	return selectFrom + "\n\tWHERE m.id = " + ph(1)
}

// BuildCandidatesQuery selects every embedded memory of one user.
func BuildCandidatesQuery(ph Placeholder) string {
	return `SELECT ` + SelectColumns + `
	FROM memories m
	JOIN memory_embeddings e ON e.memory_id = m.id
	WHERE m.user_id = ` + ph(1)
}

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanRow reads SelectColumns into a Row.
func ScanRow(s Scanner) (Row, error) {
	var r Row
	err := s.Scan(
		&r.ID, &r.UserID, &r.ConversationID, &r.Content, &r.Summary, &r.Importance,
		&r.MemoryType, &r.Tags, &r.CreatedAt, &r.AccessedAt, &r.AccessCount, &r.Embedding,
	)
	return r, err
}
