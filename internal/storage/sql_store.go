package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twohreichel/pisovereign/internal/core"
	"github.com/twohreichel/pisovereign/pkg/vec"
)

// SQLStore implements core.MemoryStore on any database/sql backend carrying
// the memories/memory_embeddings schema. Dialects differ only in their
// placeholder syntax.
type SQLStore struct {
	db *sql.DB
	ph Placeholder
}

var _ core.MemoryStore = (*SQLStore)(nil)

func NewSQLStore(db *sql.DB, ph Placeholder) *SQLStore {
	return &SQLStore{db: db, ph: ph}
}

// q renders a query written with "?" markers in the store's dialect.
func (s *SQLStore) q(query string) string {
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, s.ph(n)...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}

func (s *SQLStore) Save(ctx context.Context, m core.Memory) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO memories (id, user_id, conversation_id, content, summary, importance,
			memory_type, tags, created_at, accessed_at, access_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		m.ID.String(), m.UserID.String(), FormatOptionalID(m.ConversationID),
		m.Content, m.Summary, float64(m.Importance), m.Type.Token(), EncodeTags(m.Tags),
		FormatTime(m.CreatedAt), FormatTime(m.AccessedAt), int64(m.AccessCount),
	)
	if err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}

	if m.HasEmbedding() {
		if err := s.upsertEmbedding(ctx, tx, m.ID, m.Embedding); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLStore) upsertEmbedding(ctx context.Context, tx *sql.Tx, id uuid.UUID, embedding []float32) error {
	blob, err := vec.Encode(embedding)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO memory_embeddings (memory_id, embedding, dimensions, model, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (memory_id) DO UPDATE SET
			embedding = excluded.embedding,
			dimensions = excluded.dimensions,
			model = excluded.model,
			created_at = excluded.created_at`),
		id.String(), blob, len(embedding), core.DefaultEmbeddingModel, FormatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id uuid.UUID) (*core.Memory, error) {
	row, err := ScanRow(s.db.QueryRowContext(ctx, BuildGetQuery(s.ph), id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get memory: %w", err)
	}

	m := row.Memory()
	return &m, nil
}

func (s *SQLStore) Update(ctx context.Context, m core.Memory) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.q(`
		UPDATE memories
		SET content = ?, summary = ?, importance = ?, memory_type = ?, tags = ?,
			accessed_at = ?, access_count = ?
		WHERE id = ?`),
		m.Content, m.Summary, float64(m.Importance), m.Type.Token(), EncodeTags(m.Tags),
		FormatTime(m.AccessedAt), int64(m.AccessCount), m.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update memory: %w", err)
	}

	if m.HasEmbedding() {
		if err := s.upsertEmbedding(ctx, tx, m.ID, m.Embedding); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLStore) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM memory_embeddings WHERE memory_id = ?`), id.String()); err != nil {
		return fmt.Errorf("failed to delete embedding: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM memories WHERE id = ?`), id.String()); err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}

	return tx.Commit()
}

func (s *SQLStore) SearchSimilar(ctx context.Context, userID uuid.UUID, embedding []float32, limit int, minSimilarity float32) ([]core.SimilarMemory, error) {
	rows, err := s.db.QueryContext(ctx, BuildCandidatesQuery(s.ph), userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	candidates, err := collect(rows)
	if err != nil {
		return nil, err
	}

	return RankSimilar(candidates, embedding, limit, minSimilarity), nil
}

func (s *SQLStore) List(ctx context.Context, query core.MemoryQuery) ([]core.Memory, error) {
	sqlQuery, args := BuildListQuery(query, s.ph)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	defer rows.Close()

	return collect(rows)
}

func (s *SQLStore) ListByType(ctx context.Context, userID uuid.UUID, memoryType core.MemoryType, limit int) ([]core.Memory, error) {
	return s.List(ctx, core.NewMemoryQuery().ForUser(userID).OfTypes(memoryType).WithLimit(limit))
}

func (s *SQLStore) ApplyDecay(ctx context.Context, decayRate float32) ([]uuid.UUID, error) {
	type decayRow struct {
		id          string
		importance  float64
		accessedAt  string
		accessCount int64
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, importance, accessed_at, access_count FROM memories`)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories for decay: %w", err)
	}

	var pending []decayRow
	for rows.Next() {
		var r decayRow
		if err := rows.Scan(&r.id, &r.importance, &r.accessedAt, &r.accessCount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan memory for decay: %w", err)
		}
		pending = append(pending, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate memories for decay: %w", err)
	}
	rows.Close()

	now := time.Now()
	below := make([]uuid.UUID, 0)
	for _, r := range pending {
		count := uint32(0)
		if r.accessCount > 0 {
			count = uint32(r.accessCount)
		}
		days := core.DaysSince(ParseTime(r.accessedAt), now)
		importance := core.DecayImportance(float32(r.importance), count, days, decayRate)

		// each row commits on its own; a failure leaves earlier rows decayed
		if _, err := s.db.ExecContext(ctx, s.q(`UPDATE memories SET importance = ? WHERE id = ?`), float64(importance), r.id); err != nil {
			return below, fmt.Errorf("failed to update decayed importance: %w", err)
		}

		if importance < core.MinImportance {
			below = append(below, ParseID(r.id))
		}
	}

	return below, nil
}

func (s *SQLStore) CleanupBelowThreshold(ctx context.Context, threshold float32) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.q(`
		DELETE FROM memory_embeddings
		WHERE memory_id IN (SELECT id FROM memories WHERE importance < ?)`), float64(threshold))
	if err != nil {
		return 0, fmt.Errorf("failed to delete embeddings: %w", err)
	}

	res, err := tx.ExecContext(ctx, s.q(`DELETE FROM memories WHERE importance < ?`), float64(threshold))
	if err != nil {
		return 0, fmt.Errorf("failed to delete memories: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted memories: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cleanup: %w", err)
	}
	return int(deleted), nil
}

func (s *SQLStore) FindMergeCandidates(ctx context.Context, m core.Memory, similarityThreshold float32) ([]core.SimilarMemory, error) {
	if !m.HasEmbedding() {
		return []core.SimilarMemory{}, nil
	}
	return s.SearchSimilar(ctx, m.UserID, m.Embedding, core.MergeCandidateLimit, similarityThreshold)
}

func (s *SQLStore) Stats(ctx context.Context, userID uuid.UUID) (core.MemoryStats, error) {
	var (
		stats core.MemoryStats
		avg   float64
	)

	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT COUNT(*), COALESCE(AVG(importance), 0) FROM memories WHERE user_id = ?`),
		userID.String(),
	).Scan(&stats.TotalCount, &avg)
	if err != nil {
		return stats, fmt.Errorf("failed to count memories: %w", err)
	}
	stats.AvgImportance = float32(avg)

	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT memory_type, COUNT(*) FROM memories WHERE user_id = ? GROUP BY memory_type`),
		userID.String(),
	)
	if err != nil {
		return stats, fmt.Errorf("failed to count memories by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[core.MemoryType]int)
	for rows.Next() {
		var (
			token string
			count int
		)
		if err := rows.Scan(&token, &count); err != nil {
			return stats, fmt.Errorf("failed to scan type count: %w", err)
		}
		counts[core.ParseMemoryType(token)] += count
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("failed to iterate type counts: %w", err)
	}

	for _, t := range core.AllMemoryTypes() {
		stats.ByType = append(stats.ByType, core.TypeCount{Type: t, Count: counts[t]})
	}

	err = s.db.QueryRowContext(ctx, s.q(`
		SELECT COUNT(*)
		FROM memory_embeddings e
		JOIN memories m ON m.id = e.memory_id
		WHERE m.user_id = ?`),
		userID.String(),
	).Scan(&stats.WithEmbeddings)
	if err != nil {
		return stats, fmt.Errorf("failed to count embeddings: %w", err)
	}

	return stats, nil
}

func (s *SQLStore) RecordAccess(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		s.q(`UPDATE memories SET accessed_at = ?, access_count = access_count + 1 WHERE id = ?`),
		FormatTime(time.Now()), id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to record access: %w", err)
	}
	return nil
}

func collect(rows *sql.Rows) ([]core.Memory, error) {
	memories := make([]core.Memory, 0)
	for rows.Next() {
		row, err := ScanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		memories = append(memories, row.Memory())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memories: %w", err)
	}
	return memories, nil
}
