package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/subtext/internal/safety"
)

// AnalysisRecord is a stored analysis outcome. Message text and flag
// evidence are never persisted.
type AnalysisRecord struct {
	ID              uuid.UUID        `json:"id"`
	ConversationRef string           `json:"conversation_ref"`
	OverallRisk     safety.RiskLevel `json:"overall_risk"`
	ResourcesShown  bool             `json:"resources_shown"`
	Recommendations []string         `json:"recommendations"`
	CreatedAt       time.Time        `json:"created_at"`
	Flags           []FlagRecord     `json:"flags"`
}

// FlagRecord is the stored shape of one flag.
type FlagRecord struct {
	Type          safety.RiskType `json:"type"`
	Severity      safety.Severity `json:"severity"`
	Description   string          `json:"description"`
	EvidenceCount int             `json:"evidence_count"`
}

// WriteAnalysis stores an analysis and its flags in one transaction and
// returns the new analysis id.
func (s *Store) WriteAnalysis(ctx context.Context, conversationRef string, a *safety.Analysis) (uuid.UUID, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	analysisID := uuid.New()
	recs := a.Recommendations
	if recs == nil {
		recs = []string{}
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO safety_analyses (id, conversation_ref, overall_risk, resources_shown, recommendations, created_at)
		VALUES ($1, $2, $3, $4, $5, now())`,
		analysisID, conversationRef, a.OverallRisk.String(), len(a.SupportResources) > 0, recs,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert analysis: %w", err)
	}

	for i, f := range a.Flags {
		_, err = tx.Exec(ctx, `
			INSERT INTO safety_flags (id, analysis_id, position, flag_type, severity, description, evidence_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New(), analysisID, i, string(f.Type), string(f.Severity), f.Description, len(f.Evidence),
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert flag: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}

	return analysisID, nil
}

// GetAnalysis reads one analysis with its flags in stored order.
func (s *Store) GetAnalysis(ctx context.Context, id uuid.UUID) (*AnalysisRecord, error) {
	var (
		rec  AnalysisRecord
		risk string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, conversation_ref, overall_risk, resources_shown, recommendations, created_at
		FROM safety_analyses
		WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.ConversationRef, &risk, &rec.ResourcesShown, &rec.Recommendations, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}

	if rec.OverallRisk, err = safety.ParseRiskLevel(risk); err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT flag_type, severity, description, evidence_count
		FROM safety_flags
		WHERE analysis_id = $1
		ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("get flags: %w", err)
	}
	defer rows.Close()

	rec.Flags = []FlagRecord{}
	for rows.Next() {
		var f FlagRecord
		var typ, sev string
		if err := rows.Scan(&typ, &sev, &f.Description, &f.EvidenceCount); err != nil {
			return nil, fmt.Errorf("scan flag: %w", err)
		}
		f.Type = safety.RiskType(typ)
		f.Severity = safety.Severity(sev)
		rec.Flags = append(rec.Flags, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flags: %w", err)
	}

	return &rec, nil
}

// ListAnalyses returns the newest analyses for a conversation without
// their flags.
func (s *Store) ListAnalyses(ctx context.Context, conversationRef string, limit int) ([]AnalysisRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_ref, overall_risk, resources_shown, recommendations, created_at
		FROM safety_analyses
		WHERE conversation_ref = $1
		ORDER BY created_at DESC
		LIMIT $2`, conversationRef, limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var out []AnalysisRecord
	for rows.Next() {
		var rec AnalysisRecord
		var risk string
		if err := rows.Scan(&rec.ID, &rec.ConversationRef, &risk, &rec.ResourcesShown, &rec.Recommendations, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		if rec.OverallRisk, err = safety.ParseRiskLevel(risk); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
