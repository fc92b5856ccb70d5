package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	domain "github.com/rustgreen/backend/internal/domain/analysis"
)

type ResultRepository struct {
	db *sql.DB
}

func NewResultRepository(db *sql.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// SaveResult writes the code block and its analysis in one transaction,
// block first so the analysis FK always resolves.
func (r *ResultRepository) SaveResult(ctx context.Context, block *domain.CodeBlock, a *domain.Analysis) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const insertBlock = `
INSERT INTO code_blocks
(id, raw_code, file_path, line_start, line_end, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	if _, err := tx.ExecContext(ctx, insertBlock,
		block.ID, block.RawCode, nullString(block.FilePath),
		block.LineStart, block.LineEnd, block.CreatedAt,
	); err != nil {
		return fmt.Errorf("inserting code block: %w", err)
	}

	newIssues, err := encodeStrings(a.NewIssues)
	if err != nil {
		return fmt.Errorf("encoding new issues: %w", err)
	}

	const insertAnalysis = `
INSERT INTO analyses
(id, session_id, code_block_id, classification, suggested_replacement,
 cwe_id, owasp_category, risk_level, confidence_score,
 description, exploitation_scenario, remediation_notes, compatibility_notes,
 verification_passed, verification_notes, new_issues, llm_metadata, created_at)
VALUES ($1,$2,$3,$4,$5,
        $6,$7,$8,$9,
        $10,$11,$12,$13,
        $14,$15,$16,$17,$18);`
	if _, err := tx.ExecContext(ctx, insertAnalysis,
		a.ID, a.SessionID, a.CodeBlockID, a.Classification, nullString(a.SuggestedReplacement),
		nullString(a.CWEID), nullString(a.OWASPCategory), a.RiskLevel, a.ConfidenceScore,
		nullString(a.Description), nullString(a.ExploitationScenario),
		nullString(a.RemediationNotes), nullString(a.CompatibilityNotes),
		nullBool(a.VerificationPassed), nullString(a.VerificationNotes),
		newIssues, nullString(a.LLMMetadata), a.CreatedAt,
	); err != nil {
		return fmt.Errorf("inserting analysis: %w", err)
	}

	return tx.Commit()
}

// ListBySession returns analyses joined with their code blocks, oldest first.
func (r *ResultRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.Result, error) {
	const q = `
SELECT a.id, a.session_id, a.code_block_id, a.classification, a.suggested_replacement,
       a.cwe_id, a.owasp_category, a.risk_level, a.confidence_score,
       a.description, a.exploitation_scenario, a.remediation_notes, a.compatibility_notes,
       a.verification_passed, a.verification_notes, a.new_issues, a.llm_metadata, a.created_at,
       b.id, b.raw_code, b.file_path, b.line_start, b.line_end, b.created_at
FROM analyses a
JOIN code_blocks b ON b.id = a.code_block_id
WHERE a.session_id = $1
ORDER BY a.created_at ASC, a.id ASC;`
	rows, err := r.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying analyses: %w", err)
	}
	defer rows.Close()

	var out []*domain.Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *ResultRepository) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analyses WHERE session_id=$1;`, sessionID,
	).Scan(&n)
	return n, err
}

// DeleteBySession removes analyses and their now-orphaned code blocks.
func (r *ResultRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const deleteBlocks = `
DELETE FROM code_blocks b
USING analyses a
WHERE a.code_block_id = b.id AND a.session_id = $1;`
	if _, err := tx.ExecContext(ctx, deleteBlocks, sessionID); err != nil {
		return fmt.Errorf("deleting code blocks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM analyses WHERE session_id=$1;`, sessionID); err != nil {
		return fmt.Errorf("deleting analyses: %w", err)
	}
	return tx.Commit()
}

func scanResult(row rowScanner) (*domain.Result, error) {
	var a domain.Analysis
	var b domain.CodeBlock
	var suggested, cwe, owasp, desc, exploit, remNotes, compat, verNotes, llmMeta, blockPath sql.NullString
	var verPassed sql.NullBool
	var newIssues string

	if err := row.Scan(
		&a.ID, &a.SessionID, &a.CodeBlockID, &a.Classification, &suggested,
		&cwe, &owasp, &a.RiskLevel, &a.ConfidenceScore,
		&desc, &exploit, &remNotes, &compat,
		&verPassed, &verNotes, &newIssues, &llmMeta, &a.CreatedAt,
		&b.ID, &b.RawCode, &blockPath, &b.LineStart, &b.LineEnd, &b.CreatedAt,
	); err != nil {
		return nil, err
	}

	a.SuggestedReplacement = suggested.String
	a.CWEID = cwe.String
	a.OWASPCategory = owasp.String
	a.Description = desc.String
	a.ExploitationScenario = exploit.String
	a.RemediationNotes = remNotes.String
	a.CompatibilityNotes = compat.String
	a.VerificationNotes = verNotes.String
	a.LLMMetadata = llmMeta.String
	if verPassed.Valid {
		v := verPassed.Bool
		a.VerificationPassed = &v
	}
	issues, err := decodeStrings(newIssues)
	if err != nil {
		return nil, fmt.Errorf("decoding new issues: %w", err)
	}
	a.NewIssues = issues
	b.FilePath = blockPath.String

	return &domain.Result{Analysis: &a, CodeBlock: &b}, nil
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func encodeStrings(v []string) (string, error) {
	if len(v) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeStrings(s string) ([]string, error) {
	if s == "" || s == "[]" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}
