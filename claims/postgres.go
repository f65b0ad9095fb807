package claims

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/ruteri/campuscred-backend/interfaces"
)

// PostgresStore persists claims in PostgreSQL.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ interfaces.ClaimStore = (*PostgresStore)(nil)

// NewPostgres constructs a PostgreSQL-backed claim store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// OpenPostgres opens dsn with the lib/pq driver, checks connectivity and
// applies migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, *sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return NewPostgres(db), db, nil
}

const claimColumns = `id, created_at, updated_at, student_name, student_email, wallet_address,
	credential_type, course_code, description, evidence_key, evidence_file_name, evidence_hash,
	status, reviewed_by, instructor_notes, approved_at, minted_at, token_id, metadata_uri, tx_hash`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*interfaces.Claim, error) {
	var (
		c                         interfaces.Claim
		wallet, credType, status  string
		evKey, evFileName, evHash sql.NullString
		approvedAt, mintedAt      sql.NullTime
		tokenID                   sql.NullInt64
	)
	err := row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt, &c.StudentName, &c.StudentEmail, &wallet,
		&credType, &c.CourseCode, &c.Description, &evKey, &evFileName, &evHash,
		&status, &c.ReviewedBy, &c.InstructorNotes, &approvedAt, &mintedAt, &tokenID, &c.MetadataURI, &c.TxHash)
	if err != nil {
		return nil, err
	}

	c.WalletAddress = interfaces.WalletAddress(wallet)
	c.CredentialType = interfaces.CredentialType(credType)
	c.Status = interfaces.ClaimStatus(status)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	if evKey.Valid {
		c.Evidence = &interfaces.EvidenceRef{Key: evKey.String, FileName: evFileName.String, Hash: evHash.String}
	}
	if approvedAt.Valid {
		t := approvedAt.Time.UTC()
		c.ApprovedAt = &t
	}
	if mintedAt.Valid {
		t := mintedAt.Time.UTC()
		c.MintedAt = &t
	}
	if tokenID.Valid {
		id := uint64(tokenID.Int64)
		c.TokenID = &id
	}
	return &c, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullTokenID(id *uint64) (sql.NullInt64, error) {
	if id == nil {
		return sql.NullInt64{}, nil
	}
	if *id > math.MaxInt64 {
		return sql.NullInt64{}, fmt.Errorf("%w: token id %d out of range", interfaces.ErrValidation, *id)
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}, nil
}

func evidenceColumns(ev *interfaces.EvidenceRef) (key, fileName, hash sql.NullString) {
	if ev == nil {
		return
	}
	return sql.NullString{String: ev.Key, Valid: true},
		sql.NullString{String: ev.FileName, Valid: true},
		sql.NullString{String: ev.Hash, Valid: true}
}

func (s *PostgresStore) Create(ctx context.Context, claim *interfaces.Claim) (*interfaces.Claim, error) {
	if claim == nil {
		return nil, fmt.Errorf("%w: nil claim", interfaces.ErrValidation)
	}

	c := claim.Clone()
	now := s.now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = interfaces.StatusPending
	}

	tokenID, err := nullTokenID(c.TokenID)
	if err != nil {
		return nil, err
	}
	evKey, evFileName, evHash := evidenceColumns(c.Evidence)

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO claims (created_at, updated_at, student_name, student_email, wallet_address,
			credential_type, course_code, description, evidence_key, evidence_file_name, evidence_hash,
			status, reviewed_by, instructor_notes, approved_at, minted_at, token_id, metadata_uri, tx_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING `+claimColumns,
		c.CreatedAt, c.UpdatedAt, c.StudentName, c.StudentEmail, string(c.WalletAddress),
		string(c.CredentialType), c.CourseCode, c.Description, evKey, evFileName, evHash,
		string(c.Status), c.ReviewedBy, c.InstructorNotes, nullTime(c.ApprovedAt), nullTime(c.MintedAt),
		tokenID, c.MetadataURI, c.TxHash)

	created, err := scanClaim(row)
	if err != nil {
		return nil, fmt.Errorf("create claim: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*interfaces.Claim, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = $1`, id)
	c, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interfaces.ErrClaimNotFound
		}
		return nil, fmt.Errorf("get claim: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) FindByToken(ctx context.Context, tokenID uint64) (*interfaces.Claim, error) {
	if tokenID == 0 || tokenID > math.MaxInt64 {
		return nil, interfaces.ErrClaimNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+claimColumns+` FROM claims
		WHERE token_id = $1 AND status IN ('minted', 'revoked')
		ORDER BY id DESC LIMIT 1`, int64(tokenID))
	c, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interfaces.ErrClaimNotFound
		}
		return nil, fmt.Errorf("find claim by token: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) List(ctx context.Context, filter interfaces.ClaimFilter) ([]*interfaces.Claim, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Wallet != "" {
		args = append(args, string(filter.Wallet))
		where = append(where, fmt.Sprintf("wallet_address = $%d", len(args)))
	}

	query := `SELECT ` + claimColumns + ` FROM claims`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	switch filter.OrderBy {
	case interfaces.OrderByApproved:
		query += " ORDER BY approved_at DESC NULLS LAST, id DESC"
	case interfaces.OrderByMinted:
		query += " ORDER BY minted_at DESC NULLS LAST, id DESC"
	default:
		query += " ORDER BY created_at DESC, id DESC"
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	result := make([]*interfaces.Claim, 0)
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	return result, nil
}

func (s *PostgresStore) Stats(ctx context.Context, now time.Time) (interfaces.ClaimStats, error) {
	var stats interfaces.ClaimStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'approved' AND approved_at >= $1),
			COUNT(*) FILTER (WHERE status = 'minted')
		FROM claims`, now.Add(-7*24*time.Hour).UTC()).
		Scan(&stats.Total, &stats.Pending, &stats.ApprovedWeek, &stats.TotalMinted)
	if err != nil {
		return interfaces.ClaimStats{}, fmt.Errorf("claim stats: %w", err)
	}
	return stats, nil
}

func (s *PostgresStore) AttachEvidence(ctx context.Context, id int64, ref interfaces.EvidenceRef) error {
	if !ref.Valid() {
		return fmt.Errorf("%w: incomplete evidence reference", interfaces.ErrValidation)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE claims SET evidence_key = $1, evidence_file_name = $2, evidence_hash = $3, updated_at = $4
		WHERE id = $5`,
		ref.Key, ref.FileName, ref.Hash, s.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("attach evidence: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach evidence: %w", err)
	}
	if n == 0 {
		return interfaces.ErrClaimNotFound
	}
	return nil
}

func (s *PostgresStore) Transition(ctx context.Context, id int64, from interfaces.ClaimStatus, action string, mutate func(*interfaces.Claim) error) (*interfaces.Claim, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := scanClaim(tx.QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interfaces.ErrClaimNotFound
		}
		return nil, fmt.Errorf("lock claim: %w", err)
	}
	if current.Status != from {
		return nil, interfaces.NewConflict(current.Status, action)
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	if !next.Status.Valid() {
		return nil, fmt.Errorf("invalid status %q after %s", next.Status, action)
	}
	next.UpdatedAt = s.now().UTC()

	tokenID, err := nullTokenID(next.TokenID)
	if err != nil {
		return nil, err
	}
	evKey, evFileName, evHash := evidenceColumns(next.Evidence)

	updated, err := scanClaim(tx.QueryRowContext(ctx, `
		UPDATE claims SET
			updated_at = $1, student_name = $2, student_email = $3, wallet_address = $4,
			credential_type = $5, course_code = $6, description = $7,
			evidence_key = $8, evidence_file_name = $9, evidence_hash = $10,
			status = $11, reviewed_by = $12, instructor_notes = $13,
			approved_at = $14, minted_at = $15, token_id = $16, metadata_uri = $17, tx_hash = $18
		WHERE id = $19
		RETURNING `+claimColumns,
		next.UpdatedAt, next.StudentName, next.StudentEmail, string(next.WalletAddress),
		string(next.CredentialType), next.CourseCode, next.Description,
		evKey, evFileName, evHash,
		string(next.Status), next.ReviewedBy, next.InstructorNotes,
		nullTime(next.ApprovedAt), nullTime(next.MintedAt), tokenID, next.MetadataURI, next.TxHash,
		id))
	if err != nil {
		return nil, fmt.Errorf("update claim: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return updated, nil
}
