package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/globaltrustbank/loanorch/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS agent_results (
			id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL,
			agent_key TEXT NOT NULL,
			agent_name TEXT NOT NULL,
			document_type TEXT NOT NULL,
			status TEXT NOT NULL,
			summary TEXT,
			full_response TEXT,
			processing_time_ms REAL NOT NULL DEFAULT 0,
			applicant_name TEXT,
			metadata TEXT,
			ts INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_results_customer ON agent_results(customer_id, ts)`,
		`CREATE TABLE IF NOT EXISTS customers (
			customer_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT,
			mobile TEXT,
			age INTEGER,
			monthly_income REAL,
			total_monthly_income REAL,
			employment_status TEXT,
			work_experience_years REAL,
			loan_amount REAL,
			credit_score INTEGER,
			loan_type TEXT,
			emi REAL,
			tenure_months INTEGER,
			account_balance REAL,
			average_monthly_balance REAL,
			kyc_status TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS pipeline_runs (
			run_id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL,
			status TEXT NOT NULL,
			stage TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pipeline_runs_customer ON pipeline_runs(customer_id, started_at)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			notification_id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			due_at INTEGER NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			created_at INTEGER NOT NULL,
			sent_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_due ON notifications(status, due_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	// Collateral value was added after the first customer schema.
	if err := s.ensureColumn("customers", "property_value", "ALTER TABLE customers ADD COLUMN property_value REAL"); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) ensureColumn(tableName, columnName, ddl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(ddl)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertResult inserts or replaces a result by its deterministic id.
func (s *SQLiteStore) UpsertResult(ctx context.Context, r *domain.AgentResult) error {
	if r.ID == "" {
		return fmt.Errorf("result id is required")
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	var metadata sql.NullString
	if len(r.Metadata) > 0 {
		metadata = sql.NullString{String: string(r.Metadata), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO agent_results
			(id, customer_id, agent_key, agent_name, document_type, status, summary, full_response, processing_time_ms, applicant_name, metadata, ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CustomerID, r.AgentKey, r.AgentName, r.DocumentType, r.Status, r.Summary, r.FullResponse,
		r.ProcessingTimeMs, r.ApplicantName, metadata, r.Timestamp.UnixNano())
	return err
}

const resultColumns = `id, customer_id, agent_key, agent_name, document_type, status, summary, full_response, processing_time_ms, applicant_name, metadata, ts`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanResult(row rowScanner) (*domain.AgentResult, error) {
	var r domain.AgentResult
	var summary, fullResponse, applicant, metadata sql.NullString
	var ts int64
	if err := row.Scan(&r.ID, &r.CustomerID, &r.AgentKey, &r.AgentName, &r.DocumentType, &r.Status,
		&summary, &fullResponse, &r.ProcessingTimeMs, &applicant, &metadata, &ts); err != nil {
		return nil, err
	}
	r.Summary = summary.String
	r.FullResponse = fullResponse.String
	r.ApplicantName = applicant.String
	if metadata.Valid {
		r.Metadata = json.RawMessage(metadata.String)
	}
	r.Timestamp = time.Unix(0, ts)
	return &r, nil
}

// GetResult retrieves a result by id.
func (s *SQLiteStore) GetResult(ctx context.Context, id string) (*domain.AgentResult, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM agent_results WHERE id = ?`, id)
	r, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListResults returns every record of a customer ordered by timestamp ascending.
func (s *SQLiteStore) ListResults(ctx context.Context, customerID string) ([]domain.AgentResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+resultColumns+` FROM agent_results WHERE customer_id = ? ORDER BY ts ASC, id ASC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AgentResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveFinalRecommendation stores a recommendation as a final_recommendation document.
func (s *SQLiteStore) SaveFinalRecommendation(ctx context.Context, rec *domain.FinalRecommendation) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendation: %w", err)
	}
	return s.UpsertResult(ctx, &domain.AgentResult{
		ID:            rec.ID,
		CustomerID:    rec.CustomerID,
		AgentKey:      "final_recommendation",
		AgentName:     "Final Recommendation",
		DocumentType:  domain.DocumentTypeFinalRecommendation,
		Status:        domain.ResultStatusCompleted,
		Summary:       rec.RecommendationText,
		ApplicantName: rec.ApplicantName,
		Metadata:      payload,
		Timestamp:     rec.Timestamp,
	})
}

// GetFinalRecommendation loads a stored recommendation.
func (s *SQLiteStore) GetFinalRecommendation(ctx context.Context, id string) (*domain.FinalRecommendation, error) {
	r, err := s.GetResult(ctx, id)
	if err != nil || r == nil {
		return nil, err
	}
	if r.DocumentType != domain.DocumentTypeFinalRecommendation {
		return nil, fmt.Errorf("document %s is a %s", id, r.DocumentType)
	}
	var rec domain.FinalRecommendation
	if err := json.Unmarshal(r.Metadata, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode recommendation: %w", err)
	}
	return &rec, nil
}

// UpsertCustomer inserts or replaces a customer row.
func (s *SQLiteStore) UpsertCustomer(ctx context.Context, c *domain.Customer) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO customers
			(customer_id, name, email, mobile, age, monthly_income, total_monthly_income, employment_status,
			 work_experience_years, loan_amount, credit_score, loan_type, emi, tenure_months, account_balance,
			 average_monthly_balance, kyc_status, property_value)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.CustomerID, c.Name, c.Email, c.Mobile, c.Age, c.MonthlyIncome, c.TotalMonthlyIncome, c.EmploymentStatus,
		c.WorkExperienceYears, c.LoanAmount, c.CreditScore, c.LoanType, c.EMI, c.TenureMonths, c.AccountBalance,
		c.AverageMonthlyBalance, c.KYCStatus, c.PropertyValue)
	return err
}

// GetCustomer retrieves a customer; NULL numeric columns read as zero.
func (s *SQLiteStore) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	var c domain.Customer
	var email, mobile, employment, loanType, kyc sql.NullString
	var age, creditScore, tenure sql.NullInt64
	var monthly, total, experience, loanAmount, emi, balance, avgBalance, property sql.NullFloat64

	err := s.db.QueryRowContext(ctx,
		`SELECT customer_id, name, email, mobile, age, monthly_income, total_monthly_income, employment_status,
			work_experience_years, loan_amount, credit_score, loan_type, emi, tenure_months, account_balance,
			average_monthly_balance, kyc_status, property_value
		 FROM customers WHERE customer_id = ?`, customerID).Scan(
		&c.CustomerID, &c.Name, &email, &mobile, &age, &monthly, &total, &employment,
		&experience, &loanAmount, &creditScore, &loanType, &emi, &tenure, &balance,
		&avgBalance, &kyc, &property)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c.Email = email.String
	c.Mobile = mobile.String
	c.Age = int(age.Int64)
	c.MonthlyIncome = monthly.Float64
	c.TotalMonthlyIncome = total.Float64
	c.EmploymentStatus = employment.String
	c.WorkExperienceYears = experience.Float64
	c.LoanAmount = loanAmount.Float64
	c.CreditScore = int(creditScore.Int64)
	c.LoanType = loanType.String
	c.EMI = emi.Float64
	c.TenureMonths = int(tenure.Int64)
	c.AccountBalance = balance.Float64
	c.AverageMonthlyBalance = avgBalance.Float64
	c.KYCStatus = kyc.String
	c.PropertyValue = property.Float64
	return &c, nil
}

// LatestCustomerID returns the highest customer id, or "" when there are none.
// Ids share the CUST prefix, so ordering by length then value is numeric order.
func (s *SQLiteStore) LatestCustomerID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT customer_id FROM customers ORDER BY length(customer_id) DESC, customer_id DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return id, err
}

// CreatePipelineRun creates a new pipeline run.
func (s *SQLiteStore) CreatePipelineRun(ctx context.Context, run *domain.PipelineRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (run_id, customer_id, status, stage, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.CustomerID, run.Status, run.Stage, run.StartedAt)
	return err
}

// GetPipelineRun retrieves a run by ID.
func (s *SQLiteStore) GetPipelineRun(ctx context.Context, runID string) (*domain.PipelineRun, error) {
	var run domain.PipelineRun
	var endedAt sql.NullTime
	var errMsg sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, customer_id, status, stage, started_at, ended_at, error FROM pipeline_runs WHERE run_id = ?`,
		runID).Scan(&run.RunID, &run.CustomerID, &run.Status, &run.Stage, &run.StartedAt, &endedAt, &errMsg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		run.EndedAt = &endedAt.Time
	}
	run.Error = errMsg.String
	return &run, nil
}

// UpdatePipelineRunStage records the stage a run has reached.
func (s *SQLiteStore) UpdatePipelineRunStage(ctx context.Context, runID string, stage domain.PipelineStage) error {
	_, err := s.db.ExecContext(ctx, `UPDATE pipeline_runs SET stage = ? WHERE run_id = ?`, stage, runID)
	return err
}

// CompletePipelineRun marks a run as finished.
func (s *SQLiteStore) CompletePipelineRun(ctx context.Context, runID string, status domain.RunStatus, errMsg string) error {
	var errStr sql.NullString
	if errMsg != "" {
		errStr = sql.NullString{String: errMsg, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET status = ?, ended_at = ?, error = ? WHERE run_id = ?`,
		status, time.Now(), errStr, runID)
	return err
}

// EnqueueNotification stores a pending notification.
func (s *SQLiteStore) EnqueueNotification(ctx context.Context, n *domain.Notification) error {
	if n.Status == "" {
		n.Status = domain.NotificationStatusPending
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (notification_id, customer_id, stage, status, due_at, attempts, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.NotificationID, n.CustomerID, n.Stage, n.Status, n.DueAt.UnixNano(), n.Attempts, n.CreatedAt.UnixNano())
	return err
}

const notificationColumns = `notification_id, customer_id, stage, status, due_at, attempts, last_error, created_at, sent_at`

func scanNotification(row rowScanner) (*domain.Notification, error) {
	var n domain.Notification
	var dueAt, createdAt int64
	var sentAt sql.NullInt64
	var lastError sql.NullString
	if err := row.Scan(&n.NotificationID, &n.CustomerID, &n.Stage, &n.Status, &dueAt, &n.Attempts, &lastError, &createdAt, &sentAt); err != nil {
		return nil, err
	}
	n.DueAt = time.Unix(0, dueAt)
	n.CreatedAt = time.Unix(0, createdAt)
	n.LastError = lastError.String
	if sentAt.Valid {
		t := time.Unix(0, sentAt.Int64)
		n.SentAt = &t
	}
	return &n, nil
}

func (s *SQLiteStore) queryNotifications(ctx context.Context, query string, args ...interface{}) ([]domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListDueNotifications returns pending notifications due at or before now.
func (s *SQLiteStore) ListDueNotifications(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	return s.queryNotifications(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE status = ? AND due_at <= ?
		 ORDER BY due_at ASC
		 LIMIT ?`,
		domain.NotificationStatusPending, now.UnixNano(), limit)
}

// ListNotifications returns all notifications of a customer in due order.
func (s *SQLiteStore) ListNotifications(ctx context.Context, customerID string) ([]domain.Notification, error) {
	return s.queryNotifications(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE customer_id = ? ORDER BY due_at ASC, notification_id ASC`,
		customerID)
}

// ClaimNotification moves a pending notification to in-flight. It returns
// false when another dispatcher already claimed it.
func (s *SQLiteStore) ClaimNotification(ctx context.Context, notificationID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET status = 'SENDING', attempts = attempts + 1 WHERE notification_id = ? AND status = ?`,
		notificationID, domain.NotificationStatusPending)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CompleteNotification records the delivery outcome.
func (s *SQLiteStore) CompleteNotification(ctx context.Context, notificationID string, status domain.NotificationStatus, lastError string) error {
	var errStr sql.NullString
	if lastError != "" {
		errStr = sql.NullString{String: lastError, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET status = ?, last_error = ?, sent_at = ? WHERE notification_id = ?`,
		status, errStr, time.Now().UnixNano(), notificationID)
	return err
}

// ResetInflightNotifications returns notifications interrupted mid-send to
// the pending state. Called once at startup.
func (s *SQLiteStore) ResetInflightNotifications(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET status = ? WHERE status = 'SENDING'`, domain.NotificationStatusPending)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}
