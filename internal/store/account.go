package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/deskmate/internal/domain"
)

// ListCases returns the client's cases that are not closed, most recently
// updated first.
func (s *SQLiteStore) ListCases(ctx context.Context, clientID string) ([]domain.Case, error) {
	query := `
		SELECT case_id, client_id, title, status, updated_at
		FROM cases WHERE client_id = ? AND status != 'closed'
		ORDER BY updated_at DESC, case_id`

	rows, err := s.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer closeRows(rows, "cases")

	var out []domain.Case
	for rows.Next() {
		var c domain.Case
		var updatedAt int64
		if err := rows.Scan(&c.ID, &c.ClientID, &c.Title, &c.Status, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan case row: %w", err)
		}
		c.UpdatedAt = time.Unix(updatedAt, 0)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return out, nil
}

// UpsertCase creates or updates a case.
func (s *SQLiteStore) UpsertCase(ctx context.Context, c *domain.Case) error {
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
	query := `
	INSERT INTO cases (case_id, client_id, title, status, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(case_id) DO UPDATE SET
		title = excluded.title,
		status = excluded.status,
		updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, c.ID, c.ClientID, c.Title, c.Status, c.UpdatedAt.Unix()); err != nil {
		return fmt.Errorf("upsert case: %w", err)
	}
	return nil
}

// ListCategories returns the document categories ordered by name.
func (s *SQLiteStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category_id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer closeRows(rows, "categories")

	var out []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

// UpsertCategory creates or updates a document category.
func (s *SQLiteStore) UpsertCategory(ctx context.Context, c *domain.Category) error {
	query := `
	INSERT INTO categories (category_id, name) VALUES (?, ?)
	ON CONFLICT(category_id) DO UPDATE SET name = excluded.name`
	if _, err := s.db.ExecContext(ctx, query, c.ID, c.Name); err != nil {
		return fmt.Errorf("upsert category: %w", err)
	}
	return nil
}

// ListPendingTasks returns incomplete tasks, earliest due first. Tasks
// without a due date come last.
func (s *SQLiteStore) ListPendingTasks(ctx context.Context, clientID string) ([]domain.Task, error) {
	query := `
		SELECT task_id, client_id, title, due_at
		FROM tasks WHERE client_id = ? AND completed_at IS NULL
		ORDER BY due_at IS NULL, due_at, task_id`

	rows, err := s.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer closeRows(rows, "tasks")

	var out []domain.Task
	for rows.Next() {
		var t domain.Task
		var due sql.NullInt64
		if err := rows.Scan(&t.ID, &t.ClientID, &t.Title, &due); err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		t.DueAt = fromNullUnix(due)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

// AddTask creates a task.
func (s *SQLiteStore) AddTask(ctx context.Context, t *domain.Task) error {
	query := `INSERT INTO tasks (task_id, client_id, title, due_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, t.ID, t.ClientID, t.Title, nullUnix(t.DueAt)); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// CompleteTask marks a task done.
func (s *SQLiteStore) CompleteTask(ctx context.Context, taskID string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `UPDATE tasks SET completed_at = ? WHERE task_id = ?`, at.Unix(), taskID)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("complete task %s: %w", taskID, ErrNotFound)
	}
	return nil
}

// ListPayments returns the most recent payments, newest first.
func (s *SQLiteStore) ListPayments(ctx context.Context, clientID string, limit int) ([]domain.Payment, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT payment_id, client_id, amount_cents, currency, description, paid_at
		FROM payments WHERE client_id = ?
		ORDER BY paid_at DESC, payment_id LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer closeRows(rows, "payments")

	var out []domain.Payment
	for rows.Next() {
		var p domain.Payment
		var paidAt int64
		if err := rows.Scan(&p.ID, &p.ClientID, &p.AmountCents, &p.Currency, &p.Description, &paidAt); err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		p.PaidAt = time.Unix(paidAt, 0)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return out, nil
}

// AddPayment records a payment.
func (s *SQLiteStore) AddPayment(ctx context.Context, p *domain.Payment) error {
	query := `
	INSERT INTO payments (payment_id, client_id, amount_cents, currency, description, paid_at)
	VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, p.ID, p.ClientID, p.AmountCents, p.Currency, p.Description, p.PaidAt.Unix())
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// SearchFAQ scores every entry by how many of its keywords appear in the
// question and returns the best one. An entry whose question is contained in
// the text wins outright.
func (s *SQLiteStore) SearchFAQ(ctx context.Context, question string) (*domain.FAQEntry, error) {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, question, answer, keywords FROM faq ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query faq: %w", err)
	}
	defer closeRows(rows, "faq")

	var best *domain.FAQEntry
	bestScore := 0
	for rows.Next() {
		var e domain.FAQEntry
		if err := rows.Scan(&e.ID, &e.Question, &e.Answer, &e.Keywords); err != nil {
			return nil, fmt.Errorf("scan faq row: %w", err)
		}
		score := 0
		if asked := strings.ToLower(strings.Trim(e.Question, " \t?")); asked != "" && strings.Contains(q, asked) {
			score = 1 << 10
		}
		for _, kw := range strings.Split(e.Keywords, ",") {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(q, kw) {
				score++
			}
		}
		if score > bestScore {
			entry := e
			best, bestScore = &entry, score
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faq: %w", err)
	}
	return best, nil
}

// AddFAQ creates a FAQ entry.
func (s *SQLiteStore) AddFAQ(ctx context.Context, e *domain.FAQEntry) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO faq (question, answer, keywords) VALUES (?, ?, ?)`,
		e.Question, e.Answer, e.Keywords)
	if err != nil {
		return fmt.Errorf("insert faq: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("faq id: %w", err)
	}
	e.ID = id
	return nil
}

var defaultCategories = []domain.Category{
	{ID: "tax-returns", Name: "Tax Returns"},
	{ID: "receipts", Name: "Receipts"},
	{ID: "bank-statements", Name: "Bank Statements"},
	{ID: "payroll", Name: "Payroll"},
	{ID: "contracts", Name: "Contracts"},
}

var defaultFAQ = []domain.FAQEntry{
	{
		Question: "What are your office hours?",
		Answer:   "Our advisors are available Monday to Friday, 9am to 5pm.",
		Keywords: "hours,open,office",
	},
	{
		Question: "Which file types can I upload?",
		Answer:   "You can upload PDF, JPG and PNG files up to 10 MB each.",
		Keywords: "file type,pdf,format,upload",
	},
	{
		Question: "How do I pay an invoice?",
		Answer:   "Invoices can be paid by card or bank transfer from the Billing page.",
		Keywords: "pay,invoice,billing,card",
	},
	{
		Question: "How long does a tax return take?",
		Answer:   "Most returns are prepared within 10 business days of receiving all documents.",
		Keywords: "how long,tax return,turnaround",
	},
}

// SeedDefaults inserts the default categories and FAQ entries when the
// tables are empty.
func (s *SQLiteStore) SeedDefaults(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
		return fmt.Errorf("count categories: %w", err)
	}
	if n == 0 {
		for i := range defaultCategories {
			if err := s.UpsertCategory(ctx, &defaultCategories[i]); err != nil {
				return err
			}
		}
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM faq`).Scan(&n); err != nil {
		return fmt.Errorf("count faq: %w", err)
	}
	if n == 0 {
		for _, e := range defaultFAQ {
			entry := e
			if err := s.AddFAQ(ctx, &entry); err != nil {
				return err
			}
		}
	}
	return nil
}
