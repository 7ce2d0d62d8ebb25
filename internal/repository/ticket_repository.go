package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskline/helpdesk/internal/domain"
)

// TicketFilter captures inbox search parameters.
type TicketFilter struct {
	AssigneeID *string
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetVersion(ctx context.Context, id string) (*domain.TicketVersion, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// UpdateWithVersionCheck applies patch only if the stored version equals
	// expected, bumping the version by one. A moved version is reported in
	// the result, not as an error. A missing ticket returns pgx.ErrNoRows.
	UpdateWithVersionCheck(ctx context.Context, id string, expected int64, patch domain.TicketPatch, actorID string) (domain.VersionUpdateResult, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, external_key, requester_email, assignee_id, title, description,
               status, priority, tags, version, created_at, updated_at, updated_by`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (external_key, requester_email, assignee_id, title, description, status, priority, tags, version, updated_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	if ticket.Version == 0 {
		ticket.Version = domain.InitialTicketVersion
	}
	if ticket.Tags == nil {
		ticket.Tags = []string{}
	}
	return r.pool.QueryRow(ctx, query,
		ticket.ExternalKey,
		ticket.RequesterEmail,
		ticket.AssigneeID,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Tags,
		ticket.Version,
		ticket.UpdatedBy,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) GetVersion(ctx context.Context, id string) (*domain.TicketVersion, error) {
	const query = `SELECT id, version, updated_at, updated_by FROM tickets WHERE id=$1`
	var v domain.TicketVersion
	if err := r.pool.QueryRow(ctx, query, id).Scan(&v.TicketID, &v.Version, &v.UpdatedAt, &v.UpdatedBy); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) UpdateWithVersionCheck(ctx context.Context, id string, expected int64, patch domain.TicketPatch, actorID string) (domain.VersionUpdateResult, error) {
	query, args := buildVersionedUpdate(id, expected, patch, actorID)

	var updated domain.TicketVersion
	updated.TicketID = id
	err := r.pool.QueryRow(ctx, query, args...).Scan(&updated.Version, &updated.UpdatedAt, &updated.UpdatedBy)
	if err == nil {
		return domain.VersionUpdateResult{Updated: &updated}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.VersionUpdateResult{}, err
	}

	// No row matched: either the ticket is gone or the version moved.
	current, err := r.GetVersion(ctx, id)
	if err != nil {
		return domain.VersionUpdateResult{}, err
	}
	return domain.VersionUpdateResult{Conflict: &domain.VersionConflict{
		TicketID:        id,
		ExpectedVersion: expected,
		CurrentVersion:  current.Version,
		UpdatedBy:       current.UpdatedBy,
		UpdatedAt:       current.UpdatedAt,
	}}, nil
}

// buildVersionedUpdate renders the compare-and-swap statement. $1 is the
// ticket id and $2 the expected version.
func buildVersionedUpdate(id string, expected int64, patch domain.TicketPatch, actorID string) (string, []any) {
	args := []any{id, expected}
	sets := []string{}
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}

	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Status != nil {
		set("status", *patch.Status)
	}
	if patch.Priority != nil {
		set("priority", *patch.Priority)
	}
	if patch.AssigneeID != nil {
		if *patch.AssigneeID == "" {
			sets = append(sets, "assignee_id=NULL")
		} else {
			set("assignee_id", *patch.AssigneeID)
		}
	}
	if patch.Tags != nil {
		tags := *patch.Tags
		if tags == nil {
			tags = []string{}
		}
		set("tags", tags)
	}
	if actorID != "" {
		set("updated_by", actorID)
	}
	sets = append(sets, "version=version+1", "updated_at=NOW()")

	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE id=$1 AND version=$2 RETURNING version, updated_at, updated_by`,
		strings.Join(sets, ", "))
	return query, args
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.RequesterEmail,
		&ticket.AssigneeID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Tags,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.UpdatedBy,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
