package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskline/helpdesk/internal/domain"
)

// CommentRepository manages ticket comments and the mentions they carry.
type CommentRepository interface {
	// Create stores the comment and its mentions in one transaction.
	Create(ctx context.Context, comment *domain.TicketComment) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketComment, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository builds repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.TicketComment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insertComment = `
        INSERT INTO ticket_comments (ticket_id, author_id, author_name, body, internal)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	if err := tx.QueryRow(ctx, insertComment,
		comment.TicketID,
		comment.AuthorID,
		comment.AuthorName,
		comment.Body,
		comment.Internal,
	).Scan(&comment.ID, &comment.CreatedAt); err != nil {
		return err
	}

	const insertMention = `
        INSERT INTO ticket_mentions (comment_id, ticket_id, agent_id, handle)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	for i := range comment.Mentions {
		m := &comment.Mentions[i]
		m.CommentID = comment.ID
		m.TicketID = comment.TicketID
		if err := tx.QueryRow(ctx, insertMention, m.CommentID, m.TicketID, m.AgentID, m.Handle).
			Scan(&m.ID, &m.CreatedAt); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *commentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketComment, error) {
	const query = `
        SELECT id, ticket_id, author_id, author_name, body, internal, created_at
        FROM ticket_comments WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketComment
	index := map[string]int{}
	for rows.Next() {
		var c domain.TicketComment
		if err := rows.Scan(&c.ID, &c.TicketID, &c.AuthorID, &c.AuthorName, &c.Body, &c.Internal, &c.CreatedAt); err != nil {
			return nil, err
		}
		index[c.ID] = len(result)
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return result, nil
	}

	mentions, err := r.listMentions(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	for _, m := range mentions {
		if i, ok := index[m.CommentID]; ok {
			result[i].Mentions = append(result[i].Mentions, m)
		}
	}
	return result, nil
}

func (r *commentRepository) listMentions(ctx context.Context, ticketID string) ([]domain.Mention, error) {
	const query = `
        SELECT id, comment_id, ticket_id, agent_id, handle, created_at
        FROM ticket_mentions WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Mention, error) {
		var m domain.Mention
		err := row.Scan(&m.ID, &m.CommentID, &m.TicketID, &m.AgentID, &m.Handle, &m.CreatedAt)
		return m, err
	})
}
