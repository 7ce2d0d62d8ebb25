package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/deskline/helpdesk/internal/auth"
	"github.com/deskline/helpdesk/internal/config"
	"github.com/deskline/helpdesk/internal/domain"
	"github.com/deskline/helpdesk/internal/repository"
	apperrors "github.com/deskline/helpdesk/pkg/util/errorutil"
)

const invalidCredentials = "invalid email or password"

var handlePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// AuthService coordinates agent login and the sign-in audit trail.
type AuthService struct {
	agents     repository.AgentRepository
	attempts   repository.LoginAttemptRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	AgentRepo        repository.AgentRepository
	LoginAttemptRepo repository.LoginAttemptRepository
	TokenManager     *auth.TokenManager
	Logger           *zap.Logger
}

// LoginMeta carries request details recorded with each attempt.
type LoginMeta struct {
	IPAddress string
	UserAgent string
}

// LoginResult is a successful sign-in.
type LoginResult struct {
	Agent     *domain.Agent
	Token     string
	ExpiresAt time.Time
}

// AgentCreateInput describes a new agent account.
type AgentCreateInput struct {
	Name     string
	Handle   string
	Email    string
	Password string
	Role     domain.AgentRole
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tokens := deps.TokenManager
	if tokens == nil {
		tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	}
	return &AuthService{
		agents:     deps.AgentRepo,
		attempts:   deps.LoginAttemptRepo,
		tokenMgr:   tokens,
		bcryptCost: cfg.Auth.BcryptCost,
		logger:     logger,
	}
}

// Login verifies credentials and issues an access token. Every attempt is
// audited. Unknown emails and wrong passwords fail with the same message.
func (s *AuthService) Login(ctx context.Context, email, password string, meta LoginMeta) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password required", nil)
	}

	attempt := &domain.LoginAttempt{
		Email:     email,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}

	agent, err := s.agents.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		auth.BurnCompare(password)
		attempt.Reason = domain.LoginReasonUnknownEmail
		s.audit(ctx, attempt)
		return nil, apperrors.NewUnauthorized(invalidCredentials)
	}

	agentID := agent.ID
	attempt.AgentID = &agentID
	if err := auth.ComparePassword(agent.PasswordHash, password); err != nil {
		attempt.Reason = domain.LoginReasonBadPassword
		s.audit(ctx, attempt)
		return nil, apperrors.NewUnauthorized(invalidCredentials)
	}
	if !agent.Active {
		attempt.Reason = domain.LoginReasonAgentInactive
		s.audit(ctx, attempt)
		return nil, apperrors.NewForbidden("agent account inactive")
	}

	token, exp, err := s.tokenMgr.GenerateToken(agent)
	if err != nil {
		return nil, err
	}
	attempt.Success = true
	attempt.Reason = domain.LoginReasonOK
	s.audit(ctx, attempt)

	return &LoginResult{Agent: agent, Token: token, ExpiresAt: exp}, nil
}

// ListLoginAttempts returns the most recent attempts, newest first.
func (s *AuthService) ListLoginAttempts(ctx context.Context, limit int) ([]domain.LoginAttempt, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.attempts.ListRecent(ctx, limit)
}

// CreateAgent registers a new agent account.
func (s *AuthService) CreateAgent(ctx context.Context, input AgentCreateInput) (*domain.Agent, error) {
	name := strings.TrimSpace(input.Name)
	handle := strings.ToLower(strings.TrimSpace(input.Handle))
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if name == "" || email == "" || input.Password == "" {
		return nil, apperrors.NewValidationError("name, email and password required", nil)
	}
	if !handlePattern.MatchString(handle) {
		return nil, apperrors.NewValidationError("handle may only contain letters, digits, '.', '_' and '-'",
			map[string]any{"handle": input.Handle})
	}
	if input.Role == "" {
		input.Role = domain.AgentRoleAgent
	}
	switch input.Role {
	case domain.AgentRoleAdmin, domain.AgentRoleAgent, domain.AgentRoleViewer:
	default:
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": input.Role})
	}

	if _, err := s.agents.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	agent := &domain.Agent{
		Name:         name,
		Handle:       handle,
		Email:        email,
		PasswordHash: hash,
		Role:         input.Role,
		Active:       true,
	}
	if err := s.agents.Create(ctx, agent); err != nil {
		return nil, err
	}
	return agent, nil
}

// EnsureAdmin creates an admin account for email when none exists yet, so
// a fresh install has someone who can register the other agents.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) (*domain.Agent, bool, error) {
	existing, err := s.agents.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}
	if name == "" {
		name = "Administrator"
	}
	agent, err := s.CreateAgent(ctx, AgentCreateInput{
		Name:     name,
		Handle:   "admin",
		Email:    email,
		Password: password,
		Role:     domain.AgentRoleAdmin,
	})
	if err != nil {
		return nil, false, err
	}
	s.logger.Info("bootstrap admin created", zap.String("agent_id", agent.ID), zap.String("email", agent.Email))
	return agent, true, nil
}

func (s *AuthService) audit(ctx context.Context, attempt *domain.LoginAttempt) {
	if s.attempts == nil {
		return
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		s.logger.Error("failed to record login attempt",
			zap.String("email", attempt.Email),
			zap.String("reason", attempt.Reason),
			zap.Error(err))
	}
}
