package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/deskline/helpdesk/internal/auth"
	"github.com/deskline/helpdesk/internal/config"
	"github.com/deskline/helpdesk/internal/domain"
	"github.com/deskline/helpdesk/internal/repository/memory"
)

func newAuthFixture(t *testing.T) (*AuthService, *memory.LoginAttemptRepository, *auth.TokenManager) {
	t.Helper()
	hash, err := auth.HashPassword("geheim123", bcrypt.MinCost)
	require.NoError(t, err)
	agents := memory.NewAgentRepository(
		domain.Agent{ID: "a-1", Name: "Anna", Handle: "anna", Email: "anna@example.com", PasswordHash: hash, Role: domain.AgentRoleAgent, Active: true},
		domain.Agent{ID: "a-2", Name: "Oud", Handle: "oud", Email: "oud@example.com", PasswordHash: hash, Role: domain.AgentRoleAgent, Active: false},
	)
	attempts := memory.NewLoginAttemptRepository()
	tokens := auth.NewTokenManager("test-secret", 15)
	cfg := config.Config{Auth: config.AuthConfig{BcryptCost: bcrypt.MinCost}}
	svc := NewAuthService(cfg, AuthDependencies{
		AgentRepo:        agents,
		LoginAttemptRepo: attempts,
		TokenManager:     tokens,
	})
	return svc, attempts, tokens
}

func TestLoginSuccessIssuesToken(t *testing.T) {
	svc, attempts, tokens := newAuthFixture(t)

	result, err := svc.Login(context.Background(), " Anna@Example.com ", "geheim123", LoginMeta{IPAddress: "10.0.0.1", UserAgent: "test"})
	require.NoError(t, err)

	claims, err := tokens.ParseToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "a-1", claims.AgentID)
	assert.Equal(t, domain.AgentRoleAgent, claims.Role)

	logged, err := attempts.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.True(t, logged[0].Success)
	assert.Equal(t, domain.LoginReasonOK, logged[0].Reason)
	assert.Equal(t, "anna@example.com", logged[0].Email)
	assert.Equal(t, "10.0.0.1", logged[0].IPAddress)
	require.NotNil(t, logged[0].AgentID)
	assert.Equal(t, "a-1", *logged[0].AgentID)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	_, unknownErr := svc.Login(ctx, "niemand@example.com", "geheim123", LoginMeta{})
	_, badErr := svc.Login(ctx, "anna@example.com", "fout", LoginMeta{})
	requireCode(t, unknownErr, "UNAUTHORIZED")
	requireCode(t, badErr, "UNAUTHORIZED")
	assert.Equal(t, unknownErr.Error(), badErr.Error())

	_, inactiveErr := svc.Login(ctx, "oud@example.com", "geheim123", LoginMeta{})
	requireCode(t, inactiveErr, "FORBIDDEN")

	recent, err := svc.ListLoginAttempts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, domain.LoginReasonAgentInactive, recent[0].Reason)
	assert.Equal(t, domain.LoginReasonBadPassword, recent[1].Reason)
	assert.Equal(t, domain.LoginReasonUnknownEmail, recent[2].Reason)
	assert.Nil(t, recent[2].AgentID)
	for _, a := range recent {
		assert.False(t, a.Success)
	}
}

func TestCreateAgent(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	agent, err := svc.CreateAgent(ctx, AgentCreateInput{Name: "Bram", Handle: "Bram.J", Email: "bram@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "bram.j", agent.Handle)
	assert.Equal(t, domain.AgentRoleAgent, agent.Role)
	assert.NoError(t, auth.ComparePassword(agent.PasswordHash, "pw"))

	_, err = svc.CreateAgent(ctx, AgentCreateInput{Name: "X", Handle: "x", Email: "anna@example.com", Password: "pw"})
	requireCode(t, err, "CONFLICT")

	_, err = svc.CreateAgent(ctx, AgentCreateInput{Name: "X", Handle: "met spatie", Email: "x@example.com", Password: "pw"})
	requireCode(t, err, "VALIDATION_FAILED")
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	admin, created, err := svc.EnsureAdmin(ctx, "", "Root@Example.com", "s3cret")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.AgentRoleAdmin, admin.Role)
	assert.Equal(t, "root@example.com", admin.Email)

	again, created, err := svc.EnsureAdmin(ctx, "", "root@example.com", "other")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, admin.ID, again.ID)

	_, err = svc.Login(ctx, "root@example.com", "s3cret", LoginMeta{})
	assert.NoError(t, err)
}
