package service

import (
	"context"
	"fmt"

	"wallet-settlement/internal/core/domain"
	"wallet-settlement/internal/core/ports"
	"wallet-settlement/pkg/apperror"

	"github.com/google/uuid"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	tokenSvc  ports.TokenService
	walletSvc ports.WalletService
	auditSvc  ports.AuditService
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(tokenSvc ports.TokenService, walletSvc ports.WalletService, auditSvc ports.AuditService) *AuthServiceImpl {
	return &AuthServiceImpl{
		tokenSvc:  tokenSvc,
		walletSvc: walletSvc,
		auditSvc:  auditSvc,
	}
}

// IssueToken signs a bearer token for subject. Only operators may issue
// tokens. A merchant token also provisions the merchant's wallet.
func (s *AuthServiceImpl) IssueToken(ctx context.Context, actor domain.Actor, subject uuid.UUID, role domain.Role) (*ports.IssuedToken, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, apperror.ErrForbidden()
	}
	if subject == uuid.Nil {
		return nil, apperror.Validation("Subject is required")
	}
	switch role {
	case domain.RoleMerchant:
		if _, err := s.walletSvc.GetOrCreateWallet(ctx, subject); err != nil {
			return nil, err
		}
	case domain.RoleAdmin:
	default:
		return nil, apperror.Validation("Role must be merchant or admin")
	}

	token, expiresAt, err := s.tokenSvc.Generate(subject, role)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	s.auditSvc.Log(ctx, newAuditLog(&actor, subject, domain.AuditActionIssueToken, "token", subject.String(), map[string]any{
		"role": string(role),
	}))

	return &ports.IssuedToken{
		Token:     token,
		ExpiresAt: expiresAt,
		Subject:   subject,
		Role:      role,
	}, nil
}
