package handler

import (
	"wallet-settlement/internal/adapter/http/dto"
	"wallet-settlement/internal/core/domain"
	"wallet-settlement/internal/core/ports"
	"wallet-settlement/pkg/apperror"
	"wallet-settlement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler handles operator endpoints.
type AdminHandler struct {
	walletSvc ports.WalletService
	authSvc   ports.AuthService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(walletSvc ports.WalletService, authSvc ports.AuthService) *AdminHandler {
	return &AdminHandler{
		walletSvc: walletSvc,
		authSvc:   authSvc,
	}
}

// Credit handles POST /api/v1/admin/wallets/:merchant_id/credit.
func (h *AdminHandler) Credit(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	merchantID, ok := uuidParam(c, "merchant_id")
	if !ok {
		return
	}

	var req dto.CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	entry, err := h.walletSvc.Credit(c.Request.Context(), actor, ports.CreditRequest{
		MerchantID:  merchantID,
		Amount:      req.Amount,
		ReferenceID: req.ReferenceID,
		Reason:      req.Reason,
		Metadata:    req.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// IssueToken handles POST /api/v1/admin/tokens.
func (h *AdminHandler) IssueToken(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req dto.IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	issued, err := h.authSvc.IssueToken(c.Request.Context(), actor, uuid.MustParse(req.Subject), domain.Role(req.Role))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, issued)
}
