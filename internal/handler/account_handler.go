package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bdos/internal/service/portfolio"
)

type AccountHandler struct {
	portfolio Portfolio
	logger    *zap.Logger
}

func NewAccountHandler(p Portfolio, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{portfolio: p, logger: logger}
}

// Dashboard GET /
func (h *AccountHandler) Dashboard(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	dash, err := h.portfolio.Dashboard(c.Request.Context(), actor)
	if err != nil {
		writeError(c, reqLogger(c, h.logger), "dashboard", err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

// ListAccounts GET /accounts
func (h *AccountHandler) ListAccounts(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	accounts, err := h.portfolio.ListAccounts(c.Request.Context(), actor)
	if err != nil {
		writeError(c, reqLogger(c, h.logger), "list accounts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

// CreateAccount POST /accounts
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var in portfolio.NewAccount
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	log := reqLogger(c, h.logger)
	account, err := h.portfolio.CreateAccount(c.Request.Context(), actor, in)
	if err != nil {
		writeError(c, log, "create account", err)
		return
	}
	log.Info("Account created", zap.Int("account_id", account.ID), zap.Int("org_id", actor.OrgID))
	c.JSON(http.StatusCreated, account)
}

// GetAccount GET /accounts/:id
func (h *AccountHandler) GetAccount(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	accountID, ok := paramID(c, "id")
	if !ok {
		return
	}
	view, err := h.portfolio.GetAccount(c.Request.Context(), actor, accountID)
	if err != nil {
		writeError(c, reqLogger(c, h.logger), "get account", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// AddContact POST /accounts/:id/contacts
func (h *AccountHandler) AddContact(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	accountID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in portfolio.NewContact
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	contact, err := h.portfolio.AddContact(c.Request.Context(), actor, accountID, in)
	if err != nil {
		writeError(c, reqLogger(c, h.logger), "add contact", err)
		return
	}
	c.JSON(http.StatusCreated, contact)
}
