package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/optiqlab/scopecore/internal/types"
)

// POST /api/v1/auth/login
func (s *Server) login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("bad_request", "invalid request body", err.Error()))
		return
	}

	token, err := s.authService.Login(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, types.NewErrorResponse("unauthorized", "invalid credentials", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token})
}

// POST /api/v1/tokens
func (s *Server) createAPIToken(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("bad_request", "invalid request body", err.Error()))
		return
	}

	token, err := s.authService.IssueAPIToken(req.Name)
	if err != nil {
		s.respondError(c, err)
		return
	}

	// Plaintext is returned exactly once; only its hash is stored.
	c.JSON(http.StatusCreated, gin.H{
		"name":  req.Name,
		"token": token,
	})
}

// GET /api/v1/tokens
func (s *Server) listAPITokens(c *gin.Context) {
	tokens, err := s.lm.Storage().ListAPITokens()
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tokens": tokens,
		"count":  len(tokens),
	})
}

// DELETE /api/v1/tokens/:name
func (s *Server) revokeAPIToken(c *gin.Context) {
	if err := s.lm.Storage().RevokeAPIToken(c.Param("name")); err != nil {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("not_found", err.Error(), nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "token revoked"})
}
