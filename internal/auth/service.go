package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/optiqlab/scopecore/internal/config"
	"github.com/optiqlab/scopecore/internal/storage"
	"go.uber.org/zap"
)

// AuthService authenticates operators (password → JWT session) and
// automation clients (long-lived API tokens).
type AuthService struct {
	cfg        config.AuthConfig
	jwtHandler *JWTHandler
	hasher     *PasswordHasher
	tokens     *APITokenGenerator
	storage    *storage.Client
	logger     *zap.Logger
}

func NewAuthService(cfg config.AuthConfig, storage *storage.Client, logger *zap.Logger) *AuthService {
	return &AuthService{
		cfg:        cfg,
		jwtHandler: NewJWTHandler(cfg.GetJWTSecret(), cfg.AccessTokenTTL),
		hasher:     NewPasswordHasher(),
		tokens:     NewAPITokenGenerator(),
		storage:    storage,
		logger:     logger,
	}
}

// Login verifies the operator credentials and issues a session token.
func (a *AuthService) Login(username, password string) (string, error) {
	if username != a.cfg.OperatorUser || a.cfg.OperatorPasswordHash == "" {
		return "", fmt.Errorf("invalid credentials")
	}

	ok, err := a.hasher.VerifyPassword(password, a.cfg.OperatorPasswordHash)
	if err != nil || !ok {
		a.logger.Warn("Operator login failed", zap.String("username", username))
		return "", fmt.Errorf("invalid credentials")
	}

	return a.jwtHandler.GenerateAccessToken(username)
}

// ValidateToken accepts either a JWT session token or an API token and
// returns the authenticated principal name.
func (a *AuthService) ValidateToken(token string) (string, error) {
	if claims, err := a.jwtHandler.ValidateAccessToken(token); err == nil {
		return claims.Username, nil
	}

	if a.tokens.ValidateTokenFormat(token) {
		name, err := a.storage.LookupAPIToken(a.tokens.HashToken(token))
		if err == nil {
			return name, nil
		}
	}

	return "", fmt.Errorf("invalid or expired token")
}

// IssueAPIToken generates and persists a new automation token. The
// plaintext is returned exactly once.
func (a *AuthService) IssueAPIToken(name string) (string, error) {
	token, hash, err := a.tokens.GenerateToken()
	if err != nil {
		return "", err
	}
	if _, err := a.storage.SaveAPIToken(name, hash); err != nil {
		return "", err
	}
	return token, nil
}

// Middleware enforces authentication on the control API.
func (a *AuthService) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		principal, err := a.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("principal", principal)
		c.Next()
	}
}
