package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/speedfriending/backend/internal/models"
	"github.com/speedfriending/backend/internal/store"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// CreateAdminAccount creates or replaces an administrator login (used for seeding)
func CreateAdminAccount(ctx context.Context, st store.AdminStore, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return st.UpsertAdminAccount(ctx, username, string(hashed))
}

// VerifyPassword checks if the provided password matches the stored hash
func VerifyPassword(hashed, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

// ValidateAdminCredentials validates a username + password combination
func ValidateAdminCredentials(ctx context.Context, st store.AdminStore, username, password string) (*models.AdminAccount, error) {
	acct, err := st.GetAdminAccount(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("[ADMIN] No admin account found for %s", username)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if !VerifyPassword(acct.PasswordHash, password) {
		log.Printf("[ADMIN] Password verification failed for %s", username)
		return nil, ErrInvalidCredentials
	}
	return acct, nil
}

// IssueToken signs an HS256 bearer token for the administrator.
func IssueToken(secret, username string, ttl time.Duration) (string, time.Time, error) {
	exp := time.Now().Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// ParseToken validates a bearer token and returns the administrator's username.
func ParseToken(secret, token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// LogAdminAction records an admin action in the audit log
func LogAdminAction(ctx context.Context, st store.AdminStore, username, ip, route, action string, details map[string]interface{}, success bool) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil || details == nil {
		detailsJSON = []byte("{}")
	}

	err = st.InsertAdminAudit(ctx, &models.AdminAudit{
		AdminUsername: username,
		IP:            ip,
		Route:         route,
		Action:        action,
		Details:       string(detailsJSON),
		Success:       success,
	})
	if err != nil {
		log.Printf("[ADMIN] Failed to log admin action: %v", err)
	}
	return err
}

// GetAdminAuditLogs retrieves recent audit entries, newest first. An empty
// username returns every administrator's entries.
func GetAdminAuditLogs(ctx context.Context, st store.AdminStore, username string, limit, offset int) ([]models.AdminAudit, error) {
	if limit <= 0 {
		limit = 25
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return st.ListAdminAudit(ctx, username, limit, offset)
}
