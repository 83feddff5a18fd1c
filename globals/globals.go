package globals

import (
	"context"
	"os"
)

var (
	JwtSecret = []byte(getEnv("JWT_SECRET", "your_secret_key"))
	// Signs the QR payload on printed queue tokens.
	TokenHMACSecret = []byte(getEnv("TOKEN_HMAC_SECRET", "smartq-token-secret"))
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Context keys
type ContextKey string

const RoleKey ContextKey = "role"
const UserIDKey ContextKey = "userId"

var Ctx = context.Background()
