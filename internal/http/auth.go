package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	applog "campusbudget/internal/log"
	"campusbudget/internal/middleware/trace"
)

type ctxKey string

const userIDKey ctxKey = "user_id"

var errUnauthorized = errors.New("unauthorized")

// Authenticator identifies the user of a request from an HS256 bearer token
// whose subject is the numeric user id. Tokens are issued elsewhere.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

func NewAuthenticator(secret []byte) *Authenticator {
	return &Authenticator{secret: secret, now: time.Now}
}

// Authenticate validates the Authorization header and returns the user id.
func (a *Authenticator) Authenticate(r *http.Request) (int64, error) {
	h := r.Header.Get("Authorization")
	if h == "" || !strings.HasPrefix(h, "Bearer ") {
		return 0, fmt.Errorf("%w: missing bearer token", errUnauthorized)
	}
	tokenStr := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("%w: invalid token", errUnauthorized)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: invalid subject", errUnauthorized)
	}
	return userID, nil
}

// Middleware rejects unauthenticated requests and puts the user id in the
// request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.Authenticate(r)
		if err != nil {
			applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).
				WarnContext(r.Context(), "Rejected request", applog.FieldPath, r.URL.Path, applog.FieldError, err.Error())
			UnauthorizedError(strings.TrimPrefix(err.Error(), errUnauthorized.Error()+": ")).
				RequestID(trace.RequestID(r)).Write(w)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		logger := applog.FromContext(ctx).With(applog.FieldUserID, userID)
		ctx = context.WithValue(ctx, applog.LoggerContextKey, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IssueToken signs a token for userID valid for ttl.
func (a *Authenticator) IssueToken(userID int64, ttl time.Duration) (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// UserIDFromContext returns the authenticated user id.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}
