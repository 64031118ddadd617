package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/golang-jwt/jwt/v4"
)

const (
	jwtClaimUserID      = "user_id"
	jwtClaimDisplayName = "display_name"
)

var ErrNoIdentity = errors.New("user identity not found in context")

// Identity is the authenticated caller.
type Identity struct {
	UserID      int64
	DisplayName string
}

func identityFromClaims(claims jwt.MapClaims) (Identity, error) {
	userIDClaim, ok := claims[jwtClaimUserID]
	if !ok {
		return Identity{}, fmt.Errorf("missing '%s' claim in token", jwtClaimUserID)
	}

	var userID int64
	switch v := userIDClaim.(type) {
	case float64:
		if v != math.Trunc(v) {
			return Identity{}, fmt.Errorf("'%s' claim is not an integer: %f", jwtClaimUserID, v)
		}
		userID = int64(v)
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Identity{}, fmt.Errorf("invalid '%s' claim %q: %w", jwtClaimUserID, v, err)
		}
		userID = parsed
	default:
		return Identity{}, fmt.Errorf("invalid type for '%s' claim: expected number or string, got %T", jwtClaimUserID, userIDClaim)
	}
	if userID <= 0 {
		return Identity{}, fmt.Errorf("invalid user ID value in '%s' claim: %d", jwtClaimUserID, userID)
	}

	name, _ := claims[jwtClaimDisplayName].(string)
	return Identity{UserID: userID, DisplayName: name}, nil
}

func IdentityFromContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(userContextKey).(Identity)
	if !ok {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}

func GetUserIDFromContext(ctx context.Context) (int64, error) {
	id, err := IdentityFromContext(ctx)
	if err != nil {
		return 0, err
	}
	return id.UserID, nil
}
