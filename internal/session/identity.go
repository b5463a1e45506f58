package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/seatsync/seatsync/internal/models"
)

// ErrNoIdentity is returned when a token carries no usable user claim.
var ErrNoIdentity = errors.New("token has no sub or user_id claim")

// UserIDFromToken reads the user identity from a JWT without verifying
// its signature; the backend verifies it on every request. The sub claim
// wins over user_id, and numeric IDs are kept verbatim.
func UserIDFromToken(token string) (models.ID, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser(jwt.WithJSONNumber()).ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("parsing token: %w", err)
	}

	for _, key := range []string{"sub", "user_id"} {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return models.ID(v), nil
			}
		case json.Number:
			return models.ID(v.String()), nil
		}
	}

	return "", ErrNoIdentity
}
