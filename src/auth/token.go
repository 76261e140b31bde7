package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/clynamic/tagem/src/apierr"
	"github.com/clynamic/tagem/src/models"
	"github.com/clynamic/tagem/src/oops"
	"github.com/golang-jwt/jwt/v5"
)

const keyLength = 32

func generateKey() (string, error) {
	keyBytes := make([]byte, keyLength)
	if _, err := rand.Read(keyBytes); err != nil {
		return "", oops.New(err, "failed to generate signing key")
	}
	return hex.EncodeToString(keyBytes), nil
}

/*
Reads the token signing key from path, creating a new random one there if the
file does not exist yet. The key is the hex text itself, so an operator can
replace the file with any secret they like.
*/
func LoadOrCreateKey(path string) ([]byte, error) {
	contents, err := os.ReadFile(path)
	if err == nil {
		key := strings.TrimSpace(string(contents))
		if key == "" {
			return nil, oops.New(nil, "signing key file %s is empty", path)
		}
		return []byte(key), nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, oops.New(err, "failed to read signing key file %s", path)
	}

	key, err := generateKey()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(key), 0600); err != nil {
		return nil, oops.New(err, "failed to write signing key file %s", path)
	}
	return []byte(key), nil
}

type Claims struct {
	UserID   int         `json:"user_id"`
	UserName string      `json:"user_name"`
	UserRank models.Rank `json:"user_rank"`
	jwt.RegisteredClaims
}

func MintToken(key []byte, user *models.User, lifetime time.Duration, now time.Time) (string, error) {
	claims := Claims{
		UserID:   user.ID,
		UserName: user.Name,
		UserRank: user.Rank,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", oops.New(err, "failed to sign token")
	}
	return token, nil
}

var errInvalidToken = apierr.Unauthorized("Invalid token")

// Verifies the signature and expiry of a token. Any problem with the token is
// an Unauthorized error.
func ParseToken(key []byte, tokenString string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, errInvalidToken
	}
	if claims.UserID == 0 || !claims.UserRank.IsValid() {
		return nil, errInvalidToken
	}
	return &claims, nil
}

// Pulls the token out of an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
