// internal/utils/jwt.go
package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const jwtIssuer = "vidmarket"

type JWTClaims struct {
	AccountID         string `json:"account_id"`
	Handle            string `json:"handle"`
	IsVerifiedCreator bool   `json:"is_verified_creator"`
	jwt.RegisteredClaims
}

var jwtSecret = []byte("your-secret-key-change-in-production")

func SetJWTSecret(secret string) {
	jwtSecret = []byte(secret)
}

func GenerateJWT(accountID uuid.UUID, handle string, isVerifiedCreator bool, ttlHours int) (string, error) {
	claims := JWTClaims{
		AccountID:         accountID.String(),
		Handle:            handle,
		IsVerifiedCreator: isVerifiedCreator,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(ttlHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    jwtIssuer,
			Subject:   accountID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ValidateJWT(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid && claims.AccountID != "" {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

func GenerateRefreshToken(accountID uuid.UUID, ttlHours int) (string, error) {
	claims := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(ttlHours) * time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		NotBefore: jwt.NewNumericDate(time.Now()),
		Issuer:    jwtIssuer,
		Subject:   accountID.String(),
		Audience:  jwt.ClaimStrings{"refresh"},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ValidateRefreshToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})

	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(*jwt.RegisteredClaims); ok && token.Valid && claims.VerifyAudience("refresh", true) {
		return claims.Subject, nil
	}

	return "", errors.New("invalid refresh token")
}

const viewingAudience = "viewing"

// ViewingClaims let a buyer without an account watch one purchased asset.
// Subject is the buyer id the purchase was recorded under.
type ViewingClaims struct {
	AssetID string `json:"asset_id"`
	jwt.RegisteredClaims
}

func GenerateViewingToken(buyerID string, assetID uuid.UUID, ttlHours int) (string, error) {
	claims := ViewingClaims{
		AssetID: assetID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(ttlHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    jwtIssuer,
			Subject:   buyerID,
			Audience:  jwt.ClaimStrings{viewingAudience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ValidateViewingToken(tokenString string) (*ViewingClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ViewingClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*ViewingClaims)
	if !ok || !token.Valid || !claims.VerifyAudience(viewingAudience, true) || claims.Subject == "" || claims.AssetID == "" {
		return nil, errors.New("invalid viewing token")
	}
	return claims, nil
}
