package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"

	"crosspost/domain/dto"
	"crosspost/domain/model"
	"crosspost/infrastructure/logger"
)

const (
	userIDKey   = "user_id"
	tokenCookie = "access_token"
)

// Auth rejects requests without a valid HS256 token. The token is read from
// the Authorization header, or the access_token cookie on browser redirects.
func Auth(secretKey string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID, err := authenticate(ctx, secretKey)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, unauthorized(err))
			return
		}
		ctx.Set(userIDKey, userID)
		ctx.Next()
	}
}

// OptionalAuth resolves the user when a valid token is present and lets the
// request through either way.
func OptionalAuth(secretKey string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if userID, err := authenticate(ctx, secretKey); err == nil {
			ctx.Set(userIDKey, userID)
		}
		ctx.Next()
	}
}

// CurrentUser returns the user resolved by Auth or OptionalAuth.
func CurrentUser(ctx *gin.Context) (model.AuthUser, bool) {
	userID := ctx.GetString(userIDKey)
	if userID == "" {
		return model.AuthUser{}, false
	}
	return model.AuthUser{ID: userID}, true
}

var errMissingToken = errors.New("missing token")

func authenticate(ctx *gin.Context, secretKey string) (string, error) {
	raw := bearer(ctx.Request.Header.Get("Authorization"))
	if raw == "" {
		if c, err := ctx.Cookie(tokenCookie); err == nil {
			raw = c
		}
	}
	if raw == "" {
		return "", errMissingToken
	}
	claims, err := getClaim(raw, secretKey)
	if err != nil {
		logger.GetLogger().WithField("error", err).Debug("Token rejected")
		return "", err
	}
	userID := claims.Subject()
	if userID == "" {
		return "", errors.New("token has no subject")
	}
	return userID, nil
}

func bearer(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func getClaim(raw, secretKey string) (model.UserClaims, error) {
	var userClaims model.UserClaims
	_, err := jwt.ParseWithClaims(raw, &userClaims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secretKey), nil
	})
	return userClaims, err
}

func unauthorized(err error) dto.Res {
	res := dto.Res{ResponseCode: "401", ResponseMessage: "Unauthorized"}
	var ve *jwt.ValidationError
	if errors.As(err, &ve) {
		if ve.Errors&jwt.ValidationErrorMalformed != 0 {
			res.ResponseMessage = "That's not even a token"
		} else if ve.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0 {
			res.ResponseMessage = "Timing is everything"
		}
	}
	return res
}
