package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandPrintsVerifiableToken(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--user", "user-alice", "--secret", "s3cret", "--ttl", "5m"})

	require.NoError(t, cmd.Execute())

	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(out.String()), claims, func(*jwt.Token) (interface{}, error) {
		return []byte("s3cret"), nil
	})
	require.NoError(t, err)
	assert.True(t, token.Valid)
	assert.Equal(t, "user-alice", claims.Subject)
	assert.Equal(t, int64(300), claims.ExpiresAt-claims.IssuedAt)
}

func TestRootCommandRequiresUser(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--secret", "s3cret"})
	assert.Error(t, cmd.Execute())
}

func TestSignRejectsBadOptions(t *testing.T) {
	_, err := sign(options{userID: "u", ttl: 0, secret: "k"})
	assert.Error(t, err)
	_, err = sign(options{userID: "u", ttl: 1})
	assert.Error(t, err)
}
