package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cheapHasher keeps argon2 fast in tests; production uses DefaultArgon2Params.
func cheapHasher() *Argon2HashService {
	return NewArgon2HashServiceWithParams(Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16})
}

func TestArgon2HashService_HashAndVerify(t *testing.T) {
	svc := cheapHasher()

	hash, err := svc.Hash("SecureP@ssw0rd!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v="))

	match, err := svc.Verify("SecureP@ssw0rd!", hash)
	require.NoError(t, err)
	assert.True(t, match)

	match, err = svc.Verify("wrong-password", hash)
	require.NoError(t, err)
	assert.False(t, match)
}

func TestArgon2HashService_UniqueSalts(t *testing.T) {
	svc := cheapHasher()

	hash1, err := svc.Hash("same-password")
	require.NoError(t, err)
	hash2, err := svc.Hash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, hash1, hash2)
}

func TestArgon2HashService_VerifyUsesEncodedParams(t *testing.T) {
	hash, err := cheapHasher().Hash("pw")
	require.NoError(t, err)

	// A service configured with different costs still verifies older hashes.
	match, err := NewArgon2HashService().Verify("pw", hash)
	require.NoError(t, err)
	assert.True(t, match)
}

func TestArgon2HashService_DefaultParamsEncoded(t *testing.T) {
	hash, err := NewArgon2HashService().Hash("test")
	require.NoError(t, err)
	assert.Contains(t, hash, "m=65536,t=1,p=4")
}

func TestArgon2HashService_VerifyInvalidFormat(t *testing.T) {
	svc := cheapHasher()

	tests := []struct {
		name string
		hash string
	}{
		{"not a hash", "not-a-valid-hash"},
		{"wrong algorithm", "$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA"},
		{"wrong version", "$argon2id$v=16$m=1024,t=1,p=1$c2FsdA$aGFzaA"},
		{"bad salt", "$argon2id$v=19$m=1024,t=1,p=1$!!!$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify("password", tt.hash)
			assert.Error(t, err)
		})
	}
}
