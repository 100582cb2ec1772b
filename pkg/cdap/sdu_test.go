package cdap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityProtection(t *testing.T) {
	p := IdentityProtection{}
	data := []byte("as is")

	out, err := p.Protect(data)
	require.NoError(t, err)
	assert.Equal(t, data, out)

	out, err = p.Unprotect(data)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestAEADProtection_RoundTrip(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i * 7)
	}
	p, err := NewAEADProtection(key)
	require.NoError(t, err)

	plain := []byte("management plane sdu")
	sealed, err := p.Protect(plain)
	require.NoError(t, err)
	assert.NotEqual(t, plain, sealed)

	opened, err := p.Unprotect(sealed)
	require.NoError(t, err)
	assert.Equal(t, plain, opened)
}

func TestAEADProtection_Tampering(t *testing.T) {
	key := make([]byte, 32)
	p, err := NewAEADProtection(key)
	require.NoError(t, err)

	sealed, err := p.Protect([]byte("payload"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0x01

	_, err = p.Unprotect(sealed)
	assert.Error(t, err)

	_, err = p.Unprotect([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestAEADProtection_KeySize(t *testing.T) {
	_, err := NewAEADProtection(make([]byte, 16))
	assert.Error(t, err)
}
