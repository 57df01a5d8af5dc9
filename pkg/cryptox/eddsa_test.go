package cryptox_test

import (
	"crypto/ed25519"
	"encoding/pem"
	"testing"

	"github.com/aussiebroadwan/vouchercheck/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseEd25519Key(t *testing.T) {
	pemBytes, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)

	block, _ := pem.Decode(pemBytes)
	require.NotNil(t, block)
	require.Equal(t, "PRIVATE KEY", block.Type)

	key, err := cryptox.ParseEd25519PrivateKey(pemBytes)
	require.NoError(t, err)
	require.Len(t, key, ed25519.PrivateKeySize)
}

func TestParseEd25519PrivateKeyRejectsJunk(t *testing.T) {
	_, err := cryptox.ParseEd25519PrivateKey([]byte("not pem"))
	require.Error(t, err)

	wrongType := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: []byte{1, 2, 3}})
	_, err = cryptox.ParseEd25519PrivateKey(wrongType)
	require.Error(t, err)
}
