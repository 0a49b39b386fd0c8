package secret

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var testKey = bytes.Repeat([]byte{0x42}, 32)

func TestNewBoxRejectsShortKey(t *testing.T) {
	_, err := NewBox([]byte("too short"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestNewBoxFromHex(t *testing.T) {
	_, err := NewBoxFromHex("4242424242424242424242424242424242424242424242424242424242424242")
	require.NoError(t, err)

	_, err = NewBoxFromHex("not hex")
	assert.Error(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	box, err := NewBox(testKey)
	require.NoError(t, err)

	sealed, err := box.Encrypt([]byte("p4ssw0rd"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "p4ssw0rd")

	opened, err := box.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("p4ssw0rd"), opened)
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	box, err := NewBox(testKey)
	require.NoError(t, err)

	a, err := box.Encrypt([]byte("same input"))
	require.NoError(t, err)
	b, err := box.Encrypt([]byte("same input"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDecryptRejectsTampering(t *testing.T) {
	box, err := NewBox(testKey)
	require.NoError(t, err)

	sealed, err := box.Encrypt([]byte("p4ssw0rd"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0x01
	_, err = box.Decrypt(sealed)
	assert.Error(t, err)
}

func TestDecryptRejectsShortCiphertext(t *testing.T) {
	box, err := NewBox(testKey)
	require.NoError(t, err)

	_, err = box.Decrypt([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestRoundTripProperty(t *testing.T) {
	box, err := NewBox(testKey)
	require.NoError(t, err)

	rapid.Check(t, func(t *rapid.T) {
		plaintext := rapid.SliceOf(rapid.Byte()).Draw(t, "plaintext")

		sealed, err := box.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("encrypt failed: %v", err)
		}
		opened, err := box.Decrypt(sealed)
		if err != nil {
			t.Fatalf("decrypt failed: %v", err)
		}
		if !bytes.Equal(plaintext, opened) {
			t.Fatalf("round trip mismatch: %x != %x", plaintext, opened)
		}
	})
}
