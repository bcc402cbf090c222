package encryption

import (
	"context"
	"testing"

	"social-service/internal/config"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKMS struct {
	generated int
	decrypted int
}

func (f *fakeKMS) GenerateDataKey(_ context.Context, _ *kms.GenerateDataKeyInput, _ ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error) {
	f.generated++
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	// The "ciphertext" is the key reversed so Decrypt can recover it.
	blob := make([]byte, 32)
	for i := range key {
		blob[i] = key[31-i]
	}
	return &kms.GenerateDataKeyOutput{Plaintext: key, CiphertextBlob: blob}, nil
}

func (f *fakeKMS) Decrypt(_ context.Context, in *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	f.decrypted++
	key := make([]byte, len(in.CiphertextBlob))
	for i := range key {
		key[i] = in.CiphertextBlob[len(key)-1-i]
	}
	return &kms.DecryptOutput{Plaintext: key}, nil
}

func TestLocalEnvelopeRoundTrip(t *testing.T) {
	cfg := &config.Config{Environment: "development", Hashing: config.HashingConfig{Pepper: "p"}}
	em, err := NewEncryptionManager(cfg, nil)
	require.NoError(t, err)

	data, err := em.EncryptField(context.Background(), "+201234567890")
	require.NoError(t, err)
	assert.Equal(t, localKeyID, data.KeyID)
	assert.NotContains(t, data.EncryptedValue, "1234567890")

	em.ClearCache()
	plain, err := em.DecryptField(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "+201234567890", plain)
}

func TestKMSEnvelopeUsesCache(t *testing.T) {
	fake := &fakeKMS{}
	cfg := &config.Config{KMS: config.KMSConfig{Enabled: true, KeyID: "alias/social"}}
	em, err := NewEncryptionManager(cfg, fake)
	require.NoError(t, err)

	data, err := em.EncryptField(context.Background(), "01000000000")
	require.NoError(t, err)
	assert.Equal(t, "alias/social", data.KeyID)

	plain, err := em.DecryptField(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "01000000000", plain)
	assert.Equal(t, 0, fake.decrypted)

	em.ClearCache()
	_, err = em.DecryptField(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.decrypted)
}

func TestProductionRequiresMasterKey(t *testing.T) {
	_, err := NewEncryptionManager(&config.Config{Environment: "production"}, nil)
	assert.Error(t, err)
}

func TestDecryptNil(t *testing.T) {
	em, err := NewEncryptionManager(&config.Config{}, nil)
	require.NoError(t, err)
	plain, err := em.DecryptField(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, plain)
}
