package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHMACSignatureService_SignAndVerify(t *testing.T) {
	svc := NewHMACSignatureService()
	secretKey := "sk_test_business"
	payload := []byte(`{"event":"payin.success","data":{"reference":"FE-1"}}`)

	signature := svc.Sign(secretKey, payload)

	assert.Regexp(t, `^[0-9a-f]{128}$`, signature)
	assert.True(t, svc.Verify(secretKey, payload, signature))
}

func TestHMACSignatureService_VerifyFails(t *testing.T) {
	svc := NewHMACSignatureService()
	payload := []byte("payload")
	signature := svc.Sign("correct-key", payload)

	assert.False(t, svc.Verify("wrong-key", payload, signature))
	assert.False(t, svc.Verify("correct-key", []byte("tampered"), signature))
	assert.False(t, svc.Verify("correct-key", payload, "invalidsignature"))
}

func TestHMACSignatureService_DeterministicSign(t *testing.T) {
	svc := NewHMACSignatureService()
	assert.Equal(t, svc.Sign("key", []byte("data")), svc.Sign("key", []byte("data")))
	assert.NotEqual(t, svc.Sign("key", []byte("data")), svc.Sign("other", []byte("data")))
}
