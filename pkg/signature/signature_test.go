package signature

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpool-finance/xpool-signer/pkg/crypto"
	"github.com/xpool-finance/xpool-signer/pkg/crypto/cryptotest"
	"github.com/xpool-finance/xpool-signer/pkg/eip712"
)

// =============================================================================
// Test Fixtures
// =============================================================================

const (
	// first default Hardhat/Anvil accounts (DO NOT use in production)
	testKeyA     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddressA = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	testKeyB     = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
	testAddressB = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

// cowKey is keccak256("cow"), the signer of the EIP-712 Mail example.
func cowKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.PrivateKeyFromHex(hex.EncodeToString(crypto.Keccak256([]byte("cow"))))
	require.NoError(t, err)
	return key
}

var mailDomain = eip712.Domain{
	Name:              "Ether Mail",
	Version:           "1",
	ChainID:           big.NewInt(1),
	VerifyingContract: common.HexToAddress("0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC"),
}

var mailTypes = eip712.Types{
	"Person": {{Name: "name", Type: "string"}, {Name: "wallet", Type: "address"}},
	"Mail":   {{Name: "from", Type: "Person"}, {Name: "to", Type: "Person"}, {Name: "contents", Type: "string"}},
}

func mailMessage() eip712.Message {
	return eip712.Message{
		"from":     eip712.Message{"name": eip712.String("Cow"), "wallet": eip712.HexAddress("0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826")},
		"to":       eip712.Message{"name": eip712.String("Bob"), "wallet": eip712.HexAddress("0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB")},
		"contents": eip712.String("Hello, Bob!"),
	}
}

const (
	mailDigest = "0xbe609aee343fb3c4b28e1df9e632fca64fcfaede20f02e86244efddf30957bd2"
	mailR      = "4355c47d63924e8a72e509b65029052eb6c299d53a04e167c5775fd466751c9d"
	mailS      = "07299936d304c153f6443dfa05f40ff007d72911b6f72307f996231605b91562"
)

func digestOf(msg string) []byte {
	return crypto.Keccak256([]byte(msg))
}

// =============================================================================
// Signer Tests
// =============================================================================

func TestNewSigner(t *testing.T) {
	s, err := NewSignerFromHex("0x" + testKeyA)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testAddressA), s.Address())
	assert.Equal(t, "ethereum", s.Backend())

	_, err = NewSigner(nil)
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)

	_, err = NewSigner(&ecdsa.PrivateKey{D: big.NewInt(0)})
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)

	_, err = NewSigner(&ecdsa.PrivateKey{D: crypto.CurveOrder()})
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)

	_, err = NewSignerFromHex("0x1234")
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)
}

func TestNewSigner_ScalarOnlyKey(t *testing.T) {
	want, err := NewSignerFromHex(fmt.Sprintf("%064x", 5))
	require.NoError(t, err)

	for _, p := range []crypto.Primitives{crypto.Ethereum{}, crypto.Decred{}} {
		t.Run(p.Name(), func(t *testing.T) {
			s, err := NewSigner(&ecdsa.PrivateKey{D: big.NewInt(5)}, WithPrimitives(p))
			require.NoError(t, err)
			assert.Equal(t, want.Address(), s.Address())
			assert.NotEqual(t, common.Address{}, s.Address())

			digest := digestOf("scalar only")
			var sig Signature
			require.NotPanics(t, func() {
				sig, err = s.Sign(digest)
			})
			require.NoError(t, err)
			assert.True(t, Verify(want.Address(), digest, sig))
		})
	}
}

func TestSigner_MailReference(t *testing.T) {
	for _, p := range []crypto.Primitives{crypto.Ethereum{}, crypto.Decred{}} {
		t.Run(p.Name(), func(t *testing.T) {
			s, err := NewSigner(cowKey(t), WithPrimitives(p))
			require.NoError(t, err)
			assert.Equal(t, common.HexToAddress("0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826"), s.Address())

			sig, digest, err := s.SignDigestOf(mailDomain, mailTypes, "Mail", mailMessage())
			require.NoError(t, err)
			assert.Equal(t, mailDigest, digest.Hex())

			assert.Equal(t, "0x"+mailR+mailS+"1c", sig.Hex())

			r, sv, v := sig.RSV()
			assert.Equal(t, mailR, hex.EncodeToString(r[:]))
			assert.Equal(t, mailS, hex.EncodeToString(sv[:]))
			assert.Equal(t, uint8(28), v)
		})
	}
}

func TestSigner_SignTypedData(t *testing.T) {
	s, err := NewSignerFromHex(testKeyA)
	require.NoError(t, err)

	td := &eip712.TypedData{Types: mailTypes, PrimaryType: "Mail", Domain: mailDomain, Message: mailMessage()}
	sig, digest, err := s.SignTypedData(td)
	require.NoError(t, err)
	assert.Equal(t, mailDigest, digest.Hex())

	addr, err := RecoverAddress(digest[:], sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), addr)

	bad := &eip712.TypedData{Types: mailTypes, PrimaryType: "Mail", Domain: mailDomain, Message: eip712.Message{}}
	_, _, err = s.SignTypedData(bad)
	assert.ErrorIs(t, err, eip712.ErrMissingField)
}

func TestSigner_LowS(t *testing.T) {
	s, err := NewSignerFromHex(testKeyA)
	require.NoError(t, err)

	for i := 0; i < 64; i++ {
		sig, err := s.Sign(digestOf(strings.Repeat("x", i)))
		require.NoError(t, err)
		assert.True(t, sig.S.Cmp(crypto.HalfOrder()) <= 0)
		assert.LessOrEqual(t, sig.V, byte(1))
	}
}

func TestSigner_NormalizesHighS(t *testing.T) {
	digest := digestOf("normalize me")

	reference, err := NewSignerFromHex(testKeyA)
	require.NoError(t, err)
	want, err := reference.Sign(digest)
	require.NoError(t, err)

	double := cryptotest.NewHighS(nil)
	var normalized []bool
	s, err := NewSignerFromHex(testKeyA,
		WithPrimitives(double),
		WithSignHook(func(backend string, n bool) { normalized = append(normalized, n) }),
	)
	require.NoError(t, err)

	got, err := s.Sign(digest)
	require.NoError(t, err)

	assert.Equal(t, int64(1), double.Signs())
	assert.Equal(t, []bool{true}, normalized)
	assert.Equal(t, want.Hex(), got.Hex())
	assert.NoError(t, got.Validate())
}

func TestSigner_InvalidDigest(t *testing.T) {
	s, err := NewSignerFromHex(testKeyA)
	require.NoError(t, err)

	_, err = s.Sign([]byte("short"))
	assert.ErrorIs(t, err, crypto.ErrInvalidDigestLength)

	_, err = s.Sign(make([]byte, 33))
	assert.ErrorIs(t, err, crypto.ErrInvalidDigestLength)
}

func TestSigner_Concurrent(t *testing.T) {
	s, err := NewSignerFromHex(testKeyA)
	require.NoError(t, err)
	digest := digestOf("concurrent")
	want, err := s.Sign(digest)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.Sign(digest)
			assert.NoError(t, err)
			assert.Equal(t, want.Hex(), got.Hex())
		}()
	}
	wg.Wait()
}

// Two holders sign the same permit; each signature recovers to its own key.
func TestSigner_TwoSigners(t *testing.T) {
	a, err := NewSignerFromHex(testKeyA)
	require.NoError(t, err)
	b, err := NewSignerFromHex(testKeyB)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testAddressB), b.Address())

	digest := digestOf("permit")
	sigA, err := a.Sign(digest)
	require.NoError(t, err)
	sigB, err := b.Sign(digest)
	require.NoError(t, err)
	assert.NotEqual(t, sigA.Hex(), sigB.Hex())

	pubA, err := RecoverPublicKey(digest, sigA)
	require.NoError(t, err)
	pubB, err := RecoverPublicKey(digest, sigB)
	require.NoError(t, err)

	assert.Equal(t, a.Address(), crypto.PubkeyToAddress(pubA))
	assert.Equal(t, b.Address(), crypto.PubkeyToAddress(pubB))
	assert.True(t, Verify(a.Address(), digest, sigA))
	assert.False(t, Verify(a.Address(), digest, sigB))
	assert.False(t, Verify(a.Address(), digestOf("other"), sigA))
}

// =============================================================================
// Codec Tests
// =============================================================================

func TestCodec_RoundTrip(t *testing.T) {
	s, err := NewSignerFromHex(testKeyA)
	require.NoError(t, err)

	for i := 0; i < 16; i++ {
		sig, err := s.Sign(digestOf(strings.Repeat("r", i)))
		require.NoError(t, err)

		enc := Encode(sig)
		assert.Contains(t, []byte{27, 28}, enc[64])

		decoded, err := Decode(enc[:])
		require.NoError(t, err)
		assert.Equal(t, 0, sig.R.Cmp(decoded.R))
		assert.Equal(t, 0, sig.S.Cmp(decoded.S))
		assert.Equal(t, sig.V, decoded.V)

		parsed, err := ParseHex(sig.Hex())
		require.NoError(t, err)
		assert.Equal(t, sig.Hex(), parsed.Hex())

		parsed, err = ParseHex(strings.TrimPrefix(sig.Hex(), "0x"))
		require.NoError(t, err)
		assert.Equal(t, sig.Hex(), parsed.Hex())
	}
}

func TestCodec_Hex(t *testing.T) {
	sig := Signature{R: big.NewInt(1), S: big.NewInt(2), V: 1}
	h := sig.Hex()
	assert.Len(t, h, 132)
	assert.True(t, strings.HasPrefix(h, "0x"))
	assert.True(t, strings.HasSuffix(h, "1c"))
	assert.Equal(t, h, sig.String())
}

func TestDecode_Errors(t *testing.T) {
	s, err := NewSignerFromHex(testKeyA)
	require.NoError(t, err)
	sig, err := s.Sign(digestOf("decode"))
	require.NoError(t, err)
	valid := Encode(sig)

	mutate := func(fn func(b []byte)) []byte {
		b := append([]byte(nil), valid[:]...)
		fn(b)
		return b
	}

	high := cryptotest.Malleate(sig.raw())
	highSig := Signature{R: high.R, S: high.S, V: high.RecoveryID}

	tests := []struct {
		name  string
		input []byte
		err   error
	}{
		{name: "empty", input: nil, err: ErrInvalidSignatureLength},
		{name: "64 bytes", input: valid[:64], err: ErrInvalidSignatureLength},
		{name: "66 bytes", input: append(valid[:], 0), err: ErrInvalidSignatureLength},
		{name: "raw recovery id 0", input: mutate(func(b []byte) { b[64] = 0 }), err: ErrInvalidRecoveryID},
		{name: "raw recovery id 1", input: mutate(func(b []byte) { b[64] = 1 }), err: ErrInvalidRecoveryID},
		{name: "recovery id 29", input: mutate(func(b []byte) { b[64] = 29 }), err: ErrInvalidRecoveryID},
		{name: "zero r", input: mutate(func(b []byte) { copy(b[0:32], make([]byte, 32)) }), err: ErrScalarOutOfRange},
		{name: "zero s", input: mutate(func(b []byte) { copy(b[32:64], make([]byte, 32)) }), err: ErrScalarOutOfRange},
		{name: "r equals n", input: mutate(func(b []byte) { crypto.CurveOrder().FillBytes(b[0:32]) }), err: ErrScalarOutOfRange},
		{name: "upper half s", input: highSig.encodeUnchecked(), err: ErrNonCanonicalS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.input)
			assert.ErrorIs(t, err, tt.err)
			assert.ErrorIs(t, err, ErrMalformedSignature)
		})
	}
}

func (sig Signature) encodeUnchecked() []byte {
	b := Encode(sig)
	return b[:]
}

func TestParseHex_Invalid(t *testing.T) {
	_, err := ParseHex("0xzz")
	assert.ErrorIs(t, err, ErrMalformedSignature)

	_, err = ParseHex("")
	assert.ErrorIs(t, err, ErrMalformedSignature)
}

func TestRecover_RejectsHighS(t *testing.T) {
	s, err := NewSignerFromHex(testKeyA)
	require.NoError(t, err)
	digest := digestOf("malleable")
	sig, err := s.Sign(digest)
	require.NoError(t, err)

	high := cryptotest.Malleate(sig.raw())
	_, err = RecoverAddress(digest, Signature{R: high.R, S: high.S, V: high.RecoveryID})
	assert.ErrorIs(t, err, ErrNonCanonicalS)
	assert.False(t, Verify(s.Address(), digest, Signature{R: high.R, S: high.S, V: high.RecoveryID}))
}

func TestRecover_Backends(t *testing.T) {
	s, err := NewSignerFromHex(testKeyA)
	require.NoError(t, err)
	digest := digestOf("backends")
	sig, err := s.Sign(digest)
	require.NoError(t, err)

	for _, p := range []crypto.Primitives{crypto.Ethereum{}, crypto.Decred{}} {
		pub, err := RecoverPublicKeyWith(p, digest, sig)
		require.NoError(t, err, p.Name())
		assert.Equal(t, s.Address(), crypto.PubkeyToAddress(pub), p.Name())
	}
}

func BenchmarkSigner_Sign(b *testing.B) {
	s, err := NewSignerFromHex(testKeyA)
	require.NoError(b, err)
	digest := digestOf("bench")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Sign(digest)
	}
}
