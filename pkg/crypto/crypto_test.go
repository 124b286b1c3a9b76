package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Fixtures
// =============================================================================

// testPrivateKeyHex is the first default Hardhat/Anvil account (DO NOT use in production).
const testPrivateKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

const testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func getTestPrivateKey(t testing.TB) *ecdsa.PrivateKey {
	t.Helper()
	key, err := PrivateKeyFromHex(testPrivateKeyHex)
	require.NoError(t, err, "failed to parse test private key")
	return key
}

// =============================================================================
// Keccak256 Tests
// =============================================================================

func TestKeccak256(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "empty input",
			input:    []byte{},
			expected: "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		},
		{
			name:     "hello",
			input:    []byte("hello"),
			expected: "1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8",
		},
		{
			name:     "EIP712Domain type string",
			input:    []byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
			expected: "8b73c3c69bb8fe3d512ecc4cf759cc79239f7b179b0ffacaa9a75d522b39400f",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, hex.EncodeToString(Keccak256(tt.input)))
			assert.Equal(t, tt.expected, hex.EncodeToString(Ethereum{}.Keccak256(tt.input)))
			assert.Equal(t, tt.expected, hex.EncodeToString(Decred{}.Keccak256(tt.input)))
		})
	}
}

func TestKeccak256_MultipleInputs(t *testing.T) {
	joined := Keccak256([]byte("hel"), []byte("lo"))
	assert.Equal(t, Keccak256([]byte("hello")), joined)
}

func TestKeccak256Hash(t *testing.T) {
	result := Keccak256Hash([]byte("hello"))
	assert.True(t, strings.HasPrefix(result, "0x"), "result should have 0x prefix")
	assert.Equal(t, "0x1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8", result)
}

// =============================================================================
// Key Tests
// =============================================================================

func TestPrivateKeyFromHex(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid with 0x prefix", input: "0x" + testPrivateKeyHex},
		{name: "valid without prefix", input: testPrivateKeyHex},
		{name: "valid with surrounding whitespace", input: "  " + testPrivateKeyHex + "\n"},
		{name: "invalid hex", input: "ZZZZ", wantErr: true},
		{name: "too short", input: "1234", wantErr: true},
		{name: "too long", input: testPrivateKeyHex + "00", wantErr: true},
		{name: "zero scalar", input: strings.Repeat("0", 64), wantErr: true},
		{name: "curve order", input: "fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", wantErr: true},
		{name: "above curve order", input: strings.Repeat("f", 64), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := PrivateKeyFromHex(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPrivateKey)
				assert.Nil(t, key)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, key)
			}
		})
	}
}

func TestValidatePrivateKey(t *testing.T) {
	key := getTestPrivateKey(t)
	assert.NoError(t, ValidatePrivateKey(key))

	assert.ErrorIs(t, ValidatePrivateKey(nil), ErrInvalidPrivateKey)
	assert.ErrorIs(t, ValidatePrivateKey(&ecdsa.PrivateKey{D: big.NewInt(0)}), ErrInvalidPrivateKey)
	assert.ErrorIs(t, ValidatePrivateKey(&ecdsa.PrivateKey{D: CurveOrder()}), ErrInvalidPrivateKey)
	assert.ErrorIs(t, ValidatePrivateKey(&ecdsa.PrivateKey{D: big.NewInt(-5)}), ErrInvalidPrivateKey)
}

func TestNormalizePrivateKey(t *testing.T) {
	want, err := PrivateKeyFromHex(fmt.Sprintf("%064x", 5))
	require.NoError(t, err)

	// only the scalar is set
	key, err := NormalizePrivateKey(&ecdsa.PrivateKey{D: big.NewInt(5)})
	require.NoError(t, err)
	require.NotNil(t, key.Curve)
	assert.True(t, PublicKeysEqual(&want.PublicKey, &key.PublicKey))
	assert.Equal(t, PubkeyToAddress(&want.PublicKey), PubkeyToAddress(&key.PublicKey))

	// a stale public key is replaced
	other := getTestPrivateKey(t)
	stale := &ecdsa.PrivateKey{PublicKey: other.PublicKey, D: big.NewInt(5)}
	key, err = NormalizePrivateKey(stale)
	require.NoError(t, err)
	assert.True(t, PublicKeysEqual(&want.PublicKey, &key.PublicKey))

	_, err = NormalizePrivateKey(&ecdsa.PrivateKey{D: big.NewInt(0)})
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)
	_, err = NormalizePrivateKey(nil)
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)
}

func TestAddressFromPrivateKey(t *testing.T) {
	address := AddressFromPrivateKey(getTestPrivateKey(t))

	assert.Equal(t, strings.ToLower(testAddress), address)
	assert.Len(t, address, 42)
	assert.True(t, IsValidAddress(address))
}

func TestAddressFromPrivateKey_Nil(t *testing.T) {
	assert.Empty(t, AddressFromPrivateKey(nil))
}

func TestPubkeyToAddress(t *testing.T) {
	key := getTestPrivateKey(t)
	assert.Equal(t, common.HexToAddress(testAddress), PubkeyToAddress(&key.PublicKey))
	assert.Equal(t, common.Address{}, PubkeyToAddress(nil))
}

func TestCurveOrder(t *testing.T) {
	n := CurveOrder()
	half := HalfOrder()

	assert.Equal(t, "fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", n.Text(16))
	assert.Equal(t, new(big.Int).Rsh(n, 1), half)

	// callers get copies
	n.SetInt64(1)
	assert.NotEqual(t, int64(1), CurveOrder().Int64())
}

func TestIsValidAddress(t *testing.T) {
	tests := []struct {
		name     string
		addr     string
		expected bool
	}{
		{name: "valid address", addr: "0x5FbDB2315678afecb367f032d93F642f64180aa3", expected: true},
		{name: "valid address lowercase", addr: "0x5fbdb2315678afecb367f032d93f642f64180aa3", expected: true},
		{name: "valid zero address", addr: "0x0000000000000000000000000000000000000000", expected: true},
		{name: "no 0x prefix", addr: "5FbDB2315678afecb367f032d93F642f64180aa3", expected: false},
		{name: "too short", addr: "0x5FbDB2315678afecb367f032d93F642f64180a", expected: false},
		{name: "too long", addr: "0x5FbDB2315678afecb367f032d93F642f64180aa3a", expected: false},
		{name: "invalid hex character", addr: "0x5FbDB2315678afecb367f032d93F642f64180aZZ", expected: false},
		{name: "empty string", addr: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidAddress(tt.addr))
		})
	}
}

func TestPadLeft(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		size     int
		expected []byte
	}{
		{name: "pad needed", input: []byte{1, 2, 3}, size: 5, expected: []byte{0, 0, 1, 2, 3}},
		{name: "no pad needed - exact", input: []byte{1, 2, 3}, size: 3, expected: []byte{1, 2, 3}},
		{name: "truncate needed", input: []byte{1, 2, 3, 4, 5}, size: 3, expected: []byte{3, 4, 5}},
		{name: "empty input", input: []byte{}, size: 3, expected: []byte{0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, padLeft(tt.input, tt.size))
		})
	}
}

// =============================================================================
// Backend Tests
// =============================================================================

func backends() []Primitives {
	return []Primitives{Ethereum{}, Decred{}}
}

func TestBackend(t *testing.T) {
	p, err := Backend("")
	require.NoError(t, err)
	assert.Equal(t, "ethereum", p.Name())

	p, err = Backend("decred")
	require.NoError(t, err)
	assert.Equal(t, "decred", p.Name())

	_, err = Backend("openssl")
	assert.Error(t, err)
}

func TestPrimitives_SignAndRecover(t *testing.T) {
	key := getTestPrivateKey(t)
	digest := Keccak256([]byte("test message"))

	for _, p := range backends() {
		t.Run(p.Name(), func(t *testing.T) {
			sig, err := p.Sign(digest, key)
			require.NoError(t, err)

			assert.LessOrEqual(t, sig.RecoveryID, byte(1))
			assert.True(t, sig.S.Cmp(HalfOrder()) <= 0, "backend should emit low-S")

			pub, err := p.RecoverPublicKey(digest, sig)
			require.NoError(t, err)
			assert.True(t, PublicKeysEqual(pub, &key.PublicKey))
			assert.Equal(t, common.HexToAddress(testAddress), PubkeyToAddress(pub))
		})
	}
}

func TestPrimitives_Deterministic(t *testing.T) {
	key := getTestPrivateKey(t)
	digest := Keccak256([]byte("deterministic"))

	for _, p := range backends() {
		t.Run(p.Name(), func(t *testing.T) {
			a, err := p.Sign(digest, key)
			require.NoError(t, err)
			b, err := p.Sign(digest, key)
			require.NoError(t, err)
			assert.Equal(t, a.Compact(), b.Compact())
		})
	}
}

func TestPrimitives_BackendsAgree(t *testing.T) {
	key := getTestPrivateKey(t)
	digest := Keccak256([]byte("rfc6979"))

	eth, err := Ethereum{}.Sign(digest, key)
	require.NoError(t, err)
	dcr, err := Decred{}.Sign(digest, key)
	require.NoError(t, err)

	assert.Equal(t, eth.Compact(), dcr.Compact())
}

func TestPrimitives_InvalidInput(t *testing.T) {
	key := getTestPrivateKey(t)
	digest := Keccak256([]byte("test"))

	for _, p := range backends() {
		t.Run(p.Name(), func(t *testing.T) {
			_, err := p.Sign([]byte("short"), key)
			assert.ErrorIs(t, err, ErrInvalidDigestLength)

			_, err = p.Sign(digest, nil)
			assert.ErrorIs(t, err, ErrInvalidPrivateKey)

			_, err = p.Sign(digest, &ecdsa.PrivateKey{D: CurveOrder()})
			assert.ErrorIs(t, err, ErrInvalidPrivateKey)

			sig, err := p.Sign(digest, key)
			require.NoError(t, err)

			bad := sig
			bad.RecoveryID = 2
			_, err = p.RecoverPublicKey(digest, bad)
			assert.ErrorIs(t, err, ErrInvalidRecoveryID)

			bad = sig
			bad.R = big.NewInt(0)
			_, err = p.RecoverPublicKey(digest, bad)
			assert.ErrorIs(t, err, ErrRecoveryFailed)

			_, err = p.RecoverPublicKey(digest[:31], sig)
			assert.ErrorIs(t, err, ErrInvalidDigestLength)
		})
	}
}

func TestRawSignature_Compact(t *testing.T) {
	sig := RawSignature{R: big.NewInt(1), S: big.NewInt(2), RecoveryID: 1}
	compact := sig.Compact()

	require.Len(t, compact, 65)
	assert.Equal(t, byte(1), compact[31])
	assert.Equal(t, byte(2), compact[63])
	assert.Equal(t, byte(1), compact[64])
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkKeccak256(b *testing.B) {
	data := []byte("benchmark data for keccak256 hashing")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Keccak256(data)
	}
}

func BenchmarkSign(b *testing.B) {
	key := getTestPrivateKey(b)
	digest := Keccak256([]byte("benchmark"))
	for _, p := range backends() {
		b.Run(p.Name(), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_, _ = p.Sign(digest, key)
			}
		})
	}
}
