package billing

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roadline/roadline/internal/shared"
)

func TestChecksumAddress(t *testing.T) {
	// Reference mixed-case encodings.
	for _, want := range []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0x52908400098527886E0F7030069857D2E4169EE7",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
	} {
		got, err := ChecksumAddress(want)
		require.NoError(t, err)
		require.Equal(t, want, got)

		// lowercase input normalizes to the same encoding
		got, err = ChecksumAddress("0x" + lower(want[2:]))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c - 'A' + 'a'
		}
	}
	return string(b)
}

func TestChecksumAddressRejectsGarbage(t *testing.T) {
	_, err := ChecksumAddress("0x1234")
	require.Error(t, err)
	_, err = ChecksumAddress("0xzz08400098527886E0F7030069857D2E4169EE77")
	require.Error(t, err)
}

// chainFixture fakes a JSON-RPC node with one known transaction.
type chainFixture struct {
	chainID   string
	tx        map[string]any
	receipt   map[string]any
	headBlock string
}

func (f *chainFixture) server(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
			ID     int64  `json:"id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var result any
		switch req.Method {
		case "eth_chainId":
			result = f.chainID
		case "eth_getTransactionByHash":
			result = f.tx
		case "eth_getTransactionReceipt":
			result = f.receipt
		case "eth_blockNumber":
			result = f.headBlock
		default:
			t.Fatalf("unexpected method %s", req.Method)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
}

const (
	treasury = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	someHash = "0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b"
)

func healthyFixture() *chainFixture {
	return &chainFixture{
		chainID: "0x1",
		tx: map[string]any{
			"hash":        someHash,
			"to":          lower(treasury),
			"value":       "0xde0b6b3a7640000", // 1 ETH
			"blockNumber": "0x10",
		},
		receipt:   map[string]any{"status": "0x1", "blockNumber": "0x10"},
		headBlock: "0x20",
	}
}

func newVerifier(t *testing.T, f *chainFixture) *RPCVerifier {
	t.Helper()
	srv := f.server(t)
	t.Cleanup(srv.Close)
	v, err := NewRPCVerifier(srv.URL, 1, treasury, 6, srv.Client())
	require.NoError(t, err)
	return v
}

func TestVerifySuccess(t *testing.T) {
	v := newVerifier(t, healthyFixture())
	err := v.Verify(context.Background(), someHash, big.NewInt(1e18))
	require.NoError(t, err)
}

func TestVerifyWrongChain(t *testing.T) {
	f := healthyFixture()
	f.chainID = "0x89"
	v := newVerifier(t, f)
	err := v.Verify(context.Background(), someHash, nil)
	require.Equal(t, shared.CodeWrongChain, shared.CodeOf(err))
}

func TestVerifyTxNotFound(t *testing.T) {
	f := healthyFixture()
	f.tx = nil
	v := newVerifier(t, f)
	err := v.Verify(context.Background(), someHash, nil)
	require.Equal(t, shared.CodeTxNotFound, shared.CodeOf(err))
}

func TestVerifyWrongRecipient(t *testing.T) {
	f := healthyFixture()
	f.tx["to"] = "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359"
	v := newVerifier(t, f)
	err := v.Verify(context.Background(), someHash, nil)
	require.Equal(t, shared.CodeVerificationFailed, shared.CodeOf(err))
}

func TestVerifyRevertedTx(t *testing.T) {
	f := healthyFixture()
	f.receipt["status"] = "0x0"
	v := newVerifier(t, f)
	err := v.Verify(context.Background(), someHash, nil)
	require.Equal(t, shared.CodeVerificationFailed, shared.CodeOf(err))
}

func TestVerifyInsufficientValue(t *testing.T) {
	v := newVerifier(t, healthyFixture())
	required, _ := new(big.Int).SetString("2000000000000000000", 10)
	err := v.Verify(context.Background(), someHash, required)
	require.Equal(t, shared.CodeVerificationFailed, shared.CodeOf(err))
}

func TestVerifyInsufficientConfirmations(t *testing.T) {
	f := healthyFixture()
	f.headBlock = "0x12" // 3 confirmations, need 6
	v := newVerifier(t, f)
	err := v.Verify(context.Background(), someHash, nil)
	require.Equal(t, shared.CodeVerificationFailed, shared.CodeOf(err))
}

func TestVerifyUnminedTx(t *testing.T) {
	f := healthyFixture()
	f.tx["blockNumber"] = ""
	v := newVerifier(t, f)
	err := v.Verify(context.Background(), someHash, nil)
	require.Equal(t, shared.CodeVerificationFailed, shared.CodeOf(err))
}
