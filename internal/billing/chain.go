package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"

	"golang.org/x/crypto/sha3"

	"github.com/roadline/roadline/internal/shared"
)

// ChainVerifier checks a client-submitted transaction hash against on-chain
// data before a payment is allowed to complete.
type ChainVerifier interface {
	Verify(ctx context.Context, txHash string, requiredWei *big.Int) error
}

// RPCVerifier talks to an Ethereum-compatible node over JSON-RPC.
type RPCVerifier struct {
	endpoint         string
	chainID          int64
	treasury         string
	minConfirmations int64
	client           *http.Client
	reqID            atomic.Int64
}

// NewRPCVerifier builds a verifier. treasury must be a hex address; it is
// checksum-normalized once here so later comparisons are byte-equal.
func NewRPCVerifier(endpoint string, chainID int64, treasury string, minConfirmations int64, client *http.Client) (*RPCVerifier, error) {
	if client == nil {
		client = http.DefaultClient
	}
	normalized, err := ChecksumAddress(treasury)
	if err != nil {
		return nil, fmt.Errorf("treasury address: %w", err)
	}
	return &RPCVerifier{
		endpoint:         endpoint,
		chainID:          chainID,
		treasury:         normalized,
		minConfirmations: minConfirmations,
		client:           client,
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int64  `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

func (v *RPCVerifier) call(ctx context.Context, method string, params []any, result any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: v.reqID.Add(1)})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc endpoint returned %s", resp.Status)
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if result == nil {
		return nil
	}
	if len(envelope.Result) == 0 {
		envelope.Result = json.RawMessage("null")
	}
	return json.Unmarshal(envelope.Result, result)
}

type rpcTransaction struct {
	Hash        string `json:"hash"`
	To          string `json:"to"`
	Value       string `json:"value"`
	BlockNumber string `json:"blockNumber"`
}

type rpcReceipt struct {
	Status      string `json:"status"`
	BlockNumber string `json:"blockNumber"`
}

// Verify checks, in order: the node serves the configured chain, the
// transaction exists and is mined, it succeeded, it pays the treasury, the
// value covers requiredWei, and it has enough confirmations. The first
// failing check decides the returned code.
func (v *RPCVerifier) Verify(ctx context.Context, txHash string, requiredWei *big.Int) error {
	var chainHex string
	if err := v.call(ctx, "eth_chainId", []any{}, &chainHex); err != nil {
		return err
	}
	chainID, err := parseHexBig(chainHex)
	if err != nil {
		return err
	}
	if chainID.Int64() != v.chainID {
		return shared.NewErrorf(shared.CodeWrongChain, "node serves chain %d, expected %d", chainID.Int64(), v.chainID)
	}

	var tx *rpcTransaction
	if err := v.call(ctx, "eth_getTransactionByHash", []any{txHash}, &tx); err != nil {
		return err
	}
	if tx == nil {
		return shared.NewErrorf(shared.CodeTxNotFound, "transaction %s not found on chain", txHash)
	}
	if tx.BlockNumber == "" {
		return shared.NewErrorf(shared.CodeVerificationFailed, "transaction %s is not mined yet", txHash)
	}

	var receipt *rpcReceipt
	if err := v.call(ctx, "eth_getTransactionReceipt", []any{txHash}, &receipt); err != nil {
		return err
	}
	if receipt == nil {
		return shared.NewErrorf(shared.CodeVerificationFailed, "transaction %s has no receipt", txHash)
	}
	if receipt.Status != "0x1" {
		return shared.NewError(shared.CodeVerificationFailed, "transaction reverted on chain")
	}

	to, err := ChecksumAddress(tx.To)
	if err != nil || to != v.treasury {
		return shared.NewError(shared.CodeVerificationFailed, "transaction does not pay the treasury address")
	}

	value, err := parseHexBig(tx.Value)
	if err != nil {
		return err
	}
	if requiredWei != nil && value.Cmp(requiredWei) < 0 {
		return shared.NewErrorf(shared.CodeVerificationFailed, "transaction value %s below required %s", value, requiredWei)
	}

	var headHex string
	if err := v.call(ctx, "eth_blockNumber", []any{}, &headHex); err != nil {
		return err
	}
	head, err := parseHexBig(headHex)
	if err != nil {
		return err
	}
	mined, err := parseHexBig(tx.BlockNumber)
	if err != nil {
		return err
	}
	confirmations := new(big.Int).Sub(head, mined)
	confirmations.Add(confirmations, big.NewInt(1))
	if confirmations.Int64() < v.minConfirmations {
		return shared.NewErrorf(shared.CodeVerificationFailed, "only %d confirmations, need %d", confirmations.Int64(), v.minConfirmations)
	}
	return nil
}

func parseHexBig(s string) (*big.Int, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	n, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return nil, fmt.Errorf("malformed hex quantity %q", s)
	}
	return n, nil
}

// ChecksumAddress normalizes a hex address to its EIP-55 mixed-case form.
func ChecksumAddress(addr string) (string, error) {
	hexPart := strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X")
	if len(hexPart) != 40 {
		return "", fmt.Errorf("address %q is not 20 bytes", addr)
	}
	lower := strings.ToLower(hexPart)
	for _, c := range lower {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("address %q contains non-hex characters", addr)
		}
	}

	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(lower))
	digest := hasher.Sum(nil)

	out := make([]byte, 40)
	for i := 0; i < 40; i++ {
		c := lower[i]
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if c >= 'a' && nibble >= 8 {
			c = c - 'a' + 'A'
		}
		out[i] = c
	}
	return "0x" + string(out), nil
}
