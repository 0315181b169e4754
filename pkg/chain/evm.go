package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"bridgefund/pkg/types"
)

// ErrUnresolvedEndpoint is raised when no RPC endpoint is configured for a
// chain id. This is a fatal configuration error, never retried.
var ErrUnresolvedEndpoint = errors.New("no RPC endpoint configured for chain")

// Client is the ledger capability the engine and gate consume: read a
// balance, sign and submit a transaction template, wait for inclusion.
type Client interface {
	Balance(ctx context.Context, chainID uint64, address common.Address) (*big.Int, error)
	SignAndSend(ctx context.Context, tmpl *types.TxTemplate, key *ecdsa.PrivateKey) (common.Hash, error)
	WaitMined(ctx context.Context, chainID uint64, txHash common.Hash) (*gethtypes.Receipt, error)
}

const (
	receiptPollInterval = 3 * time.Second
	receiptWaitTimeout  = 3 * time.Minute
)

// EVMClient resolves per-chain RPC endpoints from a configuration table
// keyed by numeric chain id and lazily dials each endpoint once.
type EVMClient struct {
	endpoints map[uint64]string
	mu        sync.Mutex
	clients   map[uint64]*ethclient.Client
}

// NewEVMClient creates a ledger client over the given chain id -> RPC URL table.
func NewEVMClient(endpoints map[uint64]string) *EVMClient {
	return &EVMClient{
		endpoints: endpoints,
		clients:   make(map[uint64]*ethclient.Client),
	}
}

// dial returns the cached RPC client for a chain, connecting on first use
func (c *EVMClient) dial(chainID uint64) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[chainID]; ok {
		return client, nil
	}

	rpcURL, ok := c.endpoints[chainID]
	if !ok || rpcURL == "" {
		return nil, fmt.Errorf("%w: chain %d", ErrUnresolvedEndpoint, chainID)
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint for chain %d: %w", chainID, err)
	}

	c.clients[chainID] = client
	return client, nil
}

// Balance reads the native balance of an address on a chain.
func (c *EVMClient) Balance(ctx context.Context, chainID uint64, address common.Address) (*big.Int, error) {
	client, err := c.dial(chainID)
	if err != nil {
		return nil, err
	}

	balance, err := client.BalanceAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance on chain %d: %w", chainID, err)
	}
	return balance, nil
}

// SignAndSend signs the transaction template with the given key and submits
// it on the template's chain. Exactly one transaction is sent per call.
func (c *EVMClient) SignAndSend(ctx context.Context, tmpl *types.TxTemplate, key *ecdsa.PrivateKey) (common.Hash, error) {
	if tmpl == nil {
		return common.Hash{}, fmt.Errorf("transaction template is required")
	}
	if !common.IsHexAddress(tmpl.To) {
		return common.Hash{}, fmt.Errorf("invalid recipient address: %s", tmpl.To)
	}

	client, err := c.dial(tmpl.ChainID)
	if err != nil {
		return common.Hash{}, err
	}

	publicKey, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return common.Hash{}, fmt.Errorf("failed to get public key")
	}
	fromAddress := crypto.PubkeyToAddress(*publicKey)

	nonce, err := client.PendingNonceAt(ctx, fromAddress)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice := tmpl.GasPrice
	if gasPrice == nil || gasPrice.Sign() == 0 {
		gasPrice, err = client.SuggestGasPrice(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("failed to get gas price: %w", err)
		}
	}

	gasLimit := tmpl.GasLimit
	if gasLimit == 0 {
		gasLimit = 21000
		if len(tmpl.Data) > 0 {
			gasLimit = 400000
		}
	}

	value := tmpl.Value
	if value == nil {
		value = big.NewInt(0)
	}

	tx := gethtypes.NewTransaction(
		nonce,
		common.HexToAddress(tmpl.To),
		value,
		gasLimit,
		gasPrice,
		tmpl.Data,
	)

	chainID := new(big.Int).SetUint64(tmpl.ChainID)
	signedTx, err := gethtypes.SignTx(tx, gethtypes.NewEIP155Signer(chainID), key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction on chain %d: %w", tmpl.ChainID, err)
	}

	return signedTx.Hash(), nil
}

// WaitMined polls for the transaction receipt until inclusion or timeout.
func (c *EVMClient) WaitMined(ctx context.Context, chainID uint64, txHash common.Hash) (*gethtypes.Receipt, error) {
	client, err := c.dial(chainID)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(receiptWaitTimeout)
	for {
		receipt, err := client.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for receipt of %s on chain %d", txHash.Hex(), chainID)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(receiptPollInterval):
		}
	}
}

// Close shuts down all dialed RPC connections.
func (c *EVMClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, client := range c.clients {
		client.Close()
	}
	c.clients = make(map[uint64]*ethclient.Client)
}
