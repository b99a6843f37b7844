// Package chain provides the read-only blockchain queries behind the
// identity and balance displays: ERC-20 balances and token metadata, and
// ERC-721 ownership lookups. Results are cached in memory per address.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/avast/retry-go"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/bobbyswhip/miniapp-applesnakes-sub004/logger"
)

const readerABI = `[
  {"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"name":"name","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"name":"symbol","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"name":"ownerOf","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
  {"name":"tokenURI","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]}
]`

// Cache TTLs. Balances move with every confirmed transaction; name, symbol
// and decimals are immutable for the contracts we read.
const (
	balanceTTL  = 15 * time.Second
	metadataTTL = time.Hour
)

const rpcAttempts = 3

// TokenMetadata is the cached name/symbol/decimals triple of a contract.
type TokenMetadata struct {
	Name     string
	Symbol   string
	Decimals uint8
}

// Reader performs cached read-only queries against one JSON-RPC endpoint.
type Reader struct {
	client   *ethclient.Client
	contract abi.ABI
	log      logger.Logger

	balances Cache[string, *big.Int]
	metadata Cache[string, TokenMetadata]
	owners   Cache[string, common.Address]
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

func WithLogger(l logger.Logger) ReaderOption {
	return func(r *Reader) { r.log = l }
}

// NewReader dials the RPC endpoint and prepares the shared ABI.
func NewReader(rpcURL string, opts ...ReaderOption) (*Reader, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return newReader(client, opts...)
}

// NewReaderWithClient wraps an existing client, mainly for tests.
func NewReaderWithClient(client *ethclient.Client, opts ...ReaderOption) (*Reader, error) {
	return newReader(client, opts...)
}

func newReader(client *ethclient.Client, opts ...ReaderOption) (*Reader, error) {
	parsed, err := abi.JSON(strings.NewReader(readerABI))
	if err != nil {
		return nil, fmt.Errorf("parse reader abi: %w", err)
	}

	r := &Reader{
		client:   client,
		contract: parsed,
		log:      logger.NoopLogger{},
		balances: NewLRUCache[string, *big.Int](4096),
		metadata: NewLRUCache[string, TokenMetadata](512),
		owners:   NewLRUCache[string, common.Address](4096),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Close releases the RPC connection.
func (r *Reader) Close() {
	r.client.Close()
}

// TokenBalance returns the ERC-20 balance (or ERC-721 token count) of owner.
func (r *Reader) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	key := token.Hex() + "/" + owner.Hex()
	if cached, ok := r.balances.Get(key); ok {
		return new(big.Int).Set(cached), nil
	}

	var balance *big.Int
	err := r.call(ctx, token, "balanceOf", &balance, owner)
	if err != nil {
		return nil, err
	}

	r.balances.Set(key, new(big.Int).Set(balance), balanceTTL)
	return balance, nil
}

// TokenMetadata returns the name, symbol and decimals of an ERC-20 contract.
func (r *Reader) TokenMetadata(ctx context.Context, token common.Address) (TokenMetadata, error) {
	key := token.Hex()
	if cached, ok := r.metadata.Get(key); ok {
		return cached, nil
	}

	var meta TokenMetadata
	if err := r.call(ctx, token, "name", &meta.Name); err != nil {
		return TokenMetadata{}, err
	}
	if err := r.call(ctx, token, "symbol", &meta.Symbol); err != nil {
		return TokenMetadata{}, err
	}
	if err := r.call(ctx, token, "decimals", &meta.Decimals); err != nil {
		return TokenMetadata{}, err
	}

	r.metadata.Set(key, meta, metadataTTL)
	return meta, nil
}

// NFTOwner returns the current owner of an ERC-721 token.
func (r *Reader) NFTOwner(ctx context.Context, contract common.Address, tokenID *big.Int) (common.Address, error) {
	key := contract.Hex() + "/" + tokenID.String()
	if cached, ok := r.owners.Get(key); ok {
		return cached, nil
	}

	var owner common.Address
	if err := r.call(ctx, contract, "ownerOf", &owner, tokenID); err != nil {
		return common.Address{}, err
	}

	r.owners.Set(key, owner, balanceTTL)
	return owner, nil
}

// OwnsNFT reports whether owner holds at least one token of the collection.
func (r *Reader) OwnsNFT(ctx context.Context, contract, owner common.Address) (bool, error) {
	balance, err := r.TokenBalance(ctx, contract, owner)
	if err != nil {
		return false, err
	}
	return balance.Sign() > 0, nil
}

// TokenURI returns the metadata URI of an ERC-721 token. Not cached: callers
// fetch it once per gallery render and the URI can repoint on reveal.
func (r *Reader) TokenURI(ctx context.Context, contract common.Address, tokenID *big.Int) (string, error) {
	var uri string
	if err := r.call(ctx, contract, "tokenURI", &uri, tokenID); err != nil {
		return "", err
	}
	return uri, nil
}

// call packs a view-function call, executes it with bounded retries and
// unpacks the single result into out.
func (r *Reader) call(ctx context.Context, contract common.Address, method string, out interface{}, args ...interface{}) error {
	data, err := r.contract.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}

	msg := ethereum.CallMsg{To: &contract, Data: data}

	var raw []byte
	err = retry.Do(
		func() error {
			var callErr error
			raw, callErr = r.client.CallContract(ctx, msg, nil)
			return callErr
		},
		retry.Attempts(rpcAttempts),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		r.log.Warn("rpc call failed", map[string]any{
			"contract": contract.Hex(),
			"method":   method,
			"error":    err.Error(),
		})
		return fmt.Errorf("call %s on %s: %w", method, contract.Hex(), err)
	}

	results, err := r.contract.Unpack(method, raw)
	if err != nil {
		return fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(results) != 1 {
		return fmt.Errorf("unexpected result count %d for %s", len(results), method)
	}

	switch target := out.(type) {
	case **big.Int:
		v, ok := results[0].(*big.Int)
		if !ok {
			return fmt.Errorf("result of %s is not uint256", method)
		}
		*target = v
	case *string:
		v, ok := results[0].(string)
		if !ok {
			return fmt.Errorf("result of %s is not string", method)
		}
		*target = v
	case *uint8:
		v, ok := results[0].(uint8)
		if !ok {
			return fmt.Errorf("result of %s is not uint8", method)
		}
		*target = v
	case *common.Address:
		v, ok := results[0].(common.Address)
		if !ok {
			return fmt.Errorf("result of %s is not address", method)
		}
		*target = v
	default:
		return fmt.Errorf("unsupported result target for %s", method)
	}
	return nil
}
