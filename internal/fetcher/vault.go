package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const erc4626ABIJSON = `[{"inputs":[{"internalType":"uint256","name":"shares","type":"uint256"}],"name":"convertToAssets","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

var erc4626ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc4626ABIJSON))
	if err != nil {
		panic("failed to parse ERC-4626 ABI: " + err.Error())
	}
	erc4626ABI = parsed
}

// ChainReader is the subset of ethclient.Client the vault fetcher calls.
type ChainReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// VaultOptions parameterise the on-chain fetcher.
type VaultOptions struct {
	RPCURL       string
	VaultAddress string
	Decimals     int32
	Timeout      time.Duration
}

// Vault reads an ERC-4626 vault's redemption rate over Ethereum RPC.
type Vault struct {
	opts      VaultOptions
	logger    zerolog.Logger
	reader    ChainReader
	clientMux sync.Mutex
}

// NewVault builds a vault fetcher that dials RPCURL lazily.
func NewVault(opts VaultOptions, logger zerolog.Logger) *Vault {
	if opts.Decimals <= 0 {
		opts.Decimals = 18
	}
	return &Vault{opts: opts, logger: logger.With().Str("component", "vault_fetcher").Logger()}
}

// NewVaultWithReader builds a vault fetcher over an existing chain reader.
func NewVaultWithReader(opts VaultOptions, reader ChainReader, logger zerolog.Logger) *Vault {
	v := NewVault(opts, logger)
	v.reader = reader
	return v
}

// FetchRedemptionRate returns the assets redeemable for one whole share. The
// call is pinned to the block it reports so the rate and height agree.
func (v *Vault) FetchRedemptionRate(ctx context.Context) (Reading, error) {
	if v.reader == nil && v.opts.RPCURL == "" {
		return Reading{}, errors.New("ethereum rpc url not configured")
	}
	if !common.IsHexAddress(v.opts.VaultAddress) {
		return Reading{}, fmt.Errorf("vault address %q is not a hex address", v.opts.VaultAddress)
	}

	timeout := v.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	reader, err := v.getReader(ctx)
	if err != nil {
		return Reading{}, err
	}

	blockNumber, err := reader.BlockNumber(ctx)
	if err != nil {
		return Reading{}, fmt.Errorf("block number: %w", err)
	}

	addr := common.HexToAddress(v.opts.VaultAddress)
	oneShare := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(v.opts.Decimals)), nil)

	payload, err := erc4626ABI.Pack("convertToAssets", oneShare)
	if err != nil {
		return Reading{}, err
	}

	res, err := reader.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return Reading{}, fmt.Errorf("call convertToAssets: %w", err)
	}

	outputs, err := erc4626ABI.Unpack("convertToAssets", res)
	if err != nil {
		return Reading{}, err
	}
	if len(outputs) != 1 {
		return Reading{}, errors.New("unexpected convertToAssets response")
	}

	assets, ok := outputs[0].(*big.Int)
	if !ok {
		return Reading{}, errors.New("failed to decode convertToAssets output")
	}

	rate := decimal.NewFromBigInt(assets, -v.opts.Decimals)
	if !rate.IsPositive() {
		return Reading{}, errors.New("vault returned a non-positive redemption rate")
	}

	v.logger.Debug().Uint64("block", blockNumber).Str("rate", rate.String()).Msg("redemption rate read")
	return Reading{Rate: rate, BlockNumber: blockNumber, Quality: "onchain"}, nil
}

func (v *Vault) getReader(ctx context.Context) (ChainReader, error) {
	v.clientMux.Lock()
	defer v.clientMux.Unlock()

	if v.reader != nil {
		return v.reader, nil
	}

	client, err := ethclient.DialContext(ctx, v.opts.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ethereum rpc: %w", err)
	}
	v.reader = client
	return client, nil
}

var _ RedemptionRateFetcher = (*Vault)(nil)
