package fetcher

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const testVault = "0x9D39A5DE30e57443BfF2A8307A4256c8797A3497"

type fakeChain struct {
	block    uint64
	assets   *big.Int
	callErr  error
	gotBlock *big.Int
	gotTo    *common.Address
}

func (f *fakeChain) BlockNumber(ctx context.Context) (uint64, error) {
	return f.block, nil
}

func (f *fakeChain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.gotBlock = blockNumber
	f.gotTo = msg.To
	if f.callErr != nil {
		return nil, f.callErr
	}
	return erc4626ABI.Methods["convertToAssets"].Outputs.Pack(f.assets)
}

func TestVaultMissingConfig(t *testing.T) {
	v := NewVault(VaultOptions{}, noopLogger())
	if _, err := v.FetchRedemptionRate(context.Background()); err == nil {
		t.Fatal("expected an error without an rpc url")
	}

	v = NewVault(VaultOptions{RPCURL: "http://localhost"}, noopLogger())
	if _, err := v.FetchRedemptionRate(context.Background()); err == nil {
		t.Fatal("expected an error without a vault address")
	}
}

func TestVaultReadsPinnedRate(t *testing.T) {
	assets, _ := new(big.Int).SetString("1187654321000000000", 10)
	chain := &fakeChain{block: 21_000_000, assets: assets}
	v := NewVaultWithReader(VaultOptions{VaultAddress: testVault}, chain, noopLogger())

	reading, err := v.FetchRedemptionRate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reading.Rate.Equal(decimal.RequireFromString("1.187654321")) {
		t.Fatalf("unexpected rate %s", reading.Rate)
	}
	if reading.BlockNumber != 21_000_000 {
		t.Fatalf("unexpected block %d", reading.BlockNumber)
	}
	if chain.gotBlock == nil || chain.gotBlock.Uint64() != 21_000_000 {
		t.Fatalf("call should be pinned to the reported block, got %v", chain.gotBlock)
	}
	if *chain.gotTo != common.HexToAddress(testVault) {
		t.Fatalf("call sent to %s", chain.gotTo.Hex())
	}
}

func TestVaultRejectsZeroRate(t *testing.T) {
	chain := &fakeChain{block: 1, assets: big.NewInt(0)}
	v := NewVaultWithReader(VaultOptions{VaultAddress: testVault}, chain, noopLogger())
	if _, err := v.FetchRedemptionRate(context.Background()); err == nil {
		t.Fatal("expected an error for a zero rate")
	}
}

func TestVaultPropagatesCallError(t *testing.T) {
	chain := &fakeChain{block: 1, callErr: errors.New("execution reverted")}
	v := NewVaultWithReader(VaultOptions{VaultAddress: testVault}, chain, noopLogger())
	if _, err := v.FetchRedemptionRate(context.Background()); err == nil {
		t.Fatal("expected the call error")
	}
}
