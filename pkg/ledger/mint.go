package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// MintRequest carries the provenance token parameters.
type MintRequest struct {
	To           common.Address
	MetadataURI  string
	ProvenanceID string
	RoyaltyBps   int
}

// MintResult is what the platform records about a mined mint.
type MintResult struct {
	TokenID         *big.Int
	TxHash          common.Hash
	GasUsed         uint64
	GasCostWei      *big.Int
	ContractAddress common.Address
}

// MintWithProvenance submits the mint, waits for its receipt and extracts the token id.
func (c *Client) MintWithProvenance(ctx context.Context, req MintRequest) (*MintResult, error) {
	if c == nil || c.backend == nil {
		return nil, ErrDisabled
	}
	if req.MetadataURI == "" || req.ProvenanceID == "" {
		return nil, errors.New("metadata uri and provenance id are required")
	}
	if req.RoyaltyBps < 0 || req.RoyaltyBps > 10000 {
		return nil, fmt.Errorf("royalty bps %d out of range", req.RoyaltyBps)
	}
	to := req.To
	if to == (common.Address{}) {
		to = c.minter
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx

	contract := bind.NewBoundContract(c.token, tokenABI, c.backend, c.backend, c.backend)
	tx, err := contract.Transact(opts, methodMint, to, req.MetadataURI, req.ProvenanceID, c.royaltyRecipient, big.NewInt(int64(req.RoyaltyBps)))
	if err != nil {
		return nil, fmt.Errorf("submit mint: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, c.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for mint %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("mint %s reverted", tx.Hash().Hex())
	}

	tokenID, err := TokenIDFromReceipt(receipt, c.token)
	if err != nil {
		return nil, err
	}
	return &MintResult{
		TokenID:         tokenID,
		TxHash:          tx.Hash(),
		GasUsed:         receipt.GasUsed,
		GasCostWei:      GasCost(receipt),
		ContractAddress: c.token,
	}, nil
}

// TokenIDFromReceipt reads the minted token id from the Transfer event emitted by token.
func TokenIDFromReceipt(receipt *types.Receipt, token common.Address) (*big.Int, error) {
	if receipt == nil {
		return nil, errors.New("receipt is nil")
	}
	transferID := tokenABI.Events[eventTransfer].ID
	for _, log := range receipt.Logs {
		if log == nil || log.Address != token || len(log.Topics) != 4 {
			continue
		}
		if log.Topics[0] != transferID || log.Topics[1] != (common.Hash{}) {
			continue
		}
		return new(big.Int).SetBytes(log.Topics[3].Bytes()), nil
	}
	return nil, errors.New("mint receipt carries no transfer event")
}

// GasCost multiplies used gas by the effective price paid.
func GasCost(receipt *types.Receipt) *big.Int {
	if receipt == nil || receipt.EffectiveGasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), receipt.EffectiveGasPrice)
}
