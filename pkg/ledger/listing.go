package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

const defaultListingGas = uint64(250_000)

var (
	ErrWrongTarget     = errors.New("transaction does not target the marketplace")
	ErrWrongMethod     = errors.New("transaction does not call createListing")
	ErrWrongChain      = errors.New("transaction is signed for another chain")
	ErrUnsignedListing = errors.New("transaction is not signed")
)

// ListingParams are the createListing arguments.
type ListingParams struct {
	NFTContract  common.Address
	TokenID      *big.Int
	PaymentToken common.Address
	Price        *big.Int
	Duration     *big.Int
}

// UnsignedTx is an EIP-1559 transaction ready for a wallet to sign.
type UnsignedTx struct {
	Raw                  string `json:"raw"`
	ChainID              string `json:"chainId"`
	From                 string `json:"from"`
	To                   string `json:"to"`
	Data                 string `json:"data"`
	Nonce                uint64 `json:"nonce"`
	Gas                  uint64 `json:"gas"`
	MaxFeePerGas         string `json:"maxFeePerGas"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas"`
}

// SignedListing is a decoded, signature-checked createListing transaction.
type SignedListing struct {
	Tx     *types.Transaction
	Seller common.Address
	Params ListingParams
}

// BuildListingTx prepares an unsigned createListing call from seller. Nothing is stored;
// the same inputs rebuild an equivalent transaction.
func (c *Client) BuildListingTx(ctx context.Context, seller common.Address, params ListingParams) (*UnsignedTx, error) {
	if c == nil || c.backend == nil {
		return nil, ErrDisabled
	}
	data, err := packCreateListing(params)
	if err != nil {
		return nil, err
	}

	nonce, err := c.backend.PendingNonceAt(ctx, seller)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}
	tip, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas tip: %w", err)
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("latest header: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	to := c.marketplace
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: seller, To: &to, Data: data})
	if err != nil || gas == 0 {
		// Estimation reverts when approval for the marketplace is still pending in the wallet.
		gas = defaultListingGas
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     new(big.Int),
		Data:      data,
	})
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}
	return &UnsignedTx{
		Raw:                  hexutil.Encode(raw),
		ChainID:              c.chainID.String(),
		From:                 seller.Hex(),
		To:                   to.Hex(),
		Data:                 hexutil.Encode(data),
		Nonce:                nonce,
		Gas:                  gas,
		MaxFeePerGas:         feeCap.String(),
		MaxPriorityFeePerGas: tip.String(),
	}, nil
}

// DecodeSignedListing parses a signed transaction and checks it is a createListing call on
// the configured marketplace and chain.
func (c *Client) DecodeSignedListing(signedHex string) (*SignedListing, error) {
	if c == nil {
		return nil, ErrDisabled
	}
	raw, err := hexutil.Decode(strings.TrimSpace(signedHex))
	if err != nil {
		return nil, fmt.Errorf("decode transaction hex: %w", err)
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	if tx.To() == nil || *tx.To() != c.marketplace {
		return nil, ErrWrongTarget
	}
	if tx.ChainId() == nil || tx.ChainId().Cmp(c.chainID) != 0 {
		return nil, ErrWrongChain
	}
	v, r, s := tx.RawSignatureValues()
	if v == nil || r == nil || s == nil || (r.Sign() == 0 && s.Sign() == 0) {
		return nil, ErrUnsignedListing
	}
	seller, err := types.Sender(types.LatestSignerForChainID(c.chainID), tx)
	if err != nil {
		return nil, fmt.Errorf("recover sender: %w", err)
	}
	params, err := unpackCreateListing(tx.Data())
	if err != nil {
		return nil, err
	}
	return &SignedListing{Tx: tx, Seller: seller, Params: params}, nil
}

// Broadcast sends a signed transaction and returns its hash.
func (c *Client) Broadcast(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	if c == nil || c.backend == nil {
		return common.Hash{}, ErrDisabled
	}
	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}
	return tx.Hash(), nil
}

func packCreateListing(p ListingParams) ([]byte, error) {
	if p.TokenID == nil || p.Price == nil || p.Duration == nil {
		return nil, errors.New("token id, price and duration are required")
	}
	if p.Price.Sign() <= 0 || p.Duration.Sign() <= 0 {
		return nil, errors.New("price and duration must be positive")
	}
	data, err := marketplaceABI.Pack(methodCreateListing, p.NFTContract, p.TokenID, p.PaymentToken, p.Price, p.Duration)
	if err != nil {
		return nil, fmt.Errorf("pack createListing: %w", err)
	}
	return data, nil
}

func unpackCreateListing(data []byte) (ListingParams, error) {
	method := marketplaceABI.Methods[methodCreateListing]
	if len(data) < 4 || !bytes.Equal(data[:4], method.ID) {
		return ListingParams{}, ErrWrongMethod
	}
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return ListingParams{}, fmt.Errorf("unpack createListing: %w", err)
	}
	if len(values) != 5 {
		return ListingParams{}, ErrWrongMethod
	}
	nft, ok1 := values[0].(common.Address)
	tokenID, ok2 := values[1].(*big.Int)
	payment, ok3 := values[2].(common.Address)
	price, ok4 := values[3].(*big.Int)
	duration, ok5 := values[4].(*big.Int)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return ListingParams{}, ErrWrongMethod
	}
	return ListingParams{NFTContract: nft, TokenID: tokenID, PaymentToken: payment, Price: price, Duration: duration}, nil
}
