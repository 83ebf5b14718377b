package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/angelmondragon/archivemint-backend/pkg/config"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

var ErrDisabled = errors.New("secondary ledger is disabled")

// Backend is the RPC surface the ledger client needs; *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// PaymentToken describes an accepted listing currency on chain.
type PaymentToken struct {
	Address  common.Address
	Decimals int32
}

// Client mints provenance tokens and prepares marketplace transactions.
type Client struct {
	backend          Backend
	chainID          *big.Int
	key              *ecdsa.PrivateKey
	minter           common.Address
	token            common.Address
	marketplace      common.Address
	royaltyRecipient common.Address
	paymentTokens    map[string]PaymentToken
	receiptTimeout   time.Duration
	close            func()
}

// NewClient dials the RPC endpoint. It returns ErrDisabled when the ledger is switched off.
func NewClient(ctx context.Context, cfg config.LedgerConfig, logg *logger.Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return nil, errors.New("ledger rpc url is required")
	}
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger rpc: %w", err)
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	client, err := newClient(eth, chainID, cfg)
	if err != nil {
		eth.Close()
		return nil, err
	}
	client.close = eth.Close

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"chain_id":    chainID.String(),
			"minter":      client.minter.Hex(),
			"marketplace": client.marketplace.Hex(),
		})
		logg.Info(ctx, "ledger client initialized")
	}
	return client, nil
}

func newClient(backend Backend, chainID *big.Int, cfg config.LedgerConfig) (*Client, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(cfg.MinterKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse minter key: %w", err)
	}
	token, err := parseAddress("token contract", cfg.TokenContract)
	if err != nil {
		return nil, err
	}
	marketplace, err := parseAddress("marketplace", cfg.MarketplaceAddress)
	if err != nil {
		return nil, err
	}
	minter := crypto.PubkeyToAddress(key.PublicKey)
	royaltyRecipient := minter
	if strings.TrimSpace(cfg.RoyaltyRecipient) != "" {
		if royaltyRecipient, err = parseAddress("royalty recipient", cfg.RoyaltyRecipient); err != nil {
			return nil, err
		}
	}
	tokens, err := parsePaymentTokens(cfg.PaymentTokens)
	if err != nil {
		return nil, err
	}
	timeout := cfg.ReceiptTimeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &Client{
		backend:          backend,
		chainID:          chainID,
		key:              key,
		minter:           minter,
		token:            token,
		marketplace:      marketplace,
		royaltyRecipient: royaltyRecipient,
		paymentTokens:    tokens,
		receiptTimeout:   timeout,
	}, nil
}

// defaultDecimals covers the currencies the marketplace settles in.
var defaultDecimals = map[string]int32{
	"ETH":   18,
	"MATIC": 18,
	"USDC":  6,
}

// parsePaymentTokens reads CURRENCY:address pairs; native currencies use the zero address.
func parsePaymentTokens(raw map[string]string) (map[string]PaymentToken, error) {
	out := map[string]PaymentToken{
		"ETH": {Address: common.Address{}, Decimals: 18},
	}
	for currency, addr := range raw {
		currency = strings.ToUpper(strings.TrimSpace(currency))
		decimals, ok := defaultDecimals[currency]
		if !ok {
			return nil, fmt.Errorf("unsupported payment currency %q", currency)
		}
		parsed, err := parseAddress(currency+" payment token", addr)
		if err != nil {
			return nil, err
		}
		out[currency] = PaymentToken{Address: parsed, Decimals: decimals}
	}
	return out, nil
}

func parseAddress(label, value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", label, value)
	}
	return common.HexToAddress(value), nil
}

// PaymentToken resolves a listing currency.
func (c *Client) PaymentToken(currency string) (PaymentToken, error) {
	if c == nil {
		return PaymentToken{}, ErrDisabled
	}
	token, ok := c.paymentTokens[strings.ToUpper(currency)]
	if !ok {
		return PaymentToken{}, fmt.Errorf("currency %q is not accepted on chain", currency)
	}
	return token, nil
}

// TokenContract returns the provenance token contract address.
func (c *Client) TokenContract() common.Address {
	if c == nil {
		return common.Address{}
	}
	return c.token
}

// Marketplace returns the marketplace contract address.
func (c *Client) Marketplace() common.Address {
	if c == nil {
		return common.Address{}
	}
	return c.marketplace
}

// ChainID returns the connected chain id.
func (c *Client) ChainID() *big.Int {
	if c == nil || c.chainID == nil {
		return nil
	}
	return new(big.Int).Set(c.chainID)
}

// Close releases the RPC connection.
func (c *Client) Close() {
	if c != nil && c.close != nil {
		c.close()
	}
}
