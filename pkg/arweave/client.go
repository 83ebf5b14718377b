package arweave

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/angelmondragon/archivemint-backend/pkg/config"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
	"github.com/everFinance/goar"
	"github.com/everFinance/goar/types"
)

// WinstonPerAR is the number of winston in one AR.
var WinstonPerAR = big.NewInt(1_000_000_000_000)

var (
	errWalletRequired  = errors.New("arweave wallet path is required")
	errNodeURLRequired = errors.New("arweave node url is required")
)

// Tag is a name/value pair attached to an uploaded transaction.
type Tag struct {
	Name  string
	Value string
}

// TxStatus is the confirmation state of a storage transaction.
type TxStatus struct {
	Pending       bool
	NotFound      bool
	Confirmations int
	BlockHeight   int
}

type nodeAPI interface {
	GetWalletBalance(address string) (*big.Float, error)
	GetTransactionPrice(dataSize int, target *string) (int64, error)
	GetTransactionStatus(id string) (*types.TxStatus, error)
}

type dataSender interface {
	SendData(data []byte, tags []types.Tag) (types.Transaction, error)
}

// Client talks to an Arweave node on behalf of the platform wallet.
type Client struct {
	node    nodeAPI
	sender  dataSender
	address string
	gateway string
}

// NewClient loads the platform wallet and binds it to the configured node.
func NewClient(ctx context.Context, cfg config.ArweaveConfig, logg *logger.Logger) (*Client, error) {
	nodeURL := strings.TrimSpace(cfg.NodeURL)
	if nodeURL == "" {
		return nil, errNodeURLRequired
	}
	if strings.TrimSpace(cfg.WalletPath) == "" {
		return nil, errWalletRequired
	}
	wallet, err := goar.NewWalletFromPath(cfg.WalletPath, nodeURL)
	if err != nil {
		return nil, fmt.Errorf("loading arweave wallet: %w", err)
	}

	address := strings.TrimSpace(cfg.WalletAddress)
	if address == "" {
		address = wallet.Signer.Address
	}

	gateway := strings.TrimSpace(cfg.GatewayURL)
	if gateway == "" {
		gateway = nodeURL
	}

	if logg != nil {
		ctx = logg.WithField(ctx, "wallet_address", address)
		logg.Info(ctx, "arweave client initialized")
	}

	return &Client{
		node:    wallet.Client,
		sender:  wallet,
		address: address,
		gateway: strings.TrimRight(gateway, "/"),
	}, nil
}

// Address returns the platform wallet address.
func (c *Client) Address() string {
	if c == nil {
		return ""
	}
	return c.address
}

// Balance returns the platform wallet balance in AR.
func (c *Client) Balance(ctx context.Context) (*big.Float, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}
	ar, err := c.node.GetWalletBalance(c.address)
	if err != nil {
		return nil, fmt.Errorf("get wallet balance: %w", err)
	}
	return ar, nil
}

// UploadPrice returns the winston cost of storing sizeBytes.
func (c *Client) UploadPrice(ctx context.Context, sizeBytes int64) (*big.Int, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}
	if sizeBytes < 0 {
		return nil, fmt.Errorf("invalid size %d", sizeBytes)
	}
	reward, err := c.node.GetTransactionPrice(int(sizeBytes), nil)
	if err != nil {
		return nil, fmt.Errorf("get transaction price: %w", err)
	}
	return big.NewInt(reward), nil
}

// Upload signs and posts data with tags, returning the transaction id.
// An accepted upload is paid for and cannot be rolled back.
func (c *Client) Upload(ctx context.Context, data []byte, tags []Tag) (string, error) {
	if err := c.ready(ctx); err != nil {
		return "", err
	}
	if c.sender == nil {
		return "", errors.New("arweave wallet not initialized")
	}
	if len(data) == 0 {
		return "", errors.New("upload payload is empty")
	}
	tx, err := c.sender.SendData(data, toGoarTags(tags))
	if err != nil {
		return "", fmt.Errorf("send data: %w", err)
	}
	if tx.ID == "" {
		return "", errors.New("node returned no transaction id")
	}
	return tx.ID, nil
}

// Status reports how far a transaction has been confirmed.
func (c *Client) Status(ctx context.Context, txID string) (TxStatus, error) {
	if err := c.ready(ctx); err != nil {
		return TxStatus{}, err
	}
	st, err := c.node.GetTransactionStatus(txID)
	switch {
	case errors.Is(err, goar.ErrPendingTx):
		return TxStatus{Pending: true}, nil
	case errors.Is(err, goar.ErrNotFound):
		return TxStatus{NotFound: true}, nil
	case err != nil:
		return TxStatus{}, fmt.Errorf("get transaction status: %w", err)
	case st == nil:
		return TxStatus{Pending: true}, nil
	}
	return TxStatus{Confirmations: st.NumberOfConfirmations, BlockHeight: st.BlockHeight}, nil
}

// URL returns the gateway address of a transaction's content.
func (c *Client) URL(txID string) string {
	if c == nil {
		return ""
	}
	return c.gateway + "/" + txID
}

func (c *Client) ready(ctx context.Context) error {
	if c == nil || c.node == nil {
		return errors.New("arweave client not initialized")
	}
	return ctx.Err()
}

// WinstonToAR converts winston into AR.
func WinstonToAR(winston *big.Int) *big.Float {
	if winston == nil {
		return new(big.Float)
	}
	return new(big.Float).Quo(new(big.Float).SetInt(winston), new(big.Float).SetInt(WinstonPerAR))
}

func toGoarTags(tags []Tag) []types.Tag {
	out := make([]types.Tag, 0, len(tags))
	for _, tag := range tags {
		if tag.Name == "" {
			continue
		}
		out = append(out, types.Tag{Name: tag.Name, Value: tag.Value})
	}
	return out
}
