package arweave

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/everFinance/goar"
	"github.com/everFinance/goar/types"
)

type stubNode struct {
	balance   *big.Float
	price     int64
	status    *types.TxStatus
	statusErr error
	err       error
}

func (s *stubNode) GetWalletBalance(string) (*big.Float, error) { return s.balance, s.err }
func (s *stubNode) GetTransactionPrice(int, *string) (int64, error) {
	return s.price, s.err
}
func (s *stubNode) GetTransactionStatus(string) (*types.TxStatus, error) {
	return s.status, s.statusErr
}

type stubSender struct {
	tags []types.Tag
	id   string
	err  error
}

func (s *stubSender) SendData(_ []byte, tags []types.Tag) (types.Transaction, error) {
	s.tags = tags
	return types.Transaction{ID: s.id}, s.err
}

func TestStatusMapsNodeErrors(t *testing.T) {
	ctx := context.Background()
	node := &stubNode{}
	client := &Client{node: node, address: "wallet"}

	node.statusErr = goar.ErrPendingTx
	st, err := client.Status(ctx, "tx1")
	if err != nil || !st.Pending {
		t.Fatalf("expected pending, got %+v %v", st, err)
	}

	node.statusErr = goar.ErrNotFound
	st, err = client.Status(ctx, "tx1")
	if err != nil || !st.NotFound {
		t.Fatalf("expected not found, got %+v %v", st, err)
	}

	node.statusErr = nil
	node.status = &types.TxStatus{BlockHeight: 1200, NumberOfConfirmations: 4}
	st, err = client.Status(ctx, "tx1")
	if err != nil || st.Confirmations != 4 || st.Pending {
		t.Fatalf("expected 4 confirmations, got %+v %v", st, err)
	}

	node.statusErr = errors.New("connection reset")
	if _, err := client.Status(ctx, "tx1"); err == nil {
		t.Fatal("expected transport error to surface")
	}
}

func TestUploadDropsEmptyTags(t *testing.T) {
	sender := &stubSender{id: "arTx123"}
	client := &Client{node: &stubNode{}, sender: sender}

	id, err := client.Upload(context.Background(), []byte("{}"), []Tag{
		{Name: "Content-Type", Value: "application/json"},
		{Name: "", Value: "ignored"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "arTx123" {
		t.Fatalf("unexpected id %q", id)
	}
	if len(sender.tags) != 1 || sender.tags[0].Name != "Content-Type" {
		t.Fatalf("unexpected tags %+v", sender.tags)
	}

	if _, err := client.Upload(context.Background(), nil, nil); err == nil {
		t.Fatal("expected empty payload error")
	}
}

func TestUploadHonorsCanceledContext(t *testing.T) {
	client := &Client{node: &stubNode{}, sender: &stubSender{id: "x"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Upload(ctx, []byte("x"), nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestUploadPriceAndBalance(t *testing.T) {
	client := &Client{node: &stubNode{balance: big.NewFloat(12.5), price: 250_000_000}, address: "wallet"}
	price, err := client.UploadPrice(context.Background(), 1024)
	if err != nil || price.Int64() != 250_000_000 {
		t.Fatalf("unexpected price %v %v", price, err)
	}
	bal, err := client.Balance(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f, _ := bal.Float64(); f != 12.5 {
		t.Fatalf("unexpected balance %v", f)
	}
}

func TestWinstonToAR(t *testing.T) {
	got, _ := WinstonToAR(big.NewInt(2_500_000_000_000)).Float64()
	if got != 2.5 {
		t.Fatalf("expected 2.5 AR, got %v", got)
	}
	if WinstonToAR(nil).Sign() != 0 {
		t.Fatal("nil winston should convert to zero")
	}
}

func TestURL(t *testing.T) {
	client := &Client{gateway: "https://arweave.net"}
	if got := client.URL("abc"); got != "https://arweave.net/abc" {
		t.Fatalf("unexpected url %q", got)
	}
}
