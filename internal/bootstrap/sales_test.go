package bootstrap

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/archivemint-backend/internal/listings"
)

type recordingListings struct {
	listings.Service
	sold map[uuid.UUID]string
}

func (r *recordingListings) MarkSold(_ context.Context, id uuid.UUID, ref string) error {
	r.sold[id] = ref
	return nil
}

func TestSaleForwarderRequiresWiring(t *testing.T) {
	f := &saleForwarder{}
	require.Error(t, f.MarkSold(context.Background(), uuid.New(), "pi_1"))

	target := &recordingListings{sold: map[uuid.UUID]string{}}
	f.listings = target
	id := uuid.New()
	require.NoError(t, f.MarkSold(context.Background(), id, "pi_2"))
	require.Equal(t, "pi_2", target.sold[id])
}
