package ledger

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const tokenABIJSON = `[
  {"type":"function","name":"mintWithProvenance","stateMutability":"nonpayable",
   "inputs":[
     {"name":"to","type":"address"},
     {"name":"uri","type":"string"},
     {"name":"provenanceId","type":"string"},
     {"name":"royaltyRecipient","type":"address"},
     {"name":"royaltyBps","type":"uint96"}],
   "outputs":[{"name":"tokenId","type":"uint256"}]},
  {"type":"event","name":"Transfer","anonymous":false,
   "inputs":[
     {"name":"from","type":"address","indexed":true},
     {"name":"to","type":"address","indexed":true},
     {"name":"tokenId","type":"uint256","indexed":true}]}
]`

const marketplaceABIJSON = `[
  {"type":"function","name":"createListing","stateMutability":"nonpayable",
   "inputs":[
     {"name":"nftContract","type":"address"},
     {"name":"tokenId","type":"uint256"},
     {"name":"paymentToken","type":"address"},
     {"name":"price","type":"uint256"},
     {"name":"duration","type":"uint256"}],
   "outputs":[{"name":"listingId","type":"uint256"}]}
]`

const (
	methodMint          = "mintWithProvenance"
	methodCreateListing = "createListing"
	eventTransfer       = "Transfer"
)

var (
	tokenABI       = mustParseABI(tokenABIJSON)
	marketplaceABI = mustParseABI(marketplaceABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse abi: %v", err))
	}
	return parsed
}
