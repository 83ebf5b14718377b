package enums

// NFTOrigin records which path created an archival record.
type NFTOrigin string

const (
	NFTOriginPlatform   NFTOrigin = "platform"
	NFTOriginLedgerSync NFTOrigin = "ledger_sync"
)

var nftOrigins = newSet("nft origin",
	NFTOriginPlatform,
	NFTOriginLedgerSync,
)

// IsValid reports whether the value is known.
func (o NFTOrigin) IsValid() bool { return nftOrigins.has(o) }
