package enums

import "slices"

// NFTStatus is the confirmation state of an archival record.
type NFTStatus string

const (
	NFTStatusUploading            NFTStatus = "uploading"
	NFTStatusAwaitingConfirmation NFTStatus = "awaiting_confirmation"
	NFTStatusConfirmed            NFTStatus = "confirmed"
	NFTStatusFailed               NFTStatus = "failed"
)

var nftStatuses = newSet("nft status",
	NFTStatusUploading,
	NFTStatusAwaitingConfirmation,
	NFTStatusConfirmed,
	NFTStatusFailed,
)

// nftTransitions lists the statuses each status may move to.
var nftTransitions = map[NFTStatus][]NFTStatus{
	NFTStatusUploading:            {NFTStatusAwaitingConfirmation, NFTStatusFailed},
	NFTStatusAwaitingConfirmation: {NFTStatusConfirmed, NFTStatusFailed},
}

// IsValid reports whether the value is known.
func (s NFTStatus) IsValid() bool { return nftStatuses.has(s) }

// IsTerminal reports whether the record can no longer change status.
func (s NFTStatus) IsTerminal() bool {
	return s == NFTStatusConfirmed || s == NFTStatusFailed
}

// CanTransitionTo reports whether moving from s to next keeps the status monotonic.
func (s NFTStatus) CanTransitionTo(next NFTStatus) bool {
	return slices.Contains(nftTransitions[s], next)
}

// NFTStatusPredecessors returns every status allowed to move into target.
func NFTStatusPredecessors(target NFTStatus) []NFTStatus {
	var out []NFTStatus
	for _, from := range nftStatuses.values {
		if from.CanTransitionTo(target) {
			out = append(out, from)
		}
	}
	return out
}
