package comms

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// Plan is one rank's send side of an exchange round: the destination rank
// of every exported row, per-destination row counts, and the set of peer
// ranks actually sent to. Transports derive their receive side collectively.
type Plan struct {
	destRanks  []int32
	sendCounts []int
	peers      *roaring.Bitmap
	totalSend  int
}

// BuildPlan validates destRanks against the group size and assembles the
// send-side plan. One entry per exported row.
func BuildPlan(size int, destRanks []int32) (*Plan, error) {
	p := &Plan{
		destRanks:  destRanks,
		sendCounts: make([]int, size),
		peers:      roaring.New(),
		totalSend:  len(destRanks),
	}
	for i, r := range destRanks {
		if r < 0 || int(r) >= size {
			return nil, fmt.Errorf("comms: destination rank %d at row %d outside group of size %d", r, i, size)
		}
		p.sendCounts[r]++
		p.peers.Add(uint32(r))
	}
	return p, nil
}

// BuildPlanFromGroups expands a per-group destination rank over the rows of
// each group [offsets[g], offsets[g+1]) and assembles the send-side plan.
func BuildPlanFromGroups(size int, groupRanks []int32, offsets []int32) (*Plan, error) {
	if len(offsets) != len(groupRanks)+1 {
		return nil, fmt.Errorf("comms: offset table of length %d does not delimit %d groups", len(offsets), len(groupRanks))
	}
	total := int(offsets[len(offsets)-1])
	dest := make([]int32, total)
	for g, r := range groupRanks {
		for i := offsets[g]; i < offsets[g+1]; i++ {
			dest[i] = r
		}
	}
	return BuildPlan(size, dest)
}

// TotalSendLength returns the number of exported rows.
func (p *Plan) TotalSendLength() int { return p.totalSend }

// SendCount returns how many rows go to the given rank.
func (p *Plan) SendCount(rank int) int { return p.sendCounts[rank] }

// DestRank returns the destination rank of exported row i.
func (p *Plan) DestRank(i int) int32 { return p.destRanks[i] }

// Peers returns the set of ranks this plan sends at least one row to.
// The returned bitmap must not be modified.
func (p *Plan) Peers() *roaring.Bitmap { return p.peers }

// NumPeers returns the number of distinct destination ranks.
func (p *Plan) NumPeers() int { return int(p.peers.GetCardinality()) }
