package inproc

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hupe1980/distq/comms"
)

// distributor holds one rank's exchange plan for a round of transfers.
// Not safe for concurrent use; the collective protocol requires every rank
// to drive its distributor through the same call sequence anyway.
type distributor struct {
	ep *endpoint

	plan       *comms.Plan
	rowsByDst  [][]int32 // export row indices per destination rank
	recvCounts []int     // rows expected from each source rank
	totalRecv  int
}

// PrepareFromDestinations computes the plan from one destination rank per
// exported row. Collective.
func (d *distributor) PrepareFromDestinations(ctx context.Context, destRanks []int32) (int, error) {
	plan, err := comms.BuildPlan(d.ep.hub.size, destRanks)
	if err != nil {
		return 0, err
	}
	return d.finishPrepare(ctx, plan)
}

// PrepareFromGroups computes the plan from per-group destination ranks and
// the offset table delimiting the groups. Collective.
func (d *distributor) PrepareFromGroups(ctx context.Context, groupRanks []int32, offsets []int32) (int, error) {
	plan, err := comms.BuildPlanFromGroups(d.ep.hub.size, groupRanks, offsets)
	if err != nil {
		return 0, err
	}
	return d.finishPrepare(ctx, plan)
}

// finishPrepare indexes export rows by destination and runs the collective
// count exchange: every rank tells every rank how many rows it will send,
// zero included.
func (d *distributor) finishPrepare(ctx context.Context, plan *comms.Plan) (int, error) {
	d.plan = plan

	size := d.ep.hub.size
	me := d.ep.rank

	d.rowsByDst = make([][]int32, size)
	for i := 0; i < plan.TotalSendLength(); i++ {
		r := plan.DestRank(i)
		d.rowsByDst[r] = append(d.rowsByDst[r], int32(i))
	}

	for dst := 0; dst < size; dst++ {
		select {
		case d.ep.hub.countCh[dst][me] <- plan.SendCount(dst):
		case <-ctx.Done():
			return 0, fmt.Errorf("inproc: prepare interrupted: %w", ctx.Err())
		}
	}

	d.recvCounts = make([]int, size)
	d.totalRecv = 0
	for src := 0; src < size; src++ {
		select {
		case n := <-d.ep.hub.countCh[me][src]:
			d.recvCounts[src] = n
			d.totalRecv += n
		case <-ctx.Done():
			return 0, fmt.Errorf("inproc: prepare interrupted: %w", ctx.Err())
		}
	}
	return d.totalRecv, nil
}

// TotalSendLength returns the number of rows this rank exports.
func (d *distributor) TotalSendLength() int {
	if d.plan == nil {
		return 0
	}
	return d.plan.TotalSendLength()
}

// TotalReceiveLength returns the number of rows this rank imports.
func (d *distributor) TotalReceiveLength() int { return d.totalRecv }

// Exchange moves packetBytes bytes per row according to the prepared plan.
// Imports land ordered by source rank ascending, preserving each source's
// export order. Collective.
func (d *distributor) Exchange(ctx context.Context, exports []byte, packetBytes int, imports []byte) error {
	if d.plan == nil {
		return fmt.Errorf("inproc: exchange before prepare")
	}
	if packetBytes <= 0 {
		return fmt.Errorf("inproc: packet size must be positive, got %d", packetBytes)
	}
	if len(exports) != d.plan.TotalSendLength()*packetBytes {
		return fmt.Errorf("inproc: export buffer holds %d bytes, plan requires %d", len(exports), d.plan.TotalSendLength()*packetBytes)
	}
	if len(imports) != d.totalRecv*packetBytes {
		return fmt.Errorf("inproc: import buffer holds %d bytes, plan requires %d", len(imports), d.totalRecv*packetBytes)
	}

	hub := d.ep.hub
	me := d.ep.rank

	// Send one frame to every rank, empty frames included, so peers with
	// nothing to receive still observe a completed collective.
	g, gctx := errgroup.WithContext(ctx)
	for dst := 0; dst < hub.size; dst++ {
		dst := dst
		g.Go(func() error {
			rows := d.rowsByDst[dst]
			payload := make([]byte, 0, len(rows)*packetBytes)
			for _, row := range rows {
				lo := int(row) * packetBytes
				payload = append(payload, exports[lo:lo+packetBytes]...)
			}

			if d.ep.limiter != nil && len(payload) > 0 {
				if err := waitBandwidth(gctx, d.ep.limiter, len(payload)); err != nil {
					return err
				}
			}

			encoded, err := encodeFrame(payload, hub.opts.CompressThreshold)
			if err != nil {
				return fmt.Errorf("inproc: encode frame for rank %d: %w", dst, err)
			}

			if hub.trace != nil {
				if err := hub.trace.record(me, dst, len(rows), encoded); err != nil {
					return fmt.Errorf("inproc: trace frame: %w", err)
				}
			}

			select {
			case hub.frameCh[dst][me] <- frame{rows: len(rows), data: encoded}:
				return nil
			case <-gctx.Done():
				return fmt.Errorf("inproc: exchange interrupted: %w", gctx.Err())
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Assemble imports grouped by source rank ascending.
	off := 0
	for src := 0; src < hub.size; src++ {
		var f frame
		select {
		case f = <-hub.frameCh[me][src]:
		case <-ctx.Done():
			return fmt.Errorf("inproc: exchange interrupted: %w", ctx.Err())
		}

		if f.rows != d.recvCounts[src] {
			return fmt.Errorf("inproc: rank %d sent %d rows, plan promised %d", src, f.rows, d.recvCounts[src])
		}
		payload, err := decodeFrame(f.data)
		if err != nil {
			return fmt.Errorf("inproc: decode frame from rank %d: %w", src, err)
		}
		if len(payload) != f.rows*packetBytes {
			return fmt.Errorf("inproc: frame from rank %d holds %d bytes, expected %d", src, len(payload), f.rows*packetBytes)
		}
		copy(imports[off:], payload)
		off += len(payload)
	}
	return nil
}

// waitBandwidth charges n bytes against the limiter, chunking requests that
// exceed the configured burst.
func waitBandwidth(ctx context.Context, limiter *rate.Limiter, n int) error {
	burst := limiter.Burst()
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := limiter.WaitN(ctx, chunk); err != nil {
			return fmt.Errorf("inproc: bandwidth wait: %w", err)
		}
		n -= chunk
	}
	return nil
}
