package inproc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/distq/comms"
)

// runRanks drives fn once per rank, each on its own goroutine, the way a
// real deployment drives one rank per process.
func runRanks(t *testing.T, hub *Hub, fn func(comm comms.Communicator) error) {
	t.Helper()

	var g errgroup.Group
	for rank := 0; rank < hub.Size(); rank++ {
		comm, err := hub.Communicator(rank)
		require.NoError(t, err)
		g.Go(func() error {
			return fn(comm)
		})
	}
	require.NoError(t, g.Wait())
}

func TestExchangeTwoRanks(t *testing.T) {
	hub, err := NewHub(2)
	require.NoError(t, err)
	defer hub.Close()

	runRanks(t, hub, func(comm comms.Communicator) error {
		ctx := context.Background()
		dist := comm.NewDistributor()

		// Rank 0 exports [to 1, to 0, to 1]; rank 1 exports [to 0].
		var dest []int32
		var exports []byte
		if comm.Rank() == 0 {
			dest = []int32{1, 0, 1}
			exports = []byte{10, 11, 12}
		} else {
			dest = []int32{0}
			exports = []byte{20}
		}

		n, err := dist.PrepareFromDestinations(ctx, dest)
		if err != nil {
			return err
		}

		imports := make([]byte, n)
		if err := dist.Exchange(ctx, exports, 1, imports); err != nil {
			return err
		}

		// Imports arrive ordered by source rank, preserving send order.
		if comm.Rank() == 0 {
			assert.Equal(t, []byte{11, 20}, imports)
		} else {
			assert.Equal(t, []byte{10, 12}, imports)
		}
		return nil
	})
}

func TestExchangePacketsKeepRows(t *testing.T) {
	hub, err := NewHub(2)
	require.NoError(t, err)
	defer hub.Close()

	runRanks(t, hub, func(comm comms.Communicator) error {
		ctx := context.Background()
		dist := comm.NewDistributor()

		// Each rank sends one 4-byte row to the other.
		other := int32(1 - comm.Rank())
		n, err := dist.PrepareFromDestinations(ctx, []int32{other})
		if err != nil {
			return err
		}
		require.Equal(t, 1, n)

		me := byte(comm.Rank())
		exports := []byte{me, me, me, me}
		imports := make([]byte, 4)
		if err := dist.Exchange(ctx, exports, 4, imports); err != nil {
			return err
		}

		want := byte(other)
		assert.Equal(t, []byte{want, want, want, want}, imports)
		return nil
	})
}

func TestZeroWorkRankDoesNotStallPeers(t *testing.T) {
	// One rank has nothing to send and nothing to receive; it must still
	// participate in the collective so its peer completes.
	hub, err := NewHub(2)
	require.NoError(t, err)
	defer hub.Close()

	runRanks(t, hub, func(comm comms.Communicator) error {
		ctx := context.Background()
		dist := comm.NewDistributor()

		var dest []int32
		var exports []byte
		if comm.Rank() == 0 {
			dest = []int32{0, 0} // rank 0 sends only to itself
			exports = []byte{1, 2}
		}

		n, err := dist.PrepareFromDestinations(ctx, dest)
		if err != nil {
			return err
		}

		imports := make([]byte, n)
		if err := dist.Exchange(ctx, exports, 1, imports); err != nil {
			return err
		}

		if comm.Rank() == 0 {
			assert.Equal(t, []byte{1, 2}, imports)
		} else {
			assert.Empty(t, imports)
		}
		return nil
	})
}

func TestExchangeWithCompression(t *testing.T) {
	hub, err := NewHub(2, WithCompressThreshold(32))
	require.NoError(t, err)
	defer hub.Close()

	runRanks(t, hub, func(comm comms.Communicator) error {
		ctx := context.Background()
		dist := comm.NewDistributor()

		const rows = 256
		dest := make([]int32, rows)
		exports := make([]byte, rows)
		for i := range dest {
			dest[i] = int32(1 - comm.Rank())
			exports[i] = byte(comm.Rank() + 1)
		}

		n, err := dist.PrepareFromDestinations(ctx, dest)
		if err != nil {
			return err
		}
		require.Equal(t, rows, n)

		imports := make([]byte, n)
		if err := dist.Exchange(ctx, exports, 1, imports); err != nil {
			return err
		}

		want := byte(2 - comm.Rank())
		for _, b := range imports {
			require.Equal(t, want, b)
		}
		return nil
	})
}

func TestExchangeWithBandwidthLimit(t *testing.T) {
	hub, err := NewHub(2, WithBandwidthLimit(1<<20))
	require.NoError(t, err)
	defer hub.Close()

	runRanks(t, hub, func(comm comms.Communicator) error {
		ctx := context.Background()
		dist := comm.NewDistributor()

		dest := []int32{int32(1 - comm.Rank())}
		n, err := dist.PrepareFromDestinations(ctx, dest)
		if err != nil {
			return err
		}

		imports := make([]byte, n*8)
		return dist.Exchange(ctx, make([]byte, 8), 8, imports)
	})
}

func TestTraceLogWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exchange.trace.zst")

	hub, err := NewHub(2, WithTraceLog(path))
	require.NoError(t, err)

	runRanks(t, hub, func(comm comms.Communicator) error {
		ctx := context.Background()
		dist := comm.NewDistributor()

		dest := []int32{int32(1 - comm.Rank())}
		n, err := dist.PrepareFromDestinations(ctx, dest)
		if err != nil {
			return err
		}
		imports := make([]byte, n)
		return dist.Exchange(ctx, []byte{byte(comm.Rank())}, 1, imports)
	})

	require.NoError(t, hub.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	// The log must be a valid zstd stream.
	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	decoded, err := dec.DecodeAll(raw, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, decoded)
}

func TestExchangeValidatesSizes(t *testing.T) {
	hub, err := NewHub(1)
	require.NoError(t, err)
	defer hub.Close()

	comm, err := hub.Communicator(0)
	require.NoError(t, err)
	ctx := context.Background()

	dist := comm.NewDistributor()
	_, err = dist.PrepareFromDestinations(ctx, []int32{0})
	require.NoError(t, err)

	err = dist.Exchange(ctx, []byte{1}, 1, make([]byte, 3))
	require.Error(t, err, "import buffer larger than the plan")

	err = dist.Exchange(ctx, []byte{1, 2}, 1, make([]byte, 1))
	require.Error(t, err, "export buffer larger than the plan")

	err = dist.Exchange(ctx, []byte{1}, 0, make([]byte, 1))
	require.Error(t, err, "non-positive packet size")
}

func TestExchangeBeforePrepare(t *testing.T) {
	hub, err := NewHub(1)
	require.NoError(t, err)
	defer hub.Close()

	comm, err := hub.Communicator(0)
	require.NoError(t, err)

	dist := comm.NewDistributor()
	err = dist.Exchange(context.Background(), nil, 1, nil)
	require.Error(t, err)
}

func TestHubRankValidation(t *testing.T) {
	hub, err := NewHub(2)
	require.NoError(t, err)
	defer hub.Close()

	_, err = hub.Communicator(2)
	require.Error(t, err)
	_, err = hub.Communicator(-1)
	require.Error(t, err)

	_, err = NewHub(0)
	require.Error(t, err)
}
