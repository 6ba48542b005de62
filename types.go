package weightd

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// GenesisHashSize is the length in bytes of a genesis hash.
const GenesisHashSize = 32

type (
	// Server is a mock weight oracle listening on a TCP socket.
	Server interface {
		Start(ctx context.Context) error
		Stop()
		Addr() net.Addr

		SetWeight(address, selectionID, balanceRound string, weight uint64)
		SetAddressWeight(address string, weight uint64)
		SetTotalWeight(totalWeight uint64)
	}

	Config struct {
		Host string
		Port int

		GenesisHash      [GenesisHashSize]byte
		ProtocolVersion  string
		AlgorithmVersion string

		// Latency is slept at the start of every connection.
		Latency time.Duration

		TotalWeight uint64
		// DefaultWeight, when set, is returned for every weight query.
		DefaultWeight *uint64

		// WeightTable is keyed by "address:selection_id:balance_round".
		WeightTable    map[string]uint64
		AddressWeights map[string]uint64

		GracePeriod        time.Duration
		AcceptPollInterval time.Duration

		Logger logrus.FieldLogger
	}

	server struct {
		config Config
		log    logrus.FieldLogger
		store  *weightStore

		listener *net.TCPListener
		running  atomic.Bool
		stopOnce sync.Once
		loopDone chan struct{}

		wg          sync.WaitGroup
		connections sync.Map // connection id -> remote address
	}
)
