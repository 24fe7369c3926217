package il2p

import (
	"fmt"
	"sync"

	"github.com/kb9xyz/packetnode/internal/rs"
)

type parityCodec struct {
	codec *rs.Codec
}

var (
	rsCodecCache   = map[int]*parityCodec{}
	rsCodecCacheMu sync.Mutex
)

// rsCodecFor returns a memoized RS codec for the given parity-symbol count,
// since blocks of a given size always reuse the same generator polynomial.
func rsCodecFor(parity int) (*parityCodec, error) {
	rsCodecCacheMu.Lock()
	defer rsCodecCacheMu.Unlock()
	if c, ok := rsCodecCache[parity]; ok {
		return c, nil
	}
	codec, err := rs.New(parity)
	if err != nil {
		return nil, fmt.Errorf("il2p: building RS(%d) codec: %w", parity, err)
	}
	pc := &parityCodec{codec: codec}
	rsCodecCache[parity] = pc
	return pc, nil
}
