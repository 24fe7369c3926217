package il2p

import (
	"fmt"

	"github.com/kb9xyz/packetnode/internal/scramble"
)

// blockLayout mirrors il2p_payload.c's il2p_payload_compute(): split
// payloadLen bytes across blockCount blocks such that "large" blocks carry
// one more byte than "small" blocks, large blocks coming first.
type blockLayout struct {
	blockCount      int
	smallBlockSize  int
	largeBlockSize  int
	largeBlockCount int
	smallBlockCount int
	parityPerBlock  int
}

func computeLayout(payloadLen int) (blockLayout, error) {
	if payloadLen < 0 || payloadLen > MaxPayloadSize {
		return blockLayout{}, fmt.Errorf("il2p: payload length %d out of range [0,%d]", payloadLen, MaxPayloadSize)
	}
	if payloadLen == 0 {
		return blockLayout{}, nil
	}

	blockCount := (payloadLen + blockSizeForSplit - 1) / blockSizeForSplit
	smallBlockSize := payloadLen / blockCount
	largeBlockSize := smallBlockSize + 1
	largeBlockCount := payloadLen - blockCount*smallBlockSize
	smallBlockCount := blockCount - largeBlockCount

	return blockLayout{
		blockCount:      blockCount,
		smallBlockSize:  smallBlockSize,
		largeBlockSize:  largeBlockSize,
		largeBlockCount: largeBlockCount,
		smallBlockCount: smallBlockCount,
		// il2p_payload_compute hardcodes parity_symbols_per_block = 16 for
		// every block regardless of its data size (spec §4.4).
		parityPerBlock: ParitySymbolsPerBlock,
	}, nil
}

// EncodePayload splits, scrambles, and RS-encodes the information field
// into on-air blocks, concatenated in order (large blocks first, per
// il2p_encode_payload).
func EncodePayload(info []byte) ([]byte, error) {
	layout, err := computeLayout(len(info))
	if err != nil {
		return nil, err
	}
	if layout.blockCount == 0 {
		return nil, nil
	}

	rsCodec, err := rsCodecFor(layout.parityPerBlock)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(info)+layout.blockCount*layout.parityPerBlock)
	off := 0
	for i := 0; i < layout.largeBlockCount; i++ {
		block := info[off : off+layout.largeBlockSize]
		off += layout.largeBlockSize
		out = append(out, encodeBlock(rsCodec, block)...)
	}
	for i := 0; i < layout.smallBlockCount; i++ {
		block := info[off : off+layout.smallBlockSize]
		off += layout.smallBlockSize
		out = append(out, encodeBlock(rsCodec, block)...)
	}
	return out, nil
}

func encodeBlock(codec *parityCodec, block []byte) []byte {
	scrambled := scrambleIfNonEmpty(block)
	parity := codec.codec.Encode(scrambled)
	return append(append([]byte(nil), scrambled...), parity...)
}

// DecodePayload reverses EncodePayload given the original (unencoded)
// information length, which the header must have already supplied.
func DecodePayload(encoded []byte, infoLen int) ([]byte, int, error) {
	layout, err := computeLayout(infoLen)
	if err != nil {
		return nil, 0, err
	}
	if layout.blockCount == 0 {
		return nil, 0, nil
	}

	rsCodec, err := rsCodecFor(layout.parityPerBlock)
	if err != nil {
		return nil, 0, err
	}

	out := make([]byte, 0, infoLen)
	off := 0
	totalCorrected := 0
	for i := 0; i < layout.largeBlockCount; i++ {
		plain, corrected, err := decodeBlock(rsCodec, encoded, off, layout.largeBlockSize)
		if err != nil {
			return nil, 0, fmt.Errorf("il2p: payload block %d: %w", i, err)
		}
		off += layout.largeBlockSize + layout.parityPerBlock
		out = append(out, plain...)
		totalCorrected += corrected
	}
	for i := 0; i < layout.smallBlockCount; i++ {
		plain, corrected, err := decodeBlock(rsCodec, encoded, off, layout.smallBlockSize)
		if err != nil {
			return nil, 0, fmt.Errorf("il2p: payload block %d: %w", layout.largeBlockCount+i, err)
		}
		off += layout.smallBlockSize + layout.parityPerBlock
		out = append(out, plain...)
		totalCorrected += corrected
	}
	return out, totalCorrected, nil
}

func decodeBlock(codec *parityCodec, encoded []byte, off, size int) ([]byte, int, error) {
	if off+size+codec.codec.ParityLen() > len(encoded) {
		return nil, 0, fmt.Errorf("truncated payload")
	}
	data := append([]byte(nil), encoded[off:off+size]...)
	parity := append([]byte(nil), encoded[off+size:off+size+codec.codec.ParityLen()]...)
	corrected, err := codec.codec.Decode(data, parity)
	if err != nil {
		return nil, 0, err
	}
	plain := descrambleIfNonEmpty(data)
	return plain, corrected, nil
}

func scrambleIfNonEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return scramble.Block(b)
}

func descrambleIfNonEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return scramble.Deblock(b)
}

// EncodedPayloadLen returns the number of on-air bytes EncodePayload
// produces for an information field of the given length, needed by the
// receive state machine to know how many bytes to collect.
func EncodedPayloadLen(infoLen int) (int, error) {
	layout, err := computeLayout(infoLen)
	if err != nil {
		return 0, err
	}
	return infoLen + layout.blockCount*layout.parityPerBlock, nil
}
