package audio

import (
	"context"
	"errors"
)

// ErrSinkClosed is returned by a BlockSink whose consumer has gone away.
var ErrSinkClosed = errors.New("block sink closed")

// Block is one block interval of mono test signal. Ownership moves with the
// pointer: the generator never touches a block after handing it off, and the
// consumer treats Samples as read-only.
type Block struct {
	// Seq is the 0-based production index.
	Seq uint64
	// Start is the absolute frame offset of Samples[0].
	Start   int64
	Samples []float32
}

// Frames returns the block length.
func (b *Block) Frames() int { return len(b.Samples) }

// BlockSink accepts produced blocks in order.
type BlockSink interface {
	Send(ctx context.Context, b *Block) error
}
