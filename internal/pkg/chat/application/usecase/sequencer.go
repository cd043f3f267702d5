package usecase

import "sync"

const sequencerStripes = 64

// Sequencer serializes state changes of one conversation across goroutines of this process.
// Conversations hash onto a fixed set of mutexes, so unrelated conversations may share one.
type Sequencer struct {
	stripes [sequencerStripes]sync.Mutex
}

func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Lock blocks until the conversation's stripe is held and returns its unlock func.
func (s *Sequencer) Lock(conversationID int64) func() {
	m := &s.stripes[uint64(conversationID)%sequencerStripes]
	m.Lock()
	return m.Unlock
}
