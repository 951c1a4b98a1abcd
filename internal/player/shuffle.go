package player

import (
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Shuffler wraps an Engine so that turning shuffle off restores the order the
// items were inserted in.
//
// The native engine only has one mutable playlist. Shuffler keeps a private
// record of the unshuffled order, mirrors every mutation into it, and performs
// shuffling itself by physically reordering the engine's playlist around the
// current item. The engine's own shuffle flag is never set.
type Shuffler struct {
	Engine

	mu       sync.Mutex
	original []*MediaItem
	shuffled bool
	rng      *rand.Rand
}

// NewShuffler wraps e. The current engine playlist becomes the original order.
func NewShuffler(e Engine) *Shuffler {
	return &Shuffler{
		Engine:   e,
		original: dedupe(e.MediaItems()),
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec // not security-sensitive
	}
}

// WithSeed makes the permutation deterministic.
func (s *Shuffler) WithSeed(seed uint64) *Shuffler {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = rand.New(rand.NewPCG(seed, seed)) //nolint:gosec // not security-sensitive
	return s
}

// Original returns a copy of the unshuffled order.
func (s *Shuffler) Original() []*MediaItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.original)
}

func (s *Shuffler) AddMediaItems(index int, items []*MediaItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items = lo.Filter(dedupe(items), func(it *MediaItem, _ int) bool {
		return !slices.Contains(s.original, it)
	})
	if len(items) == 0 {
		return
	}

	index = max(0, min(index, s.Engine.MediaItemCount()))
	var anchor *MediaItem
	if index > 0 {
		anchor = s.Engine.MediaItemAt(index - 1)
	}
	s.Engine.AddMediaItems(index, items)

	at := index
	if s.shuffled {
		// Keep new items next to their neighbour in the original order
		at = 0
		if anchor != nil {
			at = slices.Index(s.original, anchor) + 1
		}
	}
	at = max(0, min(at, len(s.original)))
	s.original = slices.Insert(s.original, at, items...)
}

func (s *Shuffler) RemoveMediaItems(from, to int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []*MediaItem
	for i := max(0, from); i < min(to, s.Engine.MediaItemCount()); i++ {
		removed = append(removed, s.Engine.MediaItemAt(i))
	}
	s.Engine.RemoveMediaItems(from, to)

	s.original = lo.Filter(s.original, func(it *MediaItem, _ int) bool {
		return !slices.Contains(removed, it)
	})
}

func (s *Shuffler) MoveMediaItem(from, to int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.Engine.MediaItemAt(from)
	s.Engine.MoveMediaItem(from, to)
	if s.shuffled || item == nil {
		// A move while shuffled only reorders the shuffled view
		return
	}

	i := slices.Index(s.original, item)
	if i < 0 {
		return
	}
	s.original = slices.Delete(s.original, i, i+1)
	to = max(0, min(to, len(s.original)))
	s.original = slices.Insert(s.original, to, item)
}

func (s *Shuffler) ReplaceMediaItem(index int, item *MediaItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.Engine.MediaItemAt(index)
	if old == nil {
		return
	}
	s.Engine.ReplaceMediaItem(index, item)

	if old == item {
		return
	}
	if dup := slices.Index(s.original, item); dup >= 0 {
		s.original = slices.Delete(s.original, dup, dup+1)
	}
	if i := slices.Index(s.original, old); i >= 0 {
		s.original[i] = item
	} else {
		s.original = append(s.original, item)
	}
}

func (s *Shuffler) SetMediaItems(items []*MediaItem, startIndex int, position time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items = dedupe(items)
	s.original = slices.Clone(items)
	s.Engine.SetMediaItems(items, startIndex, position)
	if s.shuffled {
		s.reorder(s.permute)
	}
}

func (s *Shuffler) ClearMediaItems() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.original = nil
	s.Engine.ClearMediaItems()
}

// ShuffleModeEnabled reports the wrapper's shuffle state.
func (s *Shuffler) ShuffleModeEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shuffled
}

// SetShuffleModeEnabled shuffles or restores the engine playlist. The current
// item keeps playing: items before it stay before it and items after it stay
// after it.
func (s *Shuffler) SetShuffleModeEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if enabled == s.shuffled {
		return
	}
	s.shuffled = enabled
	if enabled {
		s.original = dedupe(s.Engine.MediaItems())
		s.reorder(s.permute)
		return
	}
	s.reorder(s.restore)
}

// permute splits the current playlist around the current item and shuffles
// each side.
func (s *Shuffler) permute(items []*MediaItem, current int) (before, after []*MediaItem) {
	before = slices.Clone(items[:current])
	after = slices.Clone(items[current+1:])
	s.rng.Shuffle(len(before), func(i, j int) { before[i], before[j] = before[j], before[i] })
	s.rng.Shuffle(len(after), func(i, j int) { after[i], after[j] = after[j], after[i] })
	return before, after
}

// restore splits the original order around the current item.
func (s *Shuffler) restore(items []*MediaItem, current int) (before, after []*MediaItem) {
	cur := items[current]
	k := slices.Index(s.original, cur)
	if k < 0 {
		// Current item unknown to the original order: keep it first
		return nil, slices.Clone(s.original)
	}
	return slices.Clone(s.original[:k]), slices.Clone(s.original[k+1:])
}

// reorder rewrites the engine playlist as before + current + after without
// replacing the current item.
func (s *Shuffler) reorder(split func(items []*MediaItem, current int) (before, after []*MediaItem)) {
	items := s.Engine.MediaItems()
	if len(items) == 0 {
		return
	}
	current := s.Engine.CurrentIndex()
	if current < 0 || current >= len(items) {
		current = 0
	}

	before, after := split(items, current)
	s.Engine.RemoveMediaItems(current+1, len(items))
	s.Engine.RemoveMediaItems(0, current)
	s.Engine.AddMediaItems(0, before)
	s.Engine.AddMediaItems(len(before)+1, after)
}

func dedupe(items []*MediaItem) []*MediaItem {
	out := make([]*MediaItem, 0, len(items))
	for _, it := range items {
		if it != nil && !slices.Contains(out, it) {
			out = append(out, it)
		}
	}
	return out
}
