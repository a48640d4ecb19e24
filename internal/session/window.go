package session

// Limits bounds how much history is replayed to the model on each request.
type Limits struct {
	MaxTurns  int // <= 0 means unlimited
	MaxTokens int // <= 0 means unlimited
}

// TokenCounter estimates the token cost of a text.
type TokenCounter interface {
	CountText(text string) int
}

// Window returns the most recent turns that fit within l, oldest first.
// The newest turn is always kept so the model sees the exchange it is answering.
func (s *Session) Window(l Limits, counter TokenCounter) []Turn {
	turns := s.turns
	if l.MaxTurns > 0 && len(turns) > l.MaxTurns {
		turns = turns[len(turns)-l.MaxTurns:]
	}
	if l.MaxTokens > 0 && counter != nil && len(turns) > 1 {
		used := 0
		start := len(turns)
		for i := len(turns) - 1; i >= 0; i-- {
			cost := counter.CountText(turns[i].User) + counter.CountText(turns[i].Raw)
			if used+cost > l.MaxTokens && start < len(turns) {
				break
			}
			used += cost
			start = i
		}
		turns = turns[start:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
