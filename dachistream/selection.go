package dachistream

import (
	"math/rand"
)

// selectMessage picks at most one message from the buffer view under the
// named strategy. Returns nil only when the view is empty. It is
// deterministic for a given input except under StrategyRandom.
//
// insightTotals maps userID to all-time message count and is only consulted
// by new_chatter; absent users default to 0.
func selectMessage(v bufferView, strategy string, insightTotals map[string]int) *ChatMessage {
	if len(v.messages) == 0 {
		return nil
	}
	switch strategy {
	case StrategyMostActive:
		return selectMostActive(v)
	case StrategyRandom:
		//nolint:gosec // G404: selection variety, not a security decision
		m := v.messages[rand.Intn(len(v.messages))]
		return &m
	case StrategyNewChatter:
		return selectNewChatter(v, insightTotals)
	default:
		// Defensive fallback for unrecognized strategy values.
		m := v.messages[len(v.messages)-1]
		return &m
	}
}

// selectMostActive returns the most recent message from the user with the
// highest count this cycle. Ties go to whichever user was first seen, since
// the scan walks first-seen order and only a strictly greater count wins.
func selectMostActive(v bufferView) *ChatMessage {
	best := ""
	bestCount := 0
	for _, id := range v.userOrder {
		if n := v.userCount[id]; n > bestCount {
			best = id
			bestCount = n
		}
	}
	if best == "" {
		// All messages anonymous; take the newest one.
		m := v.messages[len(v.messages)-1]
		return &m
	}
	for i := len(v.messages) - 1; i >= 0; i-- {
		if v.messages[i].UserID == best {
			m := v.messages[i]
			return &m
		}
	}
	m := v.messages[len(v.messages)-1]
	return &m
}

// selectNewChatter returns the buffered message whose author has the lowest
// all-time total. First occurrence wins ties because the comparison is
// strict. Falls back to the first buffered message when nothing carries a
// user id.
func selectNewChatter(v bufferView, insightTotals map[string]int) *ChatMessage {
	var pick *ChatMessage
	lowest := 0
	for i := range v.messages {
		m := v.messages[i]
		if m.UserID == "" {
			continue
		}
		total := insightTotals[m.UserID]
		if pick == nil || total < lowest {
			pick = &v.messages[i]
			lowest = total
		}
	}
	if pick == nil {
		m := v.messages[0]
		return &m
	}
	out := *pick
	return &out
}
