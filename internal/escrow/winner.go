package escrow

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Winner is the arbiter's decision.
type Winner uint8

const (
	WinnerCreator Winner = 0
	WinnerJoiner  Winner = 1
	WinnerTie     Winner = 2
)

func (w Winner) String() string {
	switch w {
	case WinnerCreator:
		return "creator"
	case WinnerJoiner:
		return "joiner"
	case WinnerTie:
		return "tie"
	default:
		return "winner(" + strconv.Itoa(int(w)) + ")"
	}
}

// ParseWinner accepts the names creator, joiner, tie or any numeric code.
// Numeric codes are not range checked here: Settle rejects an unknown code
// only after its other preconditions. Codes above 255 map to 255.
func ParseWinner(s string) (Winner, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "creator":
		return WinnerCreator, nil
	case "joiner":
		return WinnerJoiner, nil
	case "tie":
		return WinnerTie, nil
	}
	n, err := strconv.ParseUint(v, 10, 8)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return Winner(math.MaxUint8), nil
		}
		return 0, ErrInvalidWinner
	}
	return Winner(n), nil
}
