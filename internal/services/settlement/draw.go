package settlement

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const rollSides = 100

// drawRolls produces two independent uniform rolls in [1, rollSides].
// Ties are redrawn so every draw names exactly one winner.
func drawRolls() (int64, int64, error) {
	for {
		roll1, err := roll()
		if err != nil {
			return 0, 0, err
		}

		roll2, err := roll()
		if err != nil {
			return 0, 0, err
		}

		if roll1 != roll2 {
			return roll1, roll2, nil
		}
	}
}

func roll() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(rollSides))
	if err != nil {
		return 0, fmt.Errorf("read random roll: %w", err)
	}

	return n.Int64() + 1, nil
}
