package state

import "github.com/ardanlabs/utxochain/foundation/blockchain/database"

// Difficulty retargeting parameters.
const (
	// DifficultyAdjustmentInterval is the number of blocks between
	// difficulty adjustments.
	DifficultyAdjustmentInterval = 10

	// BlockGenerationInterval is the expected number of seconds between
	// blocks.
	BlockGenerationInterval = 10
)

// NextDifficulty returns the difficulty for the block that follows the tip
// of the chain. The difficulty only changes when the tip's index is a
// positive multiple of the adjustment interval. The difficulty never drops
// below zero.
func NextDifficulty(chain []database.Block) uint {
	if len(chain) == 0 {
		return 0
	}

	latest := chain[len(chain)-1]
	if latest.Index == 0 || latest.Index%DifficultyAdjustmentInterval != 0 || len(chain) < DifficultyAdjustmentInterval {
		return latest.Difficulty
	}

	prevAdjustment := chain[len(chain)-DifficultyAdjustmentInterval]

	const timeExpected = BlockGenerationInterval * DifficultyAdjustmentInterval
	timeTaken := latest.Timestamp - prevAdjustment.Timestamp

	switch {
	case timeTaken < timeExpected/2:
		return prevAdjustment.Difficulty + 1

	case timeTaken > timeExpected*2:
		if prevAdjustment.Difficulty == 0 {
			return 0
		}
		return prevAdjustment.Difficulty - 1

	default:
		return prevAdjustment.Difficulty
	}
}
