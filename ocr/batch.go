package ocr

import (
	"github.com/videoreport/api/config"
)

// TotalBatches computes ceil(totalScenes/batchSize) (§4.5.3).
func TotalBatches(totalScenes, batchSize int) int {
	if batchSize <= 0 {
		batchSize = config.DefaultBatchSize
	}
	if totalScenes <= 0 {
		return 0
	}
	return (totalScenes + batchSize - 1) / batchSize
}

// BatchBounds returns the [start, end) scene index range for batchIndex
// (0-based), given totalScenes and batchSize.
func BatchBounds(batchIndex, totalScenes, batchSize int) (start, end int) {
	start = batchIndex * batchSize
	end = start + batchSize
	if end > totalScenes {
		end = totalScenes
	}
	return start, end
}

// BatchProgress maps a just-completed batch index into the overall progress
// range [BatchProgressBase, BatchProgressCap] per §4.5.3's formula:
// 25 + floor(((batch_index+1)/total_batches)*65), capped at 89.
func BatchProgress(batchIndex, totalBatches int) int {
	if totalBatches <= 0 {
		return config.BatchProgressBase
	}
	span := 65 // the formula's multiplier; the cap below clamps the top batch to 89
	p := config.BatchProgressBase + ((batchIndex+1)*span)/totalBatches
	if p > config.BatchProgressCap {
		p = config.BatchProgressCap
	}
	return p
}
