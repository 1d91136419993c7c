package fetcher

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"poolPriceFetcher/internal/model"
)

// ErrInvalidRange reports a block range with start >= end.
var ErrInvalidRange = errors.New("start block must be less than end block")

// BlockRange is the half-open block range [Start, End).
type BlockRange struct {
	Start uint64
	End   uint64
}

// ParseBlockRange parses "start..end".
func ParseBlockRange(input string) (BlockRange, error) {
	parts := strings.Split(strings.TrimSpace(input), "..")
	if len(parts) != 2 {
		return BlockRange{}, fmt.Errorf("%w: block range must be in format 'start..end'", model.ErrConfiguration)
	}
	start, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return BlockRange{}, fmt.Errorf("%w: parse start block: %v", model.ErrConfiguration, err)
	}
	end, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return BlockRange{}, fmt.Errorf("%w: parse end block: %v", model.ErrConfiguration, err)
	}
	r := BlockRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return BlockRange{}, err
	}
	return r, nil
}

// Validate rejects empty and inverted ranges.
func (r BlockRange) Validate() error {
	if r.Start >= r.End {
		return fmt.Errorf("%w: %w (%d..%d)", model.ErrConfiguration, ErrInvalidRange, r.Start, r.End)
	}
	return nil
}

// Len returns the number of blocks in the range.
func (r BlockRange) Len() uint64 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

func (r BlockRange) String() string {
	return fmt.Sprintf("%d..%d", r.Start, r.End)
}
