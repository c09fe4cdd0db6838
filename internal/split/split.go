package split

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

type Field string

const (
	Train      Field = "train"
	Validation Field = "validation"
	Benchmark  Field = "benchmark"
)

var ErrInvalidTotal = errors.New("split percentages must total 100")

func ParseField(s string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "train":
		return Train, nil
	case "validation", "val":
		return Validation, nil
	case "benchmark", "bench":
		return Benchmark, nil
	default:
		return "", fmt.Errorf("unknown split field %q", s)
	}
}

// Config is the train/validation/benchmark partition of a single-split
// dataset. Adjust keeps every field an integer in [0, 100] but only pulls the
// total back down when an edit overflows; lowering a field leaves the total
// under 100 until another field is raised. Validate is the strict check used
// before a dataset config is submitted.
type Config struct {
	Train      int `json:"train"`
	Validation int `json:"validation"`
	Benchmark  int `json:"benchmark"`
}

func Default() Config {
	return Config{Train: 80, Validation: 10, Benchmark: 10}
}

func (c Config) Total() int {
	return c.Train + c.Validation + c.Benchmark
}

func (c Config) Get(field Field) int {
	switch field {
	case Train:
		return c.Train
	case Validation:
		return c.Validation
	default:
		return c.Benchmark
	}
}

func (c Config) Validate() error {
	if c.Train < 0 || c.Validation < 0 || c.Benchmark < 0 {
		return fmt.Errorf("%w: negative percentage in %d/%d/%d", ErrInvalidTotal, c.Train, c.Validation, c.Benchmark)
	}
	if c.Total() != 100 {
		return fmt.Errorf("%w: got %d", ErrInvalidTotal, c.Total())
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Train, c.Validation, c.Benchmark)
}

// Adjust sets field to value. The starting fields and value are clamped to
// [0, 100] first. If that pushes the total
// over 100 the overflow is taken from the other two fields in proportion to
// their current values, results are rounded, and any rounding drift is
// absorbed by benchmark, or by train when benchmark is the edited field.
func (c Config) Adjust(field Field, value int) Config {
	value = clampPercent(value)

	train, val, bench := float64(clampPercent(c.Train)), float64(clampPercent(c.Validation)), float64(clampPercent(c.Benchmark))
	switch field {
	case Train:
		train = float64(value)
	case Validation:
		val = float64(value)
	case Benchmark:
		bench = float64(value)
	default:
		return Config{Train: int(train), Validation: int(val), Benchmark: int(bench)}
	}

	total := train + val + bench
	if total <= 100 {
		return Config{Train: int(train), Validation: int(val), Benchmark: int(bench)}
	}

	overflow := total - 100
	var otherTotal float64
	switch field {
	case Train:
		otherTotal = val + bench
	case Validation:
		otherTotal = train + bench
	default:
		otherTotal = train + val
	}

	reduce := func(current float64) float64 {
		return math.Max(0, current-overflow*(current/math.Max(otherTotal, 1)))
	}

	switch field {
	case Train:
		val, bench = reduce(val), reduce(bench)
	case Validation:
		train, bench = reduce(train), reduce(bench)
	default:
		train, val = reduce(train), reduce(val)
	}

	next := Config{Train: roundHalfUp(train), Validation: roundHalfUp(val), Benchmark: roundHalfUp(bench)}

	if diff := 100 - next.Total(); diff != 0 {
		if field == Benchmark {
			next.Train = max(0, next.Train+diff)
		} else {
			next.Benchmark = max(0, next.Benchmark+diff)
		}
	}

	return next
}

// Allocator holds the live split while a user edits it.
type Allocator struct {
	config Config
}

func NewAllocator() *Allocator {
	return &Allocator{config: Default()}
}

func NewAllocatorFrom(c Config) *Allocator {
	return &Allocator{config: c}
}

func (a *Allocator) Adjust(field Field, value int) Config {
	a.config = a.config.Adjust(field, value)
	return a.config
}

func (a *Allocator) Config() Config {
	return a.config
}

func (a *Allocator) Reset() {
	a.config = Default()
}

func clampPercent(v int) int {
	return max(0, min(100, v))
}

func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
