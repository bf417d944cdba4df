package patterns

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned for malformed threshold overrides.
var ErrInvalidConfig = errors.New("invalid pattern config")

// Severity cut-offs. A pattern above the cut-off is reported as high.
const (
	deepChainHighDepth       = 8
	diamondMediumPaths       = 3
	hotPathHighRate          = 50.0
	highSubscriptionsHighObs = 100
)

// Config holds detector thresholds.
type Config struct {
	// chains deeper than this are reported
	DeepChainThreshold int
	DiamondMinPaths    int
	// updates per second
	HotPathThreshold          float64
	HotPathWindow             time.Duration
	HighSubscriptionThreshold int

	// Debounce is how long HandleEvent waits for quiet before Ready fires.
	Debounce time.Duration
	// MaxAnalysisTime is advisory. RunAnalysis logs when it is exceeded.
	MaxAnalysisTime time.Duration
}

func DefaultConfig() Config {
	return Config{
		DeepChainThreshold:        5,
		DiamondMinPaths:           2,
		HotPathThreshold:          10,
		HotPathWindow:             time.Second,
		HighSubscriptionThreshold: 50,
		Debounce:                  300 * time.Millisecond,
		MaxAnalysisTime:           100 * time.Millisecond,
	}
}

func (c Config) Validate() error {
	switch {
	case c.DeepChainThreshold < 1:
		return fmt.Errorf("%w: deep chain threshold %d must be at least 1", ErrInvalidConfig, c.DeepChainThreshold)
	case c.DiamondMinPaths < 2:
		return fmt.Errorf("%w: diamond min paths %d must be at least 2", ErrInvalidConfig, c.DiamondMinPaths)
	case c.HotPathThreshold <= 0:
		return fmt.Errorf("%w: hot path threshold %g must be positive", ErrInvalidConfig, c.HotPathThreshold)
	case c.HotPathWindow <= 0:
		return fmt.Errorf("%w: hot path window %s must be positive", ErrInvalidConfig, c.HotPathWindow)
	case c.HighSubscriptionThreshold < 1:
		return fmt.Errorf("%w: high subscription threshold %d must be at least 1", ErrInvalidConfig, c.HighSubscriptionThreshold)
	case c.Debounce < 0:
		return fmt.Errorf("%w: debounce %s is negative", ErrInvalidConfig, c.Debounce)
	case c.MaxAnalysisTime < 0:
		return fmt.Errorf("%w: max analysis time %s is negative", ErrInvalidConfig, c.MaxAnalysisTime)
	}
	return nil
}
