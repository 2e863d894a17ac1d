package billing

import (
	"fmt"
	"math"
	"strings"
)

// FeeConfig is the platform's revenue split and currency. It is passed
// explicitly to the payment components rather than read from globals.
type FeeConfig struct {
	Currency           string  `yaml:"currency"`
	PlatformFeePercent float64 `yaml:"platform_fee_percent"`
}

func DefaultFeeConfig() FeeConfig {
	return FeeConfig{Currency: "idr", PlatformFeePercent: 15}
}

func (c FeeConfig) Validate() error {
	if c.PlatformFeePercent < 0 || c.PlatformFeePercent > 100 {
		return fmt.Errorf("platform fee percent must be within [0,100], got %v", c.PlatformFeePercent)
	}
	if strings.TrimSpace(c.Currency) == "" {
		return fmt.Errorf("currency is required")
	}
	return nil
}

// Split divides amount into the platform fee and the creator payout. The fee
// is rounded to cents and the payout takes the remainder so the two always
// sum to amount.
func (c FeeConfig) Split(amount float64) (platformFee, creatorPayout float64) {
	platformFee = math.Round(amount*c.PlatformFeePercent) / 100
	creatorPayout = amount - platformFee
	return platformFee, creatorPayout
}
