package sensorcli

import (
	"crypto/rand"
	"math"
	"math/big"

	"github.com/okian/sensorboard/internal/domain/model"
)

const randomFloatDivisor = 1000000

// Value bands, picked in proportion to their weight.
var valueBands = []struct {
	min, span float64
	weight    int64
}{
	{18, 8, 5},  // typical indoor range
	{10, 8, 2},  // cool
	{26, 10, 2}, // warm
	{0, 50, 1},  // anywhere in the accepted range
}

// randomFloat returns a value in [0, 1).
func randomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

func randomInt(n int64) int64 {
	v, _ := rand.Int(rand.Reader, big.NewInt(n))
	return v.Int64()
}

// generateValue returns a plausible reading value rounded to two decimals.
func generateValue() float64 {
	var total int64
	for _, b := range valueBands {
		total += b.weight
	}
	pick := randomInt(total)
	for _, b := range valueBands {
		if pick < b.weight {
			v := math.Round((b.min+randomFloat()*b.span)*100) / 100
			return math.Min(math.Max(v, model.MinValue), model.MaxValue)
		}
		pick -= b.weight
	}
	return model.MinValue
}

// generateMode returns mode 0, mode 1 or no mode with equal odds.
func generateMode() *model.Mode {
	switch randomInt(3) {
	case 0:
		return model.Mode0.Ptr()
	case 1:
		return model.Mode1.Ptr()
	}
	return nil
}

func generateReadings(n int) []model.Reading {
	out := make([]model.Reading, n)
	for i := range out {
		out[i] = model.Reading{Value: generateValue(), Mode: generateMode()}
	}
	return out
}
