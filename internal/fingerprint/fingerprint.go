package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
)

// Key derives the cache and coalescing identity for a completion request.
// The inputs are normalized first (messages trimmed, temperature rounded to
// one decimal) so that two requests that would produce the same upstream
// call map to the same key. The digest is unsalted: the same inputs yield
// the same key across process restarts.
func Key(model string, temperature float64, maxTokens int, systemMessage, userInput string) string {
	material := strings.Join([]string{
		model,
		strconv.FormatFloat(RoundTemperature(temperature), 'f', 1, 64),
		strconv.Itoa(maxTokens),
		strings.TrimSpace(systemMessage),
		strings.TrimSpace(userInput),
	}, "|")

	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}

// RoundTemperature normalizes a sampling temperature to one decimal place,
// matching the precision the fingerprint and the upstream request use.
func RoundTemperature(t float64) float64 {
	return math.Round(t*10) / 10
}
