package campaign

import (
	"math/rand"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var normalizedTag = regexp.MustCompile(`^[a-z0-9_]*$`)

func TestNormalizeServiceTag(t *testing.T) {
	cases := map[string]string{
		"Haircut":                "haircut",
		"  Hair   Cut  ":         "hair_cut",
		"Coloração Completa":     "coloracao_completa",
		"Crème brûlée\tdeluxe":   "creme_brulee_deluxe",
		"Oil-Change #2":          "oilchange_2",
		"already_normalized_123": "already_normalized_123",
		"ÜBER\nService":          "uber_service",
		"":                       "",
		"   ":                    "",
		"!!!":                    "",
		"日本 spa":                 "_spa",
	}

	for input, expected := range cases {
		assert.Equal(t, expected, NormalizeServiceTag(input), "input %q", input)
	}
}

func TestNormalizeServiceTag_IdempotentAndRestricted(t *testing.T) {
	alphabet := []rune("abcXYZ019 _-\t\néÉçÇñÑøß日本!@#.İı")
	random := rand.New(rand.NewSource(42))

	inputs := []string{"Hair Cut", "Coloração", "a _ b", "İstanbul Barber"}
	for i := 0; i < 500; i++ {
		length := random.Intn(24)
		runes := make([]rune, length)
		for j := range runes {
			runes[j] = alphabet[random.Intn(len(alphabet))]
		}
		inputs = append(inputs, string(runes))
	}

	for _, input := range inputs {
		once := NormalizeServiceTag(input)
		assert.Regexp(t, normalizedTag, once, "input %q", input)
		assert.Equal(t, once, NormalizeServiceTag(once), "input %q", input)
	}
}
