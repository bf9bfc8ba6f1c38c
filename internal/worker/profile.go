package worker

import (
	"math/rand/v2"
	"strings"

	"github.com/shehryarbajwa/regpool/internal/assets"
	"github.com/shehryarbajwa/regpool/internal/flow"
	"github.com/shehryarbajwa/regpool/internal/region"
)

const (
	lowercase = "abcdefghijklmnopqrstuvwxyz"
	digits    = "0123456789"
)

func randomString(rng *rand.Rand, alphabet string, n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(alphabet[rng.IntN(len(alphabet))])
	}
	return b.String()
}

// Password returns three lowercase letters followed by three digits
func Password(rng *rand.Rand) string {
	return randomString(rng, lowercase, 3) + randomString(rng, digits, 3)
}

// Email returns a random gmail address
func Email(rng *rand.Rand) string {
	return randomString(rng, lowercase+digits, 12) + "@gmail.com"
}

// newProfile draws everything one signup submits except the phone number
func newProfile(rng *rand.Rand, a *assets.Assets, phone string) (flow.Profile, assets.Certificate, region.Region) {
	cert := a.Certificate(rng)
	area := region.Pick(rng)
	avatar, _ := a.Avatar(rng)

	return flow.Profile{
		Nickname:   a.Nickname(rng),
		RegionCode: area.Code,
		DOB:        cert.DOB,
		Email:      Email(rng),
		Phone:      phone,
		Password:   Password(rng),
		AvatarPath: avatar,
	}, cert, area
}
