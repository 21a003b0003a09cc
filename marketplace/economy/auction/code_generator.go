package auction

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
	"sync"
)

const (
	codeLength     = 4
	codeMaxRetries = 5
)

// codeGenerator hands out short public auction codes. The in-process set
// guards against a duplicate within one run; the unique column on
// auctions.code is the durable guarantee.
type codeGenerator struct {
	used sync.Map
}

func newCodeGenerator() *codeGenerator {
	return &codeGenerator{}
}

func (g *codeGenerator) next() (string, error) {
	for attempt := 0; attempt < codeMaxRetries; attempt++ {
		b := make([]byte, 3)
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("failed to generate auction code: %w", err)
		}

		code := strings.ToUpper(base32.StdEncoding.EncodeToString(b)[:codeLength])
		if _, loaded := g.used.LoadOrStore(code, struct{}{}); !loaded {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique auction code after %d attempts", codeMaxRetries)
}

// release returns a code to the pool when the posting that reserved it did
// not go through.
func (g *codeGenerator) release(code string) {
	g.used.Delete(code)
}
