package services

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const orderNumberAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// OrderNumberGenerator produces ORD-<base36 unix millis>-<4 random chars>.
type OrderNumberGenerator struct {
	now func() time.Time
}

func NewOrderNumberGenerator() *OrderNumberGenerator {
	return &OrderNumberGenerator{now: time.Now}
}

func (g *OrderNumberGenerator) Next() (string, error) {
	suffix := make([]byte, 4)
	max := big.NewInt(int64(len(orderNumberAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		suffix[i] = orderNumberAlphabet[n.Int64()]
	}

	stamp := strings.ToUpper(strconv.FormatInt(g.now().UnixMilli(), 36))
	return "ORD-" + stamp + "-" + string(suffix), nil
}
