package chainex

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type privateKeyHolder struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func loadPrivateKey(hexKey string) (*privateKeyHolder, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &privateKeyHolder{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}
