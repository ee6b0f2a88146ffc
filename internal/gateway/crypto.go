package gateway

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync/atomic"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"golang.org/x/crypto/ripemd160"

	"masterpay/internal/models"
)

// AddressDeriver derives per-payment deposit addresses from an account-level
// extended public key, so the platform never holds private keys.
type AddressDeriver struct {
	XPub   string
	Prefix string
}

// Derive expects XPub at the account level and derives child index i.
func (d AddressDeriver) Derive(index uint32) (string, error) {
	if d.XPub == "" {
		return "", errors.New("xpub is not configured")
	}
	if d.Prefix == "" {
		return "", errors.New("bech32 prefix is not configured")
	}

	key, err := hdkeychain.NewKeyFromString(d.XPub)
	if err != nil {
		return "", err
	}
	child, err := key.Derive(index)
	if err != nil {
		return "", err
	}

	pubKey, err := child.ECPubKey()
	if err != nil {
		return "", err
	}

	compressed := pubKey.SerializeCompressed()
	hash := sha256.Sum256(compressed)
	rip := ripemd160.New()
	_, _ = rip.Write(hash[:])
	addr := rip.Sum(nil)

	converted, err := bech32.ConvertBits(addr, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(d.Prefix, converted)
}

// CryptoGateway captures crypto-method payments by handing out a fresh
// deposit address as the capture reference. Release and refund for crypto
// settle through the same external processor API as card payments.
type CryptoGateway struct {
	Deriver   AddressDeriver
	Processor Gateway

	nextIndex atomic.Uint32
}

func NewCryptoGateway(deriver AddressDeriver, processor Gateway) *CryptoGateway {
	return &CryptoGateway{Deriver: deriver, Processor: processor}
}

func (g *CryptoGateway) Capture(ctx context.Context, p *models.EscrowPayment) (string, error) {
	idx := g.nextIndex.Add(1)
	return g.Deriver.Derive(idx)
}

func (g *CryptoGateway) Release(ctx context.Context, p *models.EscrowPayment) error {
	return g.Processor.Release(ctx, p)
}

func (g *CryptoGateway) Refund(ctx context.Context, p *models.EscrowPayment) error {
	return g.Processor.Refund(ctx, p)
}
