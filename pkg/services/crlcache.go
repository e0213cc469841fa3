package services

import (
	"crypto/x509"
	"math/big"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CRLCache holds the latest known certificate revocation list in memory so
// that offline verification can answer revocation questions without touching
// the network. Update replaces the whole list atomically and persists it to
// disk when a path is configured, so the cache survives restarts.
type CRLCache struct {
	mu     sync.RWMutex
	serial map[string]struct{}
	issuer string
	stamp  time.Time

	persistPath string
	logger      *logrus.Entry
}

func NewCRLCache(logger *logrus.Entry, persistPath string) *CRLCache {
	return &CRLCache{
		serial:      map[string]struct{}{},
		persistPath: persistPath,
		logger:      logger,
	}
}

func (c *CRLCache) Update(crl *x509.RevocationList, rawDER []byte) error {
	serial := make(map[string]struct{}, len(crl.RevokedCertificateEntries))
	for _, entry := range crl.RevokedCertificateEntries {
		serial[entry.SerialNumber.String()] = struct{}{}
	}

	c.mu.Lock()
	c.serial = serial
	c.issuer = crl.Issuer.String()
	c.stamp = time.Now().UTC()
	c.mu.Unlock()

	c.logger.Infof("revocation list updated: issuer '%s', %d revoked serials", crl.Issuer.String(), len(serial))

	if c.persistPath != "" && rawDER != nil {
		if err := os.WriteFile(c.persistPath, rawDER, 0600); err != nil {
			c.logger.Warnf("could not persist revocation list to '%s': %s", c.persistPath, err)
			return err
		}
	}

	return nil
}

func (c *CRLCache) IsRevoked(serialNumber *big.Int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, revoked := c.serial[serialNumber.String()]
	return revoked
}

func (c *CRLCache) LastUpdated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stamp
}

func (c *CRLCache) Empty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stamp.IsZero()
}
