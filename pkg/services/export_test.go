package services

import "math/big"

func (c *CRLCache) markRevokedForTest(serial *big.Int) {
	c.mu.Lock()
	c.serial[serial.String()] = struct{}{}
	c.mu.Unlock()
}
