package hub

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"matrixhub/internal/device"
)

// NonceResponse represents a cached response for a specific nonce
type NonceResponse struct {
	Nonce     string                 `json:"nonce"`
	Response  *device.ActionResponse `json:"response"`
	Timestamp time.Time              `json:"timestamp"`
}

// NonceCache remembers action responses per device so a retried request with the
// same X-Nonce does not switch the matrix twice
type NonceCache struct {
	deviceCaches map[string]*lru.Cache[string, *NonceResponse]
	mutex        sync.RWMutex
	maxSize      int
	expiration   time.Duration
	now          func() time.Time
}

// NewNonceCache creates a new nonce cache
func NewNonceCache(maxSize int, expiration time.Duration) *NonceCache {
	if maxSize <= 0 {
		maxSize = 50
	}
	if expiration <= 0 {
		expiration = time.Hour
	}

	return &NonceCache{
		deviceCaches: make(map[string]*lru.Cache[string, *NonceResponse]),
		maxSize:      maxSize,
		expiration:   expiration,
		now:          time.Now,
	}
}

// getDeviceCache gets or creates a cache for a specific device
func (nc *NonceCache) getDeviceCache(deviceID string) *lru.Cache[string, *NonceResponse] {
	nc.mutex.Lock()
	defer nc.mutex.Unlock()

	cache, exists := nc.deviceCaches[deviceID]
	if !exists {
		cache, _ = lru.New[string, *NonceResponse](nc.maxSize)
		nc.deviceCaches[deviceID] = cache
	}

	return cache
}

// CheckNonce checks if a nonce has been seen for a device and returns the cached response if found
func (nc *NonceCache) CheckNonce(deviceID, nonce string) (*device.ActionResponse, bool) {
	if nonce == "" {
		return nil, false
	}

	cache := nc.getDeviceCache(deviceID)

	if cached, found := cache.Get(nonce); found {
		if nc.now().Sub(cached.Timestamp) > nc.expiration {
			cache.Remove(nonce)
			return nil, false
		}
		return cached.Response, true
	}

	return nil, false
}

// StoreResponse stores a response for a specific nonce and device
func (nc *NonceCache) StoreResponse(deviceID, nonce string, response *device.ActionResponse) {
	if nonce == "" {
		return
	}

	nc.getDeviceCache(deviceID).Add(nonce, &NonceResponse{
		Nonce:     nonce,
		Response:  response,
		Timestamp: nc.now(),
	})
}

// ClearDevice clears all nonces for a specific device
func (nc *NonceCache) ClearDevice(deviceID string) {
	nc.mutex.Lock()
	defer nc.mutex.Unlock()

	if cache, exists := nc.deviceCaches[deviceID]; exists {
		cache.Purge()
	}
}

// GetDeviceNonceCount returns the number of cached nonces for a device
func (nc *NonceCache) GetDeviceNonceCount(deviceID string) int {
	nc.mutex.RLock()
	cache, exists := nc.deviceCaches[deviceID]
	nc.mutex.RUnlock()

	if !exists {
		return 0
	}
	return cache.Len()
}

// GetStats returns cache statistics
func (nc *NonceCache) GetStats() map[string]interface{} {
	nc.mutex.RLock()
	defer nc.mutex.RUnlock()

	totalNonces := 0
	deviceStats := make(map[string]int)
	for deviceID, cache := range nc.deviceCaches {
		count := cache.Len()
		totalNonces += count
		deviceStats[deviceID] = count
	}

	return map[string]interface{}{
		"total_devices": len(nc.deviceCaches),
		"total_nonces":  totalNonces,
		"max_size":      nc.maxSize,
		"expiration":    nc.expiration.String(),
		"device_stats":  deviceStats,
	}
}

// PerformCleanup removes expired entries and drops empty device caches.
// It returns the number of expired nonces.
func (nc *NonceCache) PerformCleanup() int {
	nc.mutex.Lock()
	defer nc.mutex.Unlock()

	now := nc.now()
	expired := 0
	for deviceID, cache := range nc.deviceCaches {
		for _, nonce := range cache.Keys() {
			if value, found := cache.Peek(nonce); found && now.Sub(value.Timestamp) > nc.expiration {
				cache.Remove(nonce)
				expired++
			}
		}
		if cache.Len() == 0 {
			delete(nc.deviceCaches, deviceID)
		}
	}

	return expired
}

// Shutdown drops every cached response
func (nc *NonceCache) Shutdown() {
	nc.mutex.Lock()
	defer nc.mutex.Unlock()

	for _, cache := range nc.deviceCaches {
		cache.Purge()
	}
	nc.deviceCaches = make(map[string]*lru.Cache[string, *NonceResponse])
}
