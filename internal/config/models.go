package config

import "time"

// Registry is the entire user configuration file.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // keyed by device MAC
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device is user-defined metadata for one controller, keyed by MAC in the
// Registry.
type Device struct {
	Nickname    string    `yaml:"nickname,omitempty"`     // user-friendly name
	ProductID   uint16    `yaml:"product_id,omitempty"`   // from the last advertisement
	LastGateway string    `yaml:"last_gateway,omitempty"` // gateway instance it was last reached through
	LastSeen    time.Time `yaml:"last_seen,omitempty"`
}

// Preferences are application-wide settings.
type Preferences struct {
	AutoDiscover    bool `yaml:"auto_discover"`    // scan for gateways on startup
	DiscoverTimeout int  `yaml:"discover_timeout"` // mDNS discovery timeout in seconds

	// DefaultGateway is a WebSocket endpoint used when discovery is off,
	// e.g. "ws://192.168.1.20:8321".
	DefaultGateway string `yaml:"default_gateway,omitempty"`

	// SerialPort routes connections through a UART bridge instead of a
	// network gateway when set, e.g. "/dev/ttyUSB0".
	SerialPort string `yaml:"serial_port,omitempty"`
	SerialBaud int    `yaml:"serial_baud,omitempty"`

	// Cache selects the capability cache backend.
	Cache *CachePrefs `yaml:"cache,omitempty"`
}

// CachePrefs configures where resolved capabilities are persisted.
type CachePrefs struct {
	// Backend is "sqlite" or "redis"; empty disables caching.
	Backend string `yaml:"backend,omitempty"`

	// Path is the SQLite file location. Empty means the config directory.
	Path string `yaml:"path,omitempty"`

	// Redis connection settings.
	RedisAddr     string `yaml:"redis_addr,omitempty"`
	RedisPassword string `yaml:"redis_password,omitempty"`
	RedisDB       int    `yaml:"redis_db,omitempty"`
}

// NewRegistry returns a Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version: 1,
		Devices: make(map[string]*Device),
		Preferences: &Preferences{
			AutoDiscover:    true,
			DiscoverTimeout: 10,
			Cache:           &CachePrefs{Backend: "sqlite"},
		},
	}
}

// GetDevice retrieves device metadata by MAC, or nil when unknown.
func (r *Registry) GetDevice(mac string) *Device {
	return r.Devices[mac]
}

// EnsureDevice returns the entry for mac, creating it when absent.
func (r *Registry) EnsureDevice(mac string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}
	if device, exists := r.Devices[mac]; exists {
		return device
	}
	device := &Device{}
	r.Devices[mac] = device
	return device
}

// UpdateDeviceLastSeen records when and through which gateway a device was
// reached.
func (r *Registry) UpdateDeviceLastSeen(mac, gateway string, productID uint16) {
	device := r.EnsureDevice(mac)
	device.LastSeen = time.Now()
	device.LastGateway = gateway
	if productID != 0 {
		device.ProductID = productID
	}
}

// SetDeviceNickname sets a user-friendly name for a device.
func (r *Registry) SetDeviceNickname(mac, nickname string) {
	device := r.EnsureDevice(mac)
	device.Nickname = nickname
}
