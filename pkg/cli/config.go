/*
Package cli facilitates building command-line applications that talk to Aranet4 sensors. It defines
a [Config] type that can be used to register common command-line flags (using the Golang flag
package) and environment variable equivalents.

The package uses [keyring]'s platform-agnostic interface for storing the MQTT broker password in an
OS-dependent credential store.

# Examples

	import flag

	config, err := NewConfig(FlagAll)
	if err != nil {
		panic(err)
	}
	config.RegisterCommandLineFlags() // Adds command-line flags for the sensor address, MQTT, etc.
	flag.Parse()
	config.ReadFromEnvironment()      // Fills in missing fields using environment variables
	config.LoadCredentials()          // Prompt for Keyring password if needed

	sensor, conn, err := config.Connect(ctx)
	if err != nil {
		panic(err)
	}
	defer config.Close()

Use a [Flag] mask to control which [Config] fields are populated. Note that config.Flags must be set
before calling [flag.Parse] or [Config.ReadFromEnvironment]:

	config, err = NewConfig(FlagSensor | FlagStore) // Only sensor and database options.
*/
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/99designs/keyring"

	"github.com/sensorlink/aranet4/internal/log"
	"github.com/sensorlink/aranet4/pkg/connector/ble"
	"github.com/sensorlink/aranet4/pkg/connector/ble/goble"
	"github.com/sensorlink/aranet4/pkg/connector/ble/tinygo"
	"github.com/sensorlink/aranet4/pkg/publish"
	"github.com/sensorlink/aranet4/pkg/sensor"
	"github.com/sensorlink/aranet4/pkg/store"
)

// Environment variable names used by [Config.ReadFromEnvironment] to set common parameters.
const (
	EnvAranetAddress        = "ARANET_ADDRESS"
	EnvAranetName           = "ARANET_NAME"
	EnvAranetBtAdapter      = "ARANET_BT_ADAPTER"
	EnvAranetBackend        = "ARANET_BACKEND"
	EnvAranetPageTimeout    = "ARANET_PAGE_TIMEOUT"
	EnvAranetDB             = "ARANET_DB"
	EnvAranetMQTTBroker     = "ARANET_MQTT_BROKER"
	EnvAranetMQTTClientID   = "ARANET_MQTT_CLIENT_ID"
	EnvAranetMQTTUsername   = "ARANET_MQTT_USERNAME"
	EnvAranetMQTTPassName   = "ARANET_MQTT_PASSWORD_NAME"
	EnvAranetKeyringType    = "ARANET_KEYRING_TYPE"
	EnvAranetKeyringPass    = "ARANET_KEYRING_PASSWORD"
	EnvAranetKeyringPath    = "ARANET_KEYRING_PATH"
	EnvAranetMetricsAddress = "ARANET_METRICS_ADDR"
	EnvAranetVerbose        = "ARANET_VERBOSE"
)

const defaultMQTTClientID = "aranet4"

// Flag controls what options should be scanned from the command line and/or environment variables.
type Flag int

func (f Flag) isSet(other Flag) bool {
	return (f & other) == other
}

const (
	FlagSensor  Flag = 1 // Enable sensor selection and BLE options.
	FlagStore   Flag = 2 // Enable SQLite database options.
	FlagMQTT    Flag = 4 // Enable MQTT broker options.
	FlagMetrics Flag = 8 // Enable Prometheus listener options.
	FlagAll     Flag = FlagSensor | FlagStore | FlagMQTT | FlagMetrics
)

var (
	ErrNoDatabase      = errors.New("database location not provided")
	ErrNoBroker        = errors.New("MQTT broker not provided")
	ErrSensorsDisabled = errors.New("configuration does not permit sensor connections")
	ErrKeyNotFound     = keyring.ErrKeyNotFound
)

// BLEBackend names the radio stack used to reach the sensor.
type BLEBackend string

const (
	BackendTinyGo BLEBackend = "tinygo"
	BackendGoBLE  BLEBackend = "goble"
)

var backends = map[BLEBackend]func(id string) (ble.Adapter, error){
	BackendTinyGo: tinygo.NewAdapter,
	BackendGoBLE:  goble.NewAdapter,
}

// Set updates a BLEBackend from a command-line argument.
func (b *BLEBackend) Set(value string) error {
	name := BLEBackend(strings.ToLower(value))
	if _, ok := backends[name]; !ok {
		return fmt.Errorf("unknown BLE backend '%s'", value)
	}
	*b = name
	return nil
}

func (b *BLEBackend) String() string {
	return string(*b)
}

// NewAdapter opens the Bluetooth adapter identified by id using backend. An empty id selects the
// default adapter.
func NewAdapter(backend BLEBackend, id string) (ble.Adapter, error) {
	newAdapter, ok := backends[backend]
	if !ok {
		return nil, fmt.Errorf("unknown BLE backend '%s'", backend)
	}
	return newAdapter(id)
}

// Config fields determine how a client finds the sensor and where readings are sent.
type Config struct {
	Flags Flag // Controls which set of environment variables/CLI flags to use.

	Address     string // Sensor address. Takes precedence over Name.
	Name        string // Substring of the advertised name. Defaults to ble.DefaultLocalName.
	BtAdapterID string
	BLEBackend  BLEBackend
	PageTimeout time.Duration

	DatabasePath string

	MQTTBroker      string
	MQTTClientID    string
	MQTTUsername    string
	KeyringMQTTName string // Keyring name of the MQTT password

	MetricsAddress string

	Verbose     bool
	Backend     keyring.Config
	BackendType backendType
	Debug       bool // Enable keyring debug messages

	password     *string
	mqttPassword string
	adapter      ble.Adapter
	conn         *ble.Connection
}

func NewConfig(flags Flag) (*Config, error) {
	c := Config{
		Flags: flags,
		Backend: keyring.Config{
			ServiceName:              keyringServiceName,
			KeychainTrustApplication: true,
			KeyCtlScope:              "user",
		},
	}
	c.BackendType = backendType{&c}
	c.Backend.KeychainPasswordFunc = c.getPassword
	c.Backend.FilePasswordFunc = c.getPassword

	return &c, nil
}

func (c *Config) RegisterCommandLineFlags() {
	if c.Flags.isSet(FlagSensor) {
		flag.StringVar(&c.Address, "address", "", "Sensor `address`. Defaults to $ARANET_ADDRESS.")
		flag.StringVar(&c.Name, "name", "", "Connect to the first sensor whose name contains `substring`. Defaults to $ARANET_NAME, then \""+ble.DefaultLocalName+"\".")
		flag.Var(&c.BLEBackend, "ble-backend", "Bluetooth `stack` (goble|tinygo). Defaults to $ARANET_BACKEND, then tinygo.")
		flag.DurationVar(&c.PageTimeout, "page-timeout", 0, "Maximum `duration` to wait for each history page. Defaults to $ARANET_PAGE_TIMEOUT.")
		c.registerCommandLineFlagsOsSpecific()
	}
	if c.Flags.isSet(FlagStore) {
		flag.StringVar(&c.DatabasePath, "db", "", "SQLite database `file`. Defaults to $ARANET_DB.")
	}
	if c.Flags.isSet(FlagMQTT) {
		flag.StringVar(&c.MQTTBroker, "mqtt-broker", "", "MQTT broker `url`, e.g. tcp://localhost:1883. Defaults to $ARANET_MQTT_BROKER.")
		flag.StringVar(&c.MQTTClientID, "mqtt-client-id", "", "MQTT client `id`. Defaults to $ARANET_MQTT_CLIENT_ID.")
		flag.StringVar(&c.MQTTUsername, "mqtt-username", "", "MQTT `username`. Defaults to $ARANET_MQTT_USERNAME.")
		flag.StringVar(&c.KeyringMQTTName, "mqtt-password-name", "", "System keyring `name` for the MQTT password. Defaults to $ARANET_MQTT_PASSWORD_NAME.")

		var names []string
		for _, name := range keyring.AvailableBackends() {
			names = append(names, string(name))
		}
		sort.Strings(names)
		flag.Var(&c.BackendType, "keyring-type", "Keyring `type` ("+strings.Join(names, "|")+"). Defaults to $ARANET_KEYRING_TYPE.")
		flag.StringVar(&c.Backend.FileDir, "keyring-file-dir", keyringDirectory, "keyring `directory` for file-backed keyring types")
		flag.BoolVar(&c.Debug, "keyring-debug", false, "Enable keyring debug logging")
	}
	if c.Flags.isSet(FlagMetrics) {
		flag.StringVar(&c.MetricsAddress, "metrics-addr", "", "Serve Prometheus metrics on `host:port`. Defaults to $ARANET_METRICS_ADDR.")
	}
	flag.BoolVar(&c.Verbose, "debug", false, "Enable verbose debugging messages")
}

// LoadCredentials attempts to open a keyring, prompting for a password if needed. Call this method
// before connecting to prevent interactive prompts from counting against timeouts.
func (c *Config) LoadCredentials() error {
	if !c.Flags.isSet(FlagMQTT) || c.KeyringMQTTName == "" || c.mqttPassword != "" {
		return nil
	}
	password, err := c.LoadMQTTPassword()
	if err != nil {
		return err
	}
	c.mqttPassword = password
	return nil
}

func setFromEnv(dst *string, name, description string) {
	if *dst == "" {
		*dst = os.Getenv(name)
		log.Debug("Set %s to '%s'", description, *dst)
	}
}

// ReadFromEnvironment populates c using environment variables. Values that are already populated
// are not overwritten.
//
// Calling ReadFromEnvironment after flag.Parse() (or other initialization method) will prevent the
// environment from overriding explicit command-line parameters and avoid potentially misleading
// debug log messages.
func (c *Config) ReadFromEnvironment() {
	if c.Flags.isSet(FlagSensor) {
		if c.Address == "" && c.Name == "" {
			c.Address = os.Getenv(EnvAranetAddress)
			log.Debug("Set sensor address to '%s'", c.Address)

			c.Name = os.Getenv(EnvAranetName)
			log.Debug("Set sensor name to '%s'", c.Name)
		}
		setFromEnv(&c.BtAdapterID, EnvAranetBtAdapter, "Bluetooth adapter")
		if value := os.Getenv(EnvAranetBackend); value != "" && c.BLEBackend == "" {
			if err := c.BLEBackend.Set(value); err != nil {
				log.Warning("Ignoring $%s: %s", EnvAranetBackend, err)
			} else {
				log.Debug("Set BLE backend to '%s'", c.BLEBackend)
			}
		}
		if value := os.Getenv(EnvAranetPageTimeout); value != "" && c.PageTimeout == 0 {
			if timeout, err := time.ParseDuration(value); err != nil {
				log.Warning("Ignoring $%s: %s", EnvAranetPageTimeout, err)
			} else {
				c.PageTimeout = timeout
				log.Debug("Set page timeout to %s", c.PageTimeout)
			}
		}
	}
	if c.Flags.isSet(FlagStore) {
		setFromEnv(&c.DatabasePath, EnvAranetDB, "database file")
	}
	if c.Flags.isSet(FlagMQTT) {
		setFromEnv(&c.MQTTBroker, EnvAranetMQTTBroker, "MQTT broker")
		setFromEnv(&c.MQTTClientID, EnvAranetMQTTClientID, "MQTT client ID")
		setFromEnv(&c.MQTTUsername, EnvAranetMQTTUsername, "MQTT username")
		setFromEnv(&c.KeyringMQTTName, EnvAranetMQTTPassName, "MQTT password name")

		if c.BackendType.String() == string(keyring.InvalidBackend) {
			if err := c.BackendType.Set(os.Getenv(EnvAranetKeyringType)); err == nil {
				log.Debug("Set keyring type to '%s'", c.BackendType)
			}
		}
		if c.password == nil {
			password := os.Getenv(EnvAranetKeyringPass)
			c.password = &password
			if len(password) > 0 {
				log.Debug("Set keyring File Password to %s", strings.Repeat("*", len("hunter2")))
			}
		}
		setFromEnv(&c.Backend.FileDir, EnvAranetKeyringPath, "keyring File Path")
	}
	if c.Flags.isSet(FlagMetrics) {
		setFromEnv(&c.MetricsAddress, EnvAranetMetricsAddress, "metrics address")
	}
	if !c.Verbose {
		_, c.Verbose = os.LookupEnv(EnvAranetVerbose)
	}
}

func (c *Config) filter() ble.Filter {
	return ble.Filter{Name: c.Name, Address: c.Address}
}

// Connect scans for the configured sensor and connects to it over the selected BLE backend. The
// returned connection stays open until [Config.Close] is called.
func (c *Config) Connect(ctx context.Context) (*sensor.Sensor, *ble.Connection, error) {
	if !c.Flags.isSet(FlagSensor) {
		return nil, nil, ErrSensorsDisabled
	}
	if c.BLEBackend == "" {
		c.BLEBackend = BackendTinyGo
	}
	if c.adapter == nil {
		log.Debug("Opening %s Bluetooth adapter...", c.BLEBackend)
		adapter, err := NewAdapter(c.BLEBackend, c.BtAdapterID)
		if err != nil {
			return nil, nil, err
		}
		c.adapter = adapter
	}

	conn, err := ble.NewConnection(ctx, c.adapter, c.filter())
	if err != nil {
		return nil, nil, err
	}
	c.conn = conn
	return sensor.New(conn, c.sensorOptions()), conn, nil
}

func (c *Config) sensorOptions() *sensor.Options {
	return &sensor.Options{
		PageTimeout: c.PageTimeout,
	}
}

// Close disconnects from the sensor and releases the Bluetooth adapter.
func (c *Config) Close() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if c.adapter != nil {
		if err := c.adapter.Close(); err != nil {
			log.Warning("Error closing Bluetooth adapter: %s", err)
		}
		c.adapter = nil
	}
}

// OpenStore opens the configured SQLite database.
func (c *Config) OpenStore() (*store.Store, error) {
	if !c.Flags.isSet(FlagStore) || c.DatabasePath == "" {
		return nil, ErrNoDatabase
	}
	return store.Open(c.DatabasePath)
}

// NewPublisher connects to the configured MQTT broker. On failure no client is left retrying.
func (c *Config) NewPublisher(ctx context.Context) (*publish.Publisher, error) {
	if !c.Flags.isSet(FlagMQTT) || c.MQTTBroker == "" {
		return nil, ErrNoBroker
	}
	if err := c.LoadCredentials(); err != nil {
		return nil, err
	}
	clientID := c.MQTTClientID
	if clientID == "" {
		clientID = defaultMQTTClientID
	}
	p := publish.New(publish.Options{
		Broker:   c.MQTTBroker,
		ClientID: clientID,
		Username: c.MQTTUsername,
		Password: c.mqttPassword,
	})
	if err := p.Connect(ctx); err != nil {
		return nil, err
	}
	return p, nil
}
