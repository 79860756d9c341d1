package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/99designs/keyring"
)

func TestBLEBackendFlag(t *testing.T) {
	var b BLEBackend
	if b.Set("bluez") == nil {
		t.Error("Expected error when parsing invalid backend name")
	}
	if err := b.Set("GoBLE"); err != nil {
		t.Errorf("Unexpected error when parsing mixed-case backend name: %s", err)
	}
	if s := b.String(); s != "goble" {
		t.Errorf("Unexpected string conversion result: %s", s)
	}
}

func TestReadFromEnvironment(t *testing.T) {
	t.Setenv(EnvAranetAddress, "AA:BB:CC:DD:EE:FF")
	t.Setenv(EnvAranetName, "Aranet4 1A2B3")
	t.Setenv(EnvAranetBackend, "goble")
	t.Setenv(EnvAranetPageTimeout, "3s")
	t.Setenv(EnvAranetDB, "/tmp/aranet.db")
	t.Setenv(EnvAranetMQTTBroker, "tcp://broker:1883")
	t.Setenv(EnvAranetMetricsAddress, ":9101")
	t.Setenv(EnvAranetVerbose, "")

	c, err := NewConfig(FlagAll)
	if err != nil {
		t.Fatal(err)
	}
	c.ReadFromEnvironment()

	if c.Address != "AA:BB:CC:DD:EE:FF" || c.Name != "Aranet4 1A2B3" {
		t.Errorf("Unexpected sensor selection: address=%q name=%q", c.Address, c.Name)
	}
	if c.BLEBackend != BackendGoBLE {
		t.Errorf("Expected goble backend, got %s", c.BLEBackend)
	}
	if c.PageTimeout != 3*time.Second {
		t.Errorf("Unexpected page timeout %s", c.PageTimeout)
	}
	if c.DatabasePath != "/tmp/aranet.db" || c.MQTTBroker != "tcp://broker:1883" || c.MetricsAddress != ":9101" {
		t.Errorf("Unexpected sink configuration: %+v", c)
	}
	if !c.Verbose {
		t.Error("Expected verbose logging when variable is set")
	}
}

func TestReadFromEnvironmentKeepsExplicitValues(t *testing.T) {
	t.Setenv(EnvAranetAddress, "AA:BB:CC:DD:EE:FF")
	t.Setenv(EnvAranetBackend, "goble")
	t.Setenv(EnvAranetPageTimeout, "3s")
	t.Setenv(EnvAranetDB, "/tmp/aranet.db")

	c, _ := NewConfig(FlagAll)
	c.Name = "Office"
	c.BLEBackend = BackendTinyGo
	c.PageTimeout = time.Second
	c.DatabasePath = "explicit.db"
	c.ReadFromEnvironment()

	if c.Address != "" {
		t.Errorf("Address should not be read when a name was given, got %q", c.Address)
	}
	if c.BLEBackend != BackendTinyGo || c.PageTimeout != time.Second || c.DatabasePath != "explicit.db" {
		t.Errorf("Environment overrode explicit values: %+v", c)
	}
}

func TestReadFromEnvironmentRespectsFlags(t *testing.T) {
	t.Setenv(EnvAranetDB, "/tmp/aranet.db")
	t.Setenv(EnvAranetMQTTBroker, "tcp://broker:1883")

	c, _ := NewConfig(FlagSensor)
	c.ReadFromEnvironment()
	if c.DatabasePath != "" || c.MQTTBroker != "" {
		t.Errorf("Disabled options were populated: %+v", c)
	}
}

func TestReadFromEnvironmentIgnoresInvalidValues(t *testing.T) {
	t.Setenv(EnvAranetBackend, "bluez")
	t.Setenv(EnvAranetPageTimeout, "soon")

	c, _ := NewConfig(FlagSensor)
	c.ReadFromEnvironment()
	if c.BLEBackend != "" || c.PageTimeout != 0 {
		t.Errorf("Invalid values were applied: %+v", c)
	}
}

func TestOpenStore(t *testing.T) {
	c, _ := NewConfig(FlagSensor)
	c.DatabasePath = ":memory:"
	if _, err := c.OpenStore(); !errors.Is(err, ErrNoDatabase) {
		t.Errorf("Expected ErrNoDatabase without FlagStore, got %v", err)
	}

	c.Flags |= FlagStore
	s, err := c.OpenStore()
	if err != nil {
		t.Fatal(err)
	}
	s.Close()
}

func TestNewPublisherRequiresBroker(t *testing.T) {
	c, _ := NewConfig(FlagAll)
	if _, err := c.NewPublisher(context.Background()); !errors.Is(err, ErrNoBroker) {
		t.Errorf("Expected ErrNoBroker, got %v", err)
	}
}

func TestConnectRequiresSensorFlag(t *testing.T) {
	c, _ := NewConfig(FlagStore)
	if _, _, err := c.Connect(context.Background()); !errors.Is(err, ErrSensorsDisabled) {
		t.Errorf("Expected ErrSensorsDisabled, got %v", err)
	}
}

func TestKeyringBackendType(t *testing.T) {
	c, _ := NewConfig(FlagMQTT)
	if err := c.BackendType.Set("not-a-keyring"); err == nil {
		t.Error("Expected error for unsupported keyring type")
	}
	if err := c.BackendType.Set(string(keyring.FileBackend)); err != nil {
		t.Fatal(err)
	}
	if c.BackendType.String() != string(keyring.FileBackend) {
		t.Errorf("Unexpected keyring type %s", c.BackendType)
	}
}

func TestMQTTPasswordRoundTrip(t *testing.T) {
	t.Setenv(EnvAranetKeyringType, string(keyring.FileBackend))
	t.Setenv(EnvAranetKeyringPass, "hunter2")
	t.Setenv(EnvAranetKeyringPath, t.TempDir())
	t.Setenv(EnvAranetMQTTPassName, "home")

	c, _ := NewConfig(FlagMQTT)
	c.ReadFromEnvironment()
	if err := c.SaveMQTTPassword("broker-secret"); err != nil {
		t.Fatal(err)
	}

	other, _ := NewConfig(FlagMQTT)
	other.ReadFromEnvironment()
	if err := other.LoadCredentials(); err != nil {
		t.Fatal(err)
	}
	if other.mqttPassword != "broker-secret" {
		t.Errorf("Unexpected password %q", other.mqttPassword)
	}

	if err := other.DeleteMQTTPassword(); err != nil {
		t.Fatal(err)
	}
	if _, err := other.LoadMQTTPassword(); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound after deletion, got %v", err)
	}
}

func TestNewAdapterUnknownBackend(t *testing.T) {
	if _, err := NewAdapter("bluez", ""); err == nil {
		t.Error("Expected error for unknown backend")
	}
}
