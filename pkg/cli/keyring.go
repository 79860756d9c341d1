package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/99designs/keyring"
	"golang.org/x/term"
)

const (
	keyringServiceName = "io.sensorlink.aranet4"
	keyringMQTTService = "mqttpassword"
	keyringDirectory   = "~/.aranet4_keys"
)

type backendType struct {
	config *Config
}

func (b backendType) String() string {
	if b.config == nil || len(b.config.Backend.AllowedBackends) == 0 {
		return string(keyring.InvalidBackend)
	}
	return string(b.config.Backend.AllowedBackends[0])
}

func (b backendType) Set(v string) error {
	value := keyring.BackendType(v)
	if b.config == nil {
		return fmt.Errorf("invalid backendType")
	}
	if v == "" {
		return nil
	}
	for _, name := range keyring.AvailableBackends() {
		if name == value {
			b.config.Backend.AllowedBackends = []keyring.BackendType{name}
			return nil
		}
	}
	return fmt.Errorf("unsupported credential storage")
}

func (c *Config) getPassword(prompt string) (string, error) {
	if c.password != nil && *c.password != "" {
		return *c.password, nil
	}

	var w io.Writer
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		fd = int(os.Stderr.Fd())
		if !term.IsTerminal(fd) {
			return "", fmt.Errorf("no terminal output available for password prompt")
		}
		w = os.Stderr
	} else {
		w = os.Stdout
	}

	fmt.Fprintf(w, "%s: ", prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(w)
	password := string(b)
	c.password = &password
	return password, nil
}

// PromptPassword reads a secret from the terminal without echoing it.
func (c *Config) PromptPassword(prompt string) (string, error) {
	saved := c.password
	c.password = nil
	defer func() { c.password = saved }()
	return c.getPassword(prompt)
}

func (c *Config) openKeyring() (keyring.Keyring, error) {
	return keyring.Open(c.Backend)
}

func (c *Config) mqttKeyName() string {
	return keyringMQTTService + "." + c.KeyringMQTTName
}

// LoadMQTTPassword reads the MQTT broker password from the system keyring.
func (c *Config) LoadMQTTPassword() (string, error) {
	kr, err := c.openKeyring()
	if err != nil {
		return "", err
	}
	item, err := kr.Get(c.mqttKeyName())
	if err != nil {
		return "", fmt.Errorf("could not load MQTT password: %w", err)
	}
	return string(item.Data), nil
}

// SaveMQTTPassword writes the MQTT broker password to the system keyring under c.KeyringMQTTName.
func (c *Config) SaveMQTTPassword(password string) error {
	if c.KeyringMQTTName == "" {
		return fmt.Errorf("no keyring name configured for the MQTT password")
	}
	kr, err := c.openKeyring()
	if err != nil {
		return err
	}
	if err := kr.Set(keyring.Item{
		Key:  c.mqttKeyName(),
		Data: []byte(password),
	}); err != nil {
		return fmt.Errorf("failed to enroll MQTT password in keyring: %s", err)
	}
	c.mqttPassword = password
	return nil
}

// DeleteMQTTPassword removes the MQTT broker password from the system keyring.
func (c *Config) DeleteMQTTPassword() error {
	kr, err := c.openKeyring()
	if err != nil {
		return err
	}
	return kr.Remove(c.mqttKeyName())
}
