package cli

import "flag"

func (c *Config) registerCommandLineFlagsOsSpecific() {
	flag.StringVar(&c.BtAdapterID, "bt-adapter", "", "ID of the Bluetooth adapter to use. Defaults to $ARANET_BT_ADAPTER, then hci0.")
}
