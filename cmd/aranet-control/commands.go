package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sensorlink/aranet4/pkg/cli"
	"github.com/sensorlink/aranet4/pkg/connector/ble"
	"github.com/sensorlink/aranet4/pkg/export"
	"github.com/sensorlink/aranet4/pkg/sensor"
)

var (
	ErrCommandLineArgs  = errors.New("invalid command line arguments")
	ErrRequiresSensor   = errors.New("command requires a sensor connection")
	ErrRequiresDatabase = errors.New("command requires a database (-db or $ARANET_DB)")
	ErrRequiresBroker   = errors.New("command requires an MQTT broker (-mqtt-broker or $ARANET_MQTT_BROKER)")
	ErrRequiresKeyring  = errors.New("command requires a keyring name (-mqtt-password-name or $ARANET_MQTT_PASSWORD_NAME)")
	ErrUnknownCommand   = errors.New("unrecognized command")
)

type Argument struct {
	name string
	help string
}

// App is the state shared by command handlers.
type App struct {
	config *cli.Config
	sensor *sensor.Sensor
	id     string // sensor address, used as the storage key
	out    io.Writer
}

type Handler func(ctx context.Context, app *App, args map[string]string) error

type Command struct {
	help            string
	requiresSensor  bool
	requiresStore   bool
	requiresBroker  bool
	requiresKeyring bool
	args            []Argument
	optional        []Argument
	handler         Handler
}

func (c *Command) flags() cli.Flag {
	var f cli.Flag
	if c.requiresSensor {
		f |= cli.FlagSensor
	}
	if c.requiresStore {
		f |= cli.FlagStore
	}
	if c.requiresBroker || c.requiresKeyring {
		f |= cli.FlagMQTT
	}
	return f
}

// configureFlags restricts c to the options commandName uses and verifies that the required ones
// are present.
func configureFlags(c *cli.Config, commandName string) error {
	info, ok := commands[commandName]
	if !ok {
		return ErrUnknownCommand
	}
	c.Flags = info.flags()
	_, err := checkReadiness(commandName, readiness{
		sensor:  true,
		store:   c.DatabasePath != "",
		broker:  c.MQTTBroker != "",
		keyring: c.KeyringMQTTName != "",
	})
	return err
}

// readiness lists what is available to a command.
type readiness struct {
	sensor, store, broker, keyring bool
}

func checkReadiness(commandName string, have readiness) (*Command, error) {
	info, ok := commands[commandName]
	if !ok {
		return nil, ErrUnknownCommand
	}
	if info.requiresSensor && !have.sensor {
		return nil, ErrRequiresSensor
	}
	if info.requiresStore && !have.store {
		return nil, ErrRequiresDatabase
	}
	if info.requiresBroker && !have.broker {
		return nil, ErrRequiresBroker
	}
	if info.requiresKeyring && !have.keyring {
		return nil, ErrRequiresKeyring
	}
	return info, nil
}

func execute(ctx context.Context, app *App, args []string) error {
	if len(args) == 0 {
		return errors.New("missing COMMAND")
	}

	info, err := checkReadiness(args[0], readiness{
		sensor:  app.sensor != nil,
		store:   app.config.DatabasePath != "",
		broker:  app.config.MQTTBroker != "",
		keyring: app.config.KeyringMQTTName != "",
	})
	if err != nil {
		return err
	}

	if len(args)-1 < len(info.args) || len(args)-1 > len(info.args)+len(info.optional) {
		writeErr("Invalid number of command line arguments: %d (%d required, %d optional).", len(args)-1, len(info.args), len(info.optional))
		err = ErrCommandLineArgs
	} else {
		keywords := make(map[string]string)
		for i, argInfo := range info.args {
			keywords[argInfo.name] = args[i+1]
		}
		index := len(info.args) + 1
		for _, argInfo := range info.optional {
			if index >= len(args) {
				break
			}
			keywords[argInfo.name] = args[index]
			index++
		}
		err = info.handler(ctx, app, keywords)
	}

	// Print command-specific help
	if errors.Is(err, ErrCommandLineArgs) {
		info.Usage(args[0])
	}
	return err
}

func (c *Command) Usage(name string) {
	fmt.Printf("Usage: %s", name)
	maxLength := 0
	for _, arg := range c.args {
		fmt.Printf(" %s", arg.name)
		if len(arg.name) > maxLength {
			maxLength = len(arg.name)
		}
	}
	if len(c.optional) > 0 {
		fmt.Printf(" [")
	}
	for _, arg := range c.optional {
		fmt.Printf(" %s", arg.name)
		if len(arg.name) > maxLength {
			maxLength = len(arg.name)
		}
	}
	if len(c.optional) > 0 {
		fmt.Printf(" ]")
	}
	fmt.Printf("\n%s\n", c.help)
	maxLength++
	for _, arg := range c.args {
		fmt.Printf("    %s:%s%s\n", arg.name, strings.Repeat(" ", maxLength-len(arg.name)), arg.help)
	}
	for _, arg := range c.optional {
		fmt.Printf("    %s:%s%s\n", arg.name, strings.Repeat(" ", maxLength-len(arg.name)), arg.help)
	}
}

// openOutput returns stdout for "" and "-".
func openOutput(app *App, filename string) (io.Writer, func() error, error) {
	if filename == "" || filename == "-" {
		return app.out, func() error { return nil }, nil
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

var commands = map[string]*Command{
	"current": &Command{
		help:           "Print the latest measurement",
		requiresSensor: true,
		handler: func(ctx context.Context, app *App, args map[string]string) error {
			reading, err := app.sensor.ReadCurrentValues(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(app.out, reading)
			return nil
		},
	},
	"last-update": &Command{
		help:           "Print the time elapsed since the latest measurement",
		requiresSensor: true,
		handler: func(ctx context.Context, app *App, args map[string]string) error {
			age, err := app.sensor.LastUpdateTime(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.out, "Last update: %s ago\n", age)
			return nil
		},
	},
	"interval": &Command{
		help:           "Print the measurement interval",
		requiresSensor: true,
		handler: func(ctx context.Context, app *App, args map[string]string) error {
			interval, err := app.sensor.Interval(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.out, "Interval: %s\n", interval)
			return nil
		},
	},
	"total": &Command{
		help:           "Print the number of measurements stored on the sensor",
		requiresSensor: true,
		handler: func(ctx context.Context, app *App, args map[string]string) error {
			total, err := app.sensor.TotalReadings(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.out, "Total readings: %d\n", total)
			return nil
		},
	},
	"info": &Command{
		help:           "Print device identification and battery level",
		requiresSensor: true,
		handler: func(ctx context.Context, app *App, args map[string]string) error {
			info, err := app.sensor.DeviceInfo(ctx)
			if err != nil {
				return err
			}
			fmt.Fprint(app.out, info)
			return nil
		},
	},
	"history": &Command{
		help:           "Download the measurement log",
		requiresSensor: true,
		optional: []Argument{
			Argument{name: "FORMAT", help: "json (default) or proto"},
			Argument{name: "FILE", help: "Output file (default: stdout)"},
		},
		handler: func(ctx context.Context, app *App, args map[string]string) error {
			format := export.FormatJSON
			if name, ok := args["FORMAT"]; ok {
				var err error
				if format, err = export.ParseFormat(name); err != nil {
					return fmt.Errorf("%w: %s", ErrCommandLineArgs, err)
				}
			}
			readings, err := app.sensor.HistoricalData(ctx)
			if err != nil {
				return err
			}
			w, closeOutput, err := openOutput(app, args["FILE"])
			if err != nil {
				return err
			}
			if err := export.Write(w, format, readings); err != nil {
				closeOutput()
				return err
			}
			return closeOutput()
		},
	},
	"sync": &Command{
		help:           "Save the current reading and the measurement log to the database",
		requiresSensor: true,
		requiresStore:  true,
		handler: func(ctx context.Context, app *App, args map[string]string) error {
			db, err := app.config.OpenStore()
			if err != nil {
				return err
			}
			defer db.Close()

			reading, err := app.sensor.ReadCurrentValues(ctx)
			if err != nil {
				return err
			}
			if err := db.SaveReading(ctx, app.id, time.Now(), reading); err != nil {
				return err
			}
			readings, err := app.sensor.HistoricalData(ctx)
			if err != nil {
				return err
			}
			inserted, err := db.SaveHistory(ctx, app.id, readings)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.out, "Stored %d new of %d records\n", inserted, readings.Len())
			return nil
		},
	},
	"stored": &Command{
		help:          "Print records saved in the database as JSON lines",
		requiresStore: true,
		optional: []Argument{
			Argument{name: "SINCE", help: "How far back to look, e.g. 6h (default: 24h)"},
		},
		handler: func(ctx context.Context, app *App, args map[string]string) error {
			window := 24 * time.Hour
			if value, ok := args["SINCE"]; ok {
				var err error
				if window, err = time.ParseDuration(value); err != nil {
					return fmt.Errorf("%w: %s", ErrCommandLineArgs, err)
				}
			}
			sensorID := app.id
			if sensorID == "" {
				var err error
				// Records are keyed by address, so a name alone is not enough.
				if sensorID, err = ble.ParseAddress(app.config.Address); err != nil {
					return err
				}
			}
			db, err := app.config.OpenStore()
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := db.HistorySince(ctx, sensorID, time.Now().Add(-window))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(app.out)
			for _, rec := range records {
				if err := enc.Encode(rec); err != nil {
					return err
				}
			}
			return nil
		},
	},
	"publish": &Command{
		help:           "Publish the current reading and the measurement log to MQTT",
		requiresSensor: true,
		requiresBroker: true,
		handler: func(ctx context.Context, app *App, args map[string]string) error {
			publisher, err := app.config.NewPublisher(ctx)
			if err != nil {
				return err
			}
			defer publisher.Disconnect()

			reading, err := app.sensor.ReadCurrentValues(ctx)
			if err != nil {
				return err
			}
			age, err := app.sensor.LastUpdateTime(ctx)
			if err != nil {
				age = -1
			}
			if err := publisher.PublishReading(app.id, time.Now(), reading, age); err != nil {
				return err
			}
			readings, err := app.sensor.HistoricalData(ctx)
			if err != nil {
				return err
			}
			if err := publisher.PublishHistory(app.id, readings); err != nil {
				return err
			}
			fmt.Fprintf(app.out, "Published %d records\n", readings.Len())
			return nil
		},
	},
	"set-mqtt-password": &Command{
		help:            "Store the MQTT broker password in the system keyring",
		requiresKeyring: true,
		handler: func(ctx context.Context, app *App, args map[string]string) error {
			password, err := app.config.PromptPassword("MQTT password")
			if err != nil {
				return err
			}
			return app.config.SaveMQTTPassword(password)
		},
	},
}
