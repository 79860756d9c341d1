package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/sensorlink/aranet4/internal/log"
	"github.com/sensorlink/aranet4/pkg/cli"
	"github.com/sensorlink/aranet4/pkg/protocol"
)

func writeErr(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprintf(os.Stderr, "\n")
}

const usage = `
 * Sensor commands connect to the first sensor named "Aranet4" unless -address or -name is given.
 * The sync command also requires a database file.
 * Run without a COMMAND to start an interactive shell.`

func Usage() {
	fmt.Printf("Usage: %s [OPTION...] COMMAND [ARG...]\n", os.Args[0])
	fmt.Printf("\nRun %s help COMMAND for more information. Valid COMMANDs are listed below.", os.Args[0])
	fmt.Println("")
	fmt.Println(usage)
	fmt.Println("")

	fmt.Printf("Available OPTIONs:\n")
	flag.PrintDefaults()
	fmt.Println("")
	fmt.Printf("Available COMMANDs:\n")
	maxLength := 0
	var labels []string
	for command := range commands {
		labels = append(labels, command)
		if len(command) > maxLength {
			maxLength = len(command)
		}
	}
	sort.Strings(labels)
	for _, command := range labels {
		info := commands[command]
		fmt.Printf("  %s%s %s\n", command, strings.Repeat(" ", maxLength-len(command)), info.help)
	}
}

func runCommand(app *App, args []string, timeout time.Duration) int {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := execute(ctx, app, args); err != nil {
		var missing *protocol.CharacteristicError
		if errors.As(err, &missing) {
			writeErr("This sensor does not support the command: %s", err)
		} else if protocol.Temporary(err) {
			writeErr("Sensor did not respond, try again: %s", err)
		} else {
			writeErr("Failed to execute command: %s", err)
		}
		return 1
	}
	return 0
}

func runInteractiveShell(app *App, timeout time.Duration) int {
	scanner := bufio.NewScanner(os.Stdin)
	for fmt.Printf("> "); scanner.Scan(); fmt.Printf("> ") {
		args, err := shlex.Split(scanner.Text())
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" {
			return 0
		}
		if err != nil {
			writeErr("Invalid command: %s", err)
			continue
		}
		runCommand(app, args, timeout)
	}
	if err := scanner.Err(); err != nil {
		writeErr("Error reading command: %s", err)
		return 1
	}
	return 0
}

func main() {
	status := 1
	defer func() {
		os.Exit(status)
	}()

	var (
		commandTimeout time.Duration
		connTimeout    time.Duration
	)
	config, err := cli.NewConfig(cli.FlagSensor | cli.FlagStore | cli.FlagMQTT)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %s\n", err)
		os.Exit(1)
	}
	flag.Usage = Usage
	flag.DurationVar(&commandTimeout, "command-timeout", 90*time.Second, "Set timeout for each command. History downloads need most of it.")
	flag.DurationVar(&connTimeout, "connect-timeout", 30*time.Second, "Set timeout for finding and connecting to the sensor.")

	config.RegisterCommandLineFlags()
	flag.Parse()
	config.ReadFromEnvironment()
	if config.Verbose {
		log.SetLevel(log.LevelDebug)
	}

	args := flag.Args()
	needSensor := true
	if len(args) > 0 {
		if args[0] == "help" {
			if len(args) == 1 {
				Usage()
				status = 0
				return
			}
			info, ok := commands[args[1]]
			if !ok {
				writeErr("Unrecognized command: %s", args[1])
				return
			}
			info.Usage(args[1])
			status = 0
			return
		}
		if err := configureFlags(config, args[0]); err != nil {
			writeErr("Cannot run %s: %s", args[0], err)
			return
		}
		needSensor = commands[args[0]].requiresSensor
	}

	if err := config.LoadCredentials(); err != nil {
		writeErr("Error loading credentials: %s", err)
		return
	}

	app := &App{config: config, out: os.Stdout}
	if needSensor {
		ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
		defer cancel()

		s, conn, err := config.Connect(ctx)
		if err != nil {
			writeErr("Error: %s", err)
			if strings.Contains(err.Error(), "operation not permitted") {
				// The HCI backend needs raw socket access.
				writeErr("\nTry again after granting this application CAP_NET_ADMIN:\n\n\tsudo setcap 'cap_net_admin,cap_net_raw=eip' \"$(which %s)\"\n", os.Args[0])
			}
			return
		}
		defer config.Close()
		app.sensor = s
		app.id = conn.Address()
	}

	if flag.NArg() > 0 {
		status = runCommand(app, flag.Args(), commandTimeout)
	} else {
		status = runInteractiveShell(app, commandTimeout)
	}
}
