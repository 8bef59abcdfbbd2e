package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandToggle  Command = "toggle"
	CommandStop    Command = "stop"
	CommandStatus  Command = "status"
	CommandDevices Command = "devices"
	CommandModels  Command = "models"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandToggle:  {},
	CommandStop:    {},
	CommandStatus:  {},
	CommandDevices: {},
	CommandModels:  {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

// commandsWithTrailingArgs accept free-form arguments after the command
// itself (e.g. "models download parakeet:v3").
var commandsWithTrailingArgs = map[Command]struct{}{
	CommandModels: {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
	Format     string
	Args       []string
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true, Format: "text"}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		case "--format":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--format requires a value")
			}
			if args[i] != "json" && args[i] != "text" {
				return Parsed{}, fmt.Errorf("unknown format: %s", args[i])
			}
			parsed.Format = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp

			if _, ok := commandsWithTrailingArgs[cmd]; ok {
				parsed.Args = append([]string{}, args[i+1:]...)
				return parsed, nil
			}

			if i != len(args)-1 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command>

Commands:
  toggle    Start recording, or stop+transcribe when already recording
  stop      Stop active recording and transcribe what was captured
  status    Print current state
  devices   List available input devices
  models    list|download|remove a transcription model
  doctor    Run configuration and environment checks
  version   Print version information
  help      Show this help

Flags:
  --config PATH     Config file path (default: $XDG_CONFIG_HOME/dictate/config.toml)
  --format FORMAT   Output format for status/devices/models: text (default) or json
  -h, --help        Show help
  --version         Show version
`, binaryName)
}
