package config

import "fmt"

// CLI defines rearfeed's command-line flags.
type CLI struct {
	Version bool `short:"v" help:"Show version information."`
	List    bool `help:"List render endpoints as index<TAB>name<TAB>sample_rate<TAB>channels, then exit."`
	Quiet   bool `short:"q" help:"Suppress tray notifications."`
	Config  string `help:"Path to config.toml. Defaults to the file next to the executable." type:"path"`
}

// Exit codes
const (
	ExitSuccess      = 0
	ExitConfigError  = 1
	ExitDeviceError  = 2
	ExitFatalRuntime = 3
)

// RenderEndpointLine formats one --list line:
// "index<TAB>name<TAB>sample_rate<TAB>channels".
func RenderEndpointLine(index int, name string, sampleRate, channels uint32) string {
	return fmt.Sprintf("%d\t%s\t%d\t%d", index, name, sampleRate, channels)
}
