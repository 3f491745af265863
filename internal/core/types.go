package core

const (
	AppName    = "PiSovereign"
	AppVersion = "0.1.0"
	// AppBinary is the CLI entry point name.
	AppBinary = "sovereign"
)
