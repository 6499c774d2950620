package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

type config struct {
	args []string
	out  io.Writer
}

type command interface {
	Name() string
	Help() string
	Run() error
	Register(*flag.FlagSet)
}

func (config *config) run() int {
	cmdName, args := parseArgs(config.args)
	if cmdName == "" {
		config.printUsage()
		return errorExitCode
	}

	for _, cmd := range commands(config.out) {
		if cmd.Name() != cmdName {
			continue
		}
		flags := flag.NewFlagSet(cmdName, flag.ContinueOnError)
		flags.SetOutput(config.out)
		cmd.Register(flags)
		if err := flags.Parse(args); err != nil {
			return errorExitCode
		}
		if err := cmd.Run(); err != nil {
			fmt.Fprintf(config.out, "Command failed: %v\n", err)
			return errorExitCode
		}
		return successExitCode
	}
	config.printUsage()
	return errorExitCode
}

const (
	successExitCode = 0
	errorExitCode   = 1
)

func commands(out io.Writer) []command {
	return []command{
		&renderCommand{},
		&midiCommand{out: out},
	}
}

func main() {
	c := config{
		args: os.Args,
		out:  os.Stdout,
	}
	os.Exit(c.run())
}

func parseArgs(args []string) (string, []string) {
	if len(args) < 2 {
		return "", nil
	}
	return args[1], args[2:]
}

func (config *config) printUsage() {
	fmt.Fprintln(config.out, "auproc runs audio and MIDI nodes offline")
	fmt.Fprintln(config.out)
	fmt.Fprintln(config.out, "Usage: auproc <command> [flags]")
	fmt.Fprintln(config.out)
	fmt.Fprintln(config.out, "Commands:")
	for _, cmd := range commands(config.out) {
		fmt.Fprintf(config.out, "\t%s\t%s\n", cmd.Name(), cmd.Help())
	}
}

// stringList is a flag that can be repeated or hold semicolon separated
// values.
type stringList []string

func (l *stringList) String() string {
	return strings.Join(*l, ";")
}

func (l *stringList) Set(value string) error {
	for _, v := range strings.Split(value, ";") {
		if v != "" {
			*l = append(*l, v)
		}
	}
	return nil
}
