package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type CommandArgs struct {
	commandName string
	params      map[string]string
	err         error
}

func NewCommandArgs(args []string) *CommandArgs {
	var cmdName = ""
	var flags = make(map[string]string)
	for i := 1; i < len(args); i++ {
		var arg = args[i]
		if strings.HasPrefix(arg, "-") {
			if i < len(args)-1 {
				var k = strings.TrimPrefix(arg, "-")
				var v = args[i+1]
				flags[k] = v
				i++
			}
		} else if cmdName == "" {
			cmdName = arg
		}
	}
	return &CommandArgs{
		commandName: cmdName,
		params:      flags,
	}
}

func (ca *CommandArgs) CommandName() string {
	return ca.commandName
}

// Err returns the first parameter that failed to parse.
func (ca *CommandArgs) Err() error {
	return ca.err
}

func (ca *CommandArgs) fail(name, val string, err error) {
	if ca.err == nil {
		ca.err = fmt.Errorf("bad value %q of -%v: %w", val, name, err)
	}
}

func (ca *CommandArgs) GetString(name string, defaultVal string) string {
	var val, ok = ca.params[name]
	if !ok {
		return defaultVal
	}
	return val
}

func (ca *CommandArgs) GetInt(name string, defaultVal int) int {
	var val, ok = ca.params[name]
	if !ok {
		return defaultVal
	}
	var v, err = strconv.Atoi(val)
	if err != nil {
		ca.fail(name, val, err)
		return defaultVal
	}
	return v
}

func (ca *CommandArgs) GetInt64(name string, defaultVal int64) int64 {
	var val, ok = ca.params[name]
	if !ok {
		return defaultVal
	}
	var v, err = strconv.ParseInt(val, 10, 64)
	if err != nil {
		ca.fail(name, val, err)
		return defaultVal
	}
	return v
}

func (ca *CommandArgs) GetUint64(name string, defaultVal uint64) uint64 {
	var val, ok = ca.params[name]
	if !ok {
		return defaultVal
	}
	var v, err = strconv.ParseUint(val, 10, 64)
	if err != nil {
		ca.fail(name, val, err)
		return defaultVal
	}
	return v
}

func (ca *CommandArgs) GetFloat(name string, defaultVal float64) float64 {
	var val, ok = ca.params[name]
	if !ok {
		return defaultVal
	}
	var v, err = strconv.ParseFloat(val, 64)
	if err != nil {
		ca.fail(name, val, err)
		return defaultVal
	}
	return v
}

func (ca *CommandArgs) GetBool(name string, defaultVal bool) bool {
	var val, ok = ca.params[name]
	if !ok {
		return defaultVal
	}
	var v, err = strconv.ParseBool(val)
	if err != nil {
		ca.fail(name, val, err)
		return defaultVal
	}
	return v
}

type CommandHandler struct {
	items map[string]func() error
}

func NewCommandHandler() *CommandHandler {
	return &CommandHandler{
		items: make(map[string]func() error),
	}
}

func (ch *CommandHandler) Add(name string, handler func() error) {
	ch.items[name] = handler
}

func (ch *CommandHandler) Execute(commandName string) error {
	handler, found := ch.items[commandName]
	if !found {
		var names []string
		for name := range ch.items {
			names = append(names, name)
		}
		sort.Strings(names)
		return fmt.Errorf("command not found %q, available: %v", commandName, strings.Join(names, ", "))
	}
	return handler()
}

type Cli struct {
	args     *CommandArgs
	handlers *CommandHandler
}

func NewCli(args []string) *Cli {
	return &Cli{
		args:     NewCommandArgs(args),
		handlers: NewCommandHandler(),
	}
}

func (cli *Cli) Params() *CommandArgs {
	return cli.args
}

func (cli *Cli) AddCommand(name string, handler func() error) {
	cli.handlers.Add(name, handler)
}

func (cli *Cli) Execute() error {
	return cli.handlers.Execute(cli.args.CommandName())
}
