/*
Copyright (c) 2025 The bors-mg Authors

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

// Package command extracts bot commands from comment text.
package command

import (
	"errors"
	"fmt"
	"strings"
)

// Command is a recognized bot directive
type Command int

const (
	// Ping asks the bot to reply, to check that it is alive
	Ping Command = iota + 1
	// Try starts a try build
	Try
	// TryCancel cancels the running try build
	TryCancel
)

func (c Command) String() string {
	switch c {
	case Ping:
		return "ping"
	case Try:
		return "try"
	case TryCancel:
		return "try cancel"
	default:
		return fmt.Sprintf("Command(%d)", int(c))
	}
}

// ErrMissingCommand is reported when the prefix is not followed by a command
var ErrMissingCommand = errors.New("missing command")

// UnknownCommandError is reported when the word after the prefix is not a command
type UnknownCommandError struct {
	Command string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Command)
}

// Result is either a parsed command or the error explaining why parsing failed
type Result struct {
	Command Command
	Err     error
}

// parser recognizes one command from its first word and the remaining arguments
type parser func(command string, args []string) (Command, bool)

// try cancel has to be tried before try
var parsers = []parser{
	func(command string, _ []string) (Command, bool) {
		return Ping, command == "ping"
	},
	func(command string, args []string) (Command, bool) {
		return TryCancel, command == "try" && len(args) > 0 && args[0] == "cancel"
	},
	func(command string, _ []string) (Command, bool) {
		return Try, command == "try"
	},
}

// Parser finds commands addressed to the bot by a prefix such as "@bors"
type Parser struct {
	prefix string
}

// NewParser creates a parser for the given prefix
func NewParser(prefix string) *Parser {
	return &Parser{prefix: prefix}
}

// Parse returns one result per line mentioning the prefix, in textual order.
// Lines without the prefix produce nothing.
func (p *Parser) Parse(text string) []Result {
	var results []Result
	if p.prefix == "" {
		return results
	}

	for _, line := range strings.Split(text, "\n") {
		index := strings.Index(line, p.prefix)
		if index < 0 {
			continue
		}
		results = append(results, parseCommand(line[index+len(p.prefix):]))
	}
	return results
}

func parseCommand(input string) Result {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return Result{Err: ErrMissingCommand}
	}

	for _, parse := range parsers {
		if cmd, ok := parse(parts[0], parts[1:]); ok {
			return Result{Command: cmd}
		}
	}
	return Result{Err: &UnknownCommandError{Command: parts[0]}}
}
